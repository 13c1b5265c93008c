package tui

import (
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

// Sound plays feedback for game events
type Sound interface {
	LineClear(lines int)
	GameOver()
}

// Silent is a Sound that plays nothing
type Silent struct{}

func (Silent) LineClear(int) {}
func (Silent) GameOver()     {}

const sampleRate = beep.SampleRate(44100)

// Tones plays short sine tones through the system speaker
type Tones struct{}

// NewTones initializes the speaker. Callers should fall back to Silent when
// it fails, the game runs fine without audio.
func NewTones() (*Tones, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return nil, err
	}
	return &Tones{}, nil
}

func tone(freq float64, d time.Duration) beep.Streamer {
	sine, err := generators.SineTone(sampleRate, freq)
	if err != nil {
		return beep.Silence(sampleRate.N(d))
	}
	return beep.Take(sampleRate.N(d), sine)
}

// LineClear plays one rising note per cleared line
func (t *Tones) LineClear(lines int) {
	notes := make([]beep.Streamer, 0, lines)
	for i := 0; i < lines; i++ {
		notes = append(notes, tone(660+float64(i)*220, 60*time.Millisecond))
	}
	speaker.Play(beep.Seq(notes...))
}

// GameOver plays a falling two-note phrase
func (t *Tones) GameOver() {
	speaker.Play(beep.Seq(
		tone(330, 200*time.Millisecond),
		tone(220, 400*time.Millisecond),
	))
}

// Close stops audio output
func (t *Tones) Close() {
	speaker.Close()
}
