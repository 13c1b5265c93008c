package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/wricardo/tetris-engine/game/engine"
)

// Canvas is the part of tcell.Screen the renderer draws on
type Canvas interface {
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	Size() (width, height int)
}

const (
	boardX    = 1 // left border column
	boardY    = 1 // top border row
	cellWidth = 2
	panelGap  = 3
)

var (
	styleDefault = tcell.StyleDefault
	styleBorder  = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleEmpty   = tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
	styleGhost   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleTitle   = tcell.StyleDefault.Bold(true)
	styleBanner  = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorMaroon).Bold(true)
	styleStatus  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
)

var kindColors = map[engine.Kind]tcell.Color{
	engine.KindI: tcell.ColorAqua,
	engine.KindJ: tcell.ColorBlue,
	engine.KindL: tcell.ColorOrange,
	engine.KindO: tcell.ColorYellow,
	engine.KindS: tcell.ColorGreen,
	engine.KindT: tcell.ColorPurple,
	engine.KindZ: tcell.ColorRed,
}

func blockStyle(kind engine.Kind) tcell.Style {
	color, ok := kindColors[kind]
	if !ok {
		color = tcell.ColorWhite
	}
	return tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(color)
}

func drawText(c Canvas, x, y int, style tcell.Style, text string) int {
	for _, r := range text {
		c.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}

func clearCanvas(c Canvas) {
	w, h := c.Size()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c.SetContent(x, y, ' ', nil, styleDefault)
		}
	}
}

// drawCell paints one grid cell, which is cellWidth columns wide
func drawCell(c Canvas, row, col int, text string, style tcell.Style) {
	drawText(c, boardX+1+col*cellWidth, boardY+1+row, style, text)
}

// Draw renders the game: the visible board with the active piece and its
// ghost, a side panel with next/held previews, counters and key help, and a
// banner when the game is over. status is shown under the board when set.
func Draw(c Canvas, s *engine.Snapshot, status string) {
	clearCanvas(c)
	if s == nil {
		drawText(c, boardX, boardY, styleTitle, "Connecting...")
		return
	}

	visible := s.Rows - s.HiddenRows
	innerWidth := s.Columns * cellWidth
	drawBorder(c, boardX, boardY, innerWidth, visible)

	// Locked cells
	for row := 0; row < visible; row++ {
		gridRow := row + s.HiddenRows
		for col := 0; col < s.Columns; col++ {
			if gridRow < len(s.Grid) && col < len(s.Grid[gridRow]) && s.Grid[gridRow][col] != 0 {
				drawCell(c, row, col, "[]", blockStyle(engine.Kind(s.Grid[gridRow][col])))
			} else {
				drawCell(c, row, col, " .", styleEmpty)
			}
		}
	}

	// Ghost, then the active piece on top of it
	for _, pos := range s.Ghost {
		if pos.Row >= s.HiddenRows {
			drawCell(c, pos.Row-s.HiddenRows, pos.Col, "::", styleGhost)
		}
	}
	if s.Current != nil {
		for _, pos := range s.Current.Tiles {
			if pos.Row >= s.HiddenRows {
				drawCell(c, pos.Row-s.HiddenRows, pos.Col, "[]", blockStyle(s.Current.Kind))
			}
		}
	}

	drawPanel(c, boardX+innerWidth+2+panelGap, boardY, s)

	if status != "" {
		drawText(c, boardX, boardY+visible+2, styleStatus, status)
	}

	if s.GameOver {
		drawBanner(c, boardX+1, boardY+visible/2-1, innerWidth, []string{"GAME OVER", "r restart  q quit"})
	}
}

func drawBorder(c Canvas, x, y, innerWidth, innerHeight int) {
	right := x + innerWidth + 1
	bottom := y + innerHeight + 1
	for cx := x + 1; cx < right; cx++ {
		c.SetContent(cx, y, '─', nil, styleBorder)
		c.SetContent(cx, bottom, '─', nil, styleBorder)
	}
	for cy := y + 1; cy < bottom; cy++ {
		c.SetContent(x, cy, '│', nil, styleBorder)
		c.SetContent(right, cy, '│', nil, styleBorder)
	}
	c.SetContent(x, y, '┌', nil, styleBorder)
	c.SetContent(right, y, '┐', nil, styleBorder)
	c.SetContent(x, bottom, '└', nil, styleBorder)
	c.SetContent(right, bottom, '┘', nil, styleBorder)
}

func drawPanel(c Canvas, x, y int, s *engine.Snapshot) {
	drawText(c, x, y, styleTitle, "NEXT")
	drawPreview(c, x, y+1, s.Next)

	hold := "HOLD"
	if s.HoldUsed {
		hold = "HOLD (used)"
	}
	drawText(c, x, y+5, styleTitle, hold)
	drawPreview(c, x, y+6, s.Held)

	y += 10
	drawText(c, x, y, styleDefault, fmt.Sprintf("SCORE  %d", s.Score))
	drawText(c, x, y+1, styleDefault, fmt.Sprintf("LEVEL  %d", s.Level))
	drawText(c, x, y+2, styleDefault, fmt.Sprintf("LINES  %d", s.LinesCleared))
	drawText(c, x, y+3, styleDefault, fmt.Sprintf("PIECES %d", s.PiecesPlaced))

	y += 5
	for i, line := range keyHelp {
		drawText(c, x, y+i, styleEmpty, line)
	}
}

// drawPreview draws a kind in its spawn rotation inside a 4x4 box
func drawPreview(c Canvas, x, y int, kind engine.Kind) {
	if !kind.Valid() {
		drawText(c, x, y, styleEmpty, "-")
		return
	}
	for _, pos := range engine.Cells(kind, 0) {
		drawText(c, x+pos.Col*cellWidth, y+pos.Row, blockStyle(kind), "[]")
	}
}

func drawBanner(c Canvas, x, y, width int, lines []string) {
	for i, line := range lines {
		pad := (width - len([]rune(line))) / 2
		if pad < 0 {
			pad = 0
		}
		for cx := x; cx < x+width; cx++ {
			c.SetContent(cx, y+i, ' ', nil, styleBanner)
		}
		drawText(c, x+pad, y+i, styleBanner, line)
	}
}
