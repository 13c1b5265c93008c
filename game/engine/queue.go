package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/exp/rand"
)

// PieceQueue deals pieces one at a time. Exactly one upcoming piece is
// materialized; it never has the same kind as the piece dealt before it.
type PieceQueue struct {
	columns int
	src     *rand.PCGSource
	rng     *rand.Rand
	next    *Piece
}

// NewPieceQueue creates a queue for a grid with the given number of columns,
// seeded deterministically.
func NewPieceQueue(columns int, seed uint64) *PieceQueue {
	src := &rand.PCGSource{}
	src.Seed(seed)
	q := &PieceQueue{
		columns: columns,
		src:     src,
		rng:     rand.New(src),
	}
	q.next = NewPiece(q.sample(), columns)
	return q
}

// RandomSeed returns a seed for games that did not ask for a fixed one.
func RandomSeed() uint64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(buf[:])
}

func (q *PieceQueue) sample() Kind {
	return KindI + Kind(q.rng.Intn(len(AllKinds)))
}

// NextPiece returns the upcoming piece without consuming it.
func (q *PieceQueue) NextPiece() *Piece {
	return q.next
}

// GetAndUpdate returns the upcoming piece and materializes a new one of a
// different kind.
func (q *PieceQueue) GetAndUpdate() *Piece {
	current := q.next
	kind := q.sample()
	for kind == current.Kind {
		kind = q.sample()
	}
	q.next = NewPiece(kind, q.columns)
	return current
}

// State returns the RNG state bytes. Together with the next kind it fully
// determines every future draw.
func (q *PieceQueue) State() []byte {
	// PCGSource.MarshalBinary cannot fail.
	state, _ := q.src.MarshalBinary()
	return state
}

// Clone returns an independent queue that will deal the same sequence.
func (q *PieceQueue) Clone() *PieceQueue {
	src := *q.src
	return &PieceQueue{
		columns: q.columns,
		src:     &src,
		rng:     rand.New(&src),
		next:    q.next.Clone(),
	}
}

// restorePieceQueue rebuilds a queue from State bytes and the upcoming kind.
func restorePieceQueue(columns int, state []byte, next Kind) (*PieceQueue, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: next kind %d", ErrInvalidSnapshot, next)
	}
	src := &rand.PCGSource{}
	if err := src.UnmarshalBinary(state); err != nil {
		return nil, fmt.Errorf("%w: rng state: %v", ErrInvalidSnapshot, err)
	}
	return &PieceQueue{
		columns: columns,
		src:     src,
		rng:     rand.New(src),
		next:    NewPiece(next, columns),
	}, nil
}
