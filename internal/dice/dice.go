// Package dice provides the rolls the bot makes: the d100 that gates triggers
// and reaction tiers, the d10 behind the cat's mood, and picking a random line
// from a reply table.
package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Die rolls a number in [1, sides].
type Die interface {
	Roll(sides int) int
}

// D100 rolls a percentile die.
func D100(d Die) int {
	return d.Roll(100)
}

// Pick returns a random element of items, or the zero value if items is empty.
func Pick[T any](d Die, items []T) T {
	var zero T
	if len(items) == 0 {
		return zero
	}
	return items[d.Roll(len(items))-1]
}

// Random is a Die backed by a ChaCha8 generator. Safe for concurrent use.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom seeds a Random die from crypto/rand.
func NewRandom() *Random {
	var seed [32]byte
	crand.Read(seed[:]) // never fails since Go 1.24
	return &Random{rng: rand.New(rand.NewChaCha8(seed))}
}

// NewSeeded returns a Random die with a deterministic sequence.
func NewSeeded(seed uint64) *Random {
	var s [32]byte
	binary.LittleEndian.PutUint64(s[:], seed)
	return &Random{rng: rand.New(rand.NewChaCha8(s))}
}

func (r *Random) Roll(sides int) int {
	if sides <= 1 {
		return 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(sides) + 1
}

// Fixed always rolls the same face, clamped to [1, sides].
type Fixed int

func (f Fixed) Roll(sides int) int {
	v := int(f)
	if v < 1 {
		return 1
	}
	if sides >= 1 && v > sides {
		return sides
	}
	return v
}

// Sequence replays faces in order and wraps around. Faces are clamped like Fixed.
type Sequence struct {
	mu    sync.Mutex
	faces []int
	next  int
}

// NewSequence creates a Sequence over faces.
func NewSequence(faces ...int) *Sequence {
	return &Sequence{faces: faces}
}

func (s *Sequence) Roll(sides int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.faces) == 0 {
		return 1
	}
	v := s.faces[s.next%len(s.faces)]
	s.next++
	return Fixed(v).Roll(sides)
}
