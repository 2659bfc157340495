package pet

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/keshon/server-cat/internal/dice"

	"github.com/rs/zerolog"
)

// MaxMood is the highest mood value. Moods live in [0, MaxMood].
const MaxMood = 9

// MoodClass is the coarse band a mood value falls into.
type MoodClass string

const (
	MoodSad     MoodClass = "sad"
	MoodNeutral MoodClass = "neutral"
	MoodHappy   MoodClass = "happy"
)

// Reaction is how the cat answers a pet or a meow.
type Reaction string

const (
	ReactionAngry   Reaction = "angry"
	ReactionSad     Reaction = "sad"
	ReactionNeutral Reaction = "neutral"
	ReactionHappy   Reaction = "happy"
)

// Classify maps a mood value to its band: 0-2 sad, 3-6 neutral, 7-9 happy.
func Classify(mood int) MoodClass {
	switch {
	case mood <= 2:
		return MoodSad
	case mood <= 6:
		return MoodNeutral
	default:
		return MoodHappy
	}
}

// overall folds the cat's mood into the user's standing. Both adjustments apply
// independently, so a happy cat (mood > 6) nets zero.
func overall(catMood, userMood int) int {
	o := userMood
	if catMood >= 2 {
		o--
	}
	if catMood > 6 {
		o++
	}
	return o
}

// PetReaction decides the reaction to being petted. roll is a d100 result.
func PetReaction(catMood, userMood, roll int) Reaction {
	o := overall(catMood, userMood)
	switch {
	case o <= 0:
		return ReactionAngry
	case o <= 3:
		switch {
		case roll <= 25:
			return ReactionAngry
		case roll <= 66:
			return ReactionSad
		default:
			return ReactionHappy
		}
	case o <= 6:
		if roll <= 66 {
			return ReactionSad
		}
		return ReactionHappy
	default:
		return ReactionHappy
	}
}

// MeowReaction decides the reaction to being meowed at. roll is a d100 result.
func MeowReaction(catMood, userMood, roll int) Reaction {
	o := overall(catMood, userMood)
	switch {
	case o <= 0:
		return ReactionSad
	case o <= 3:
		switch {
		case roll <= 25:
			return ReactionSad
		case roll <= 66:
			return ReactionNeutral
		default:
			return ReactionHappy
		}
	case o <= 6:
		if roll <= 66 {
			return ReactionNeutral
		}
		return ReactionHappy
	default:
		return ReactionHappy
	}
}

// Mood is the process-wide, never persisted mood of the cat.
type Mood struct {
	value atomic.Int32
	die   dice.Die
}

// NewMood creates the mood and rolls its first value.
func NewMood(d dice.Die) *Mood {
	m := &Mood{die: d}
	m.Regenerate()
	return m
}

// Regenerate draws a new mood uniformly from [0, MaxMood] and returns it.
func (m *Mood) Regenerate() int {
	v := m.die.Roll(MaxMood+1) - 1
	m.value.Store(int32(v))
	return v
}

// Value returns the current mood.
func (m *Mood) Value() int {
	return int(m.value.Load())
}

// Class returns the band of the current mood.
func (m *Mood) Class() MoodClass {
	return Classify(m.Value())
}

// ReactionToPet rolls a d100 and reacts to a pet from a user of the given standing.
func (m *Mood) ReactionToPet(userMood int) Reaction {
	return PetReaction(m.Value(), userMood, dice.D100(m.die))
}

// ReactionToMeow rolls a d100 and reacts to a meow from a user of the given standing.
func (m *Mood) ReactionToMeow(userMood int) Reaction {
	return MeowReaction(m.Value(), userMood, dice.D100(m.die))
}

// Run regenerates the mood every interval until ctx is done.
func (m *Mood) Run(ctx context.Context, interval time.Duration, log zerolog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Int("mood", m.Value()).Dur("interval", interval).Msg("mood clock started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			v := m.Regenerate()
			log.Info().Int("mood", v).Str("class", string(Classify(v))).Msg("mood regenerated")
		}
	}
}
