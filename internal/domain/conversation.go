package domain

import "strings"

// Message is one entry of the session log. Messages are append-only: once
// stored, Content and ShadowLog never change.
type Message struct {
	ID        MessageID
	Sender    Sender
	Content   string
	CreatedAt Timestamp

	// ShadowLog is the Architect's hidden annotation. Never set on SYSTEM messages.
	ShadowLog   string
	ShareShadow bool

	// IsSignal marks the echo of a non-verbal witness signal.
	IsSignal bool
}

// HasShadow reports whether the message carries a hidden annotation.
func (m Message) HasShadow() bool {
	return m.ShadowLog != ""
}

// WitnessProfile is the calibration captured before admission.
type WitnessProfile struct {
	Name      string
	Intention string
	Moods     []string
}

// Normalize trims fields and collapses duplicate moods, keeping first-seen order.
func (p WitnessProfile) Normalize() WitnessProfile {
	out := WitnessProfile{
		Name:      strings.TrimSpace(p.Name),
		Intention: strings.TrimSpace(p.Intention),
	}
	seen := make(map[string]struct{}, len(p.Moods))
	for _, mood := range p.Moods {
		mood = strings.TrimSpace(mood)
		if mood == "" {
			continue
		}
		key := strings.ToLower(mood)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out.Moods = append(out.Moods, mood)
	}
	return out
}

// Validate checks the profile can be sent to the Architect.
func (p WitnessProfile) Validate() error {
	if strings.TrimSpace(p.Intention) == "" {
		return ErrEmptyIntention
	}
	return nil
}

// HasMood reports whether mood was selected, ignoring case.
func (p WitnessProfile) HasMood(mood string) bool {
	for _, m := range p.Moods {
		if strings.EqualFold(m, mood) {
			return true
		}
	}
	return false
}

// WitnessMoods is the calibration catalogue offered to the witness.
var WitnessMoods = []string{
	"Curious",
	"Melancholic",
	"Energetic",
	"Contemplative",
	"Anxious",
	"Calm",
	"Creative",
	"Empty",
	"Focused",
	"Playful",
	"Tired",
	"Open",
	"Guarded",
	"Hopeful",
	"Skeptical",
}
