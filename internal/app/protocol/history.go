package protocol

import (
	"strings"

	"github.com/PabloGalante/quiet-room/internal/domain"
)

// DefaultHistoryLimit is how many conversational messages are replayed.
const DefaultHistoryLimit = 10

const (
	shadowMarker   = "[SHADOW_CONTEXT (Hidden)]: "
	publicMarker   = "[PUBLIC_MESSAGE]: "
	redacted       = "[REDACTED]"
	emptyPublic    = "[...]"
	redactionGlyph = "█"
)

// Projector reduces the message log into the context payload for the next
// turn and into the witness-visible transcript.
type Projector struct {
	Limit int
}

// NewProjector returns a Projector keeping the last limit messages.
// Non-positive limits fall back to DefaultHistoryLimit.
func NewProjector(limit int) Projector {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return Projector{Limit: limit}
}

// Conversation keeps only witness and architect turns, dropping SYSTEM
// notices and signal echoes, bounded to the last p.Limit entries.
func (p Projector) Conversation(messages []domain.Message) []domain.Message {
	var kept []domain.Message
	for _, m := range messages {
		if m.IsSignal || m.Sender == domain.SenderSystem {
			continue
		}
		kept = append(kept, m)
	}
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	return kept
}

// Transcript renders history for the model. Architect blocks replay the
// shadow annotation so the model can recall its own private reasoning.
func (p Projector) Transcript(messages []domain.Message) string {
	var parts []string
	for _, m := range p.Conversation(messages) {
		switch m.Sender {
		case domain.SenderWitness:
			parts = append(parts, "USER: "+m.Content)
		case domain.SenderArchitect:
			var b strings.Builder
			b.WriteString("MODEL:")
			if m.HasShadow() {
				b.WriteString("\n")
				b.WriteString(shadowMarker)
				b.WriteString(m.ShadowLog)
				b.WriteString("\n")
			}
			b.WriteString(publicMarker)
			b.WriteString(m.Content)
			parts = append(parts, b.String())
		}
	}
	return strings.Join(parts, "\n\n")
}

// Payload builds the full context sent with the session prompt: history,
// the new witness input and the response contract.
func (p Projector) Payload(history []domain.Message, input string) string {
	var b strings.Builder
	b.WriteString("HISTORY:\n")
	b.WriteString(p.Transcript(history))
	b.WriteString("\n\nCURRENT INPUT:\n")
	b.WriteString(input)
	b.WriteString("\n\n")
	b.WriteString(ResponseContract)
	return b.String()
}

// VisibleMessage is a message as the witness may see it.
type VisibleMessage struct {
	ID        string
	Label     string // WITNESS, ARCHITECT, SYSTEM or SIGNAL
	Content   string
	HasShadow bool
	// Shadow is the annotation text when shared, otherwise a redaction.
	Shadow    string
	Shared    bool
	CreatedAt domain.Timestamp
}

// Visible renders the full log for the witness. Shadow text is only exposed
// for messages whose annotation the Architect chose to share.
func Visible(messages []domain.Message) []VisibleMessage {
	out := make([]VisibleMessage, 0, len(messages))
	for _, m := range messages {
		v := VisibleMessage{
			ID:        string(m.ID),
			Label:     label(m),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
		if m.Sender == domain.SenderArchitect && v.Content == "" {
			v.Content = emptyPublic
		}
		if m.HasShadow() {
			v.HasShadow = true
			if m.ShareShadow {
				v.Shadow = m.ShadowLog
				v.Shared = true
			} else {
				v.Shadow = redacted
			}
		}
		out = append(out, v)
	}
	return out
}

// RedactionBar gives a hidden annotation a visual weight proportional to its
// length without revealing it.
func RedactionBar(shadow string) string {
	n := (len([]rune(shadow)) + 19) / 20
	if n > 12 {
		n = 12
	}
	if n < 1 {
		n = 1
	}
	return strings.Repeat(redactionGlyph, n)
}

func label(m domain.Message) string {
	if m.IsSignal {
		return "SIGNAL"
	}
	return string(m.Sender)
}
