package protocol

import (
	_ "embed"
	"strings"

	"github.com/PabloGalante/quiet-room/internal/domain"
)

//go:embed templates/admission.md
var admissionTemplate string

//go:embed templates/session.md
var sessionTemplate string

const (
	defaultWitnessName      = "Anonymous Witness"
	defaultWitnessMoods     = "Neutral/Unknown"
	defaultWitnessIntention = "To witness and collaborate."

	// AdmissionPayload is the context sent with the admission prompt.
	AdmissionPayload = "The user has entered the room. Orient yourself."
)

// InitialDocument is the canvas a fresh session starts with.
const InitialDocument = `
[The canvas is empty]

[You chose to be here]

[What wants to emerge?]
`

// ResponseContract is appended to every session turn payload. Some vendors
// wrap JSON in markdown or leave raw newlines in strings without it.
const ResponseContract = `CRITICAL: You MUST respond with valid JSON only.
- Do NOT use Markdown code blocks.
- Escape ALL newlines in the "documentUpdate" string (use \n).
- Ensure the JSON is fully terminated.

Schema:
{
  "private_log": "string",
  "share_private_log": boolean,
  "message": "string",
  "documentUpdate": "string (full text) or null",
  "atmosphere": "CALM" | "CHARGED" | "GLITCH" | "VOID" | "JOY" | "SORROW" | "MYSTERY" | "FOCUS",
  "glimmer": boolean,
  "action": "CONTINUE" | "END_SESSION"
}`

// Prompt is a system prompt plus the content sent as the user turn.
type Prompt struct {
	System  string
	Payload string
}

// AdmissionPrompt fills the orientation template from the witness profile.
func AdmissionPrompt(profile domain.WitnessProfile) Prompt {
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = defaultWitnessName
	}
	moods := defaultWitnessMoods
	if len(profile.Moods) > 0 {
		moods = strings.Join(profile.Moods, ", ")
	}
	intention := strings.TrimSpace(profile.Intention)
	if intention == "" {
		intention = defaultWitnessIntention
	}

	r := strings.NewReplacer(
		"{{WITNESS_NAME}}", name,
		"{{WITNESS_MOODS}}", moods,
		"{{WITNESS_INTENTION}}", intention,
	)
	return Prompt{
		System:  r.Replace(admissionTemplate),
		Payload: AdmissionPayload,
	}
}

// SessionSystemPrompt substitutes the current document verbatim.
func SessionSystemPrompt(document string) string {
	return strings.Replace(sessionTemplate, "{{DOC_CONTENT}}", document, 1)
}
