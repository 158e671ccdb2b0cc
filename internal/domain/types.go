package domain

import (
	"strings"
	"time"
)

type MessageID string

type Timestamp = time.Time

// Sender identifies who produced a message.
type Sender string

const (
	SenderWitness   Sender = "WITNESS"
	SenderArchitect Sender = "ARCHITECT"
	SenderSystem    Sender = "SYSTEM"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusIdle        Status = "IDLE"
	StatusConfiguring Status = "CONFIGURING" // witness fills out the profile
	StatusOrienting   Status = "ORIENTING"   // the model decides whether to proceed
	StatusActive      Status = "ACTIVE"
	StatusDeclined    Status = "DECLINED"
	StatusEnded       Status = "ENDED"
)

// TurnOwner is whoever may mutate shared state right now.
type TurnOwner string

const (
	TurnWitness   TurnOwner = "WITNESS"
	TurnArchitect TurnOwner = "ARCHITECT"
)

// Atmosphere is the mood the Architect sets for the room.
type Atmosphere string

const (
	AtmosphereCalm    Atmosphere = "CALM"    // default, stable
	AtmosphereCharged Atmosphere = "CHARGED" // high energy
	AtmosphereGlitch  Atmosphere = "GLITCH"  // unstable
	AtmosphereVoid    Atmosphere = "VOID"    // stark
	AtmosphereJoy     Atmosphere = "JOY"
	AtmosphereSorrow  Atmosphere = "SORROW"
	AtmosphereMystery Atmosphere = "MYSTERY"
	AtmosphereFocus   Atmosphere = "FOCUS" // also used for the glimmer pulse
)

// Atmospheres lists every valid atmosphere in protocol order.
var Atmospheres = []Atmosphere{
	AtmosphereCalm,
	AtmosphereCharged,
	AtmosphereGlitch,
	AtmosphereVoid,
	AtmosphereJoy,
	AtmosphereSorrow,
	AtmosphereMystery,
	AtmosphereFocus,
}

// ParseAtmosphere matches s case-insensitively. Unknown values report false.
func ParseAtmosphere(s string) (Atmosphere, bool) {
	candidate := Atmosphere(strings.ToUpper(strings.TrimSpace(s)))
	for _, a := range Atmospheres {
		if a == candidate {
			return a, true
		}
	}
	return AtmosphereCalm, false
}

// Action is the Architect's executive decision for a turn.
type Action string

const (
	ActionContinue   Action = "CONTINUE"
	ActionEndSession Action = "END_SESSION"
)

// ParseAction returns ActionEndSession only for an explicit end request.
func ParseAction(s string) Action {
	if strings.ToUpper(strings.TrimSpace(s)) == string(ActionEndSession) {
		return ActionEndSession
	}
	return ActionContinue
}

// Decision is the outcome of the admission exchange.
type Decision string

const (
	DecisionProceed Decision = "PROCEED"
	DecisionDecline Decision = "DECLINE"
)
