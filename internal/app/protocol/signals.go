package protocol

import (
	"fmt"
	"strings"
)

// Signal is a non-verbal witness input.
type Signal string

const (
	SignalAmplify   Signal = "AMPLIFY"
	SignalStabilize Signal = "STABILIZE"
	SignalObserve   Signal = "OBSERVE"
)

var Signals = []Signal{SignalAmplify, SignalStabilize, SignalObserve}

type signalText struct {
	label  string
	phrase string
}

var signalTexts = map[Signal]signalText{
	SignalAmplify: {
		label:  ">> SIGNAL: AMPLIFY (Increase Entropy)",
		phrase: "[SIGNAL: AMPLIFY] - The Witness encourages boldness, chaos, or complexity.",
	},
	SignalStabilize: {
		label:  ">> SIGNAL: STABILIZE (Increase Order)",
		phrase: "[SIGNAL: STABILIZE] - The Witness encourages structure, calm, or simplification.",
	},
	SignalObserve: {
		label:  ">> SIGNAL: OBSERVE (Watching)",
		phrase: "[SIGNAL: OBSERVE] - The Witness passes the turn silently to observe your next move.",
	},
}

// ParseSignal accepts a signal name in any case.
func ParseSignal(s string) (Signal, error) {
	sig := Signal(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := signalTexts[sig]; !ok {
		return "", fmt.Errorf("unknown signal %q", s)
	}
	return sig, nil
}

// Label is the short text echoed into the visible transcript.
func (s Signal) Label() string {
	return signalTexts[s].label
}

// Phrase is the instruction sent to the Architect as the turn input.
func (s Signal) Phrase() string {
	return signalTexts[s].phrase
}
