package protocol

import (
	"regexp"
	"strings"

	"github.com/PabloGalante/quiet-room/internal/domain"
)

const (
	// DefaultProceedMessage stands in for an empty acceptance.
	DefaultProceedMessage = "I am ready to begin."

	// DefaultDeclineReason stands in for an empty refusal.
	DefaultDeclineReason = "The model chose not to engage with this session."

	// SoftDeclineReason is used when the admission request itself failed.
	SoftDeclineReason = "The model could not orient itself due to a connection disturbance."
)

var admissionMarker = regexp.MustCompile(`\[\[\s*(PROCEED|DECLINE)\s*:`)

// ParseAdmission extracts the decision from the Architect's orientation reply.
//
// The body of a marker runs up to the last "]]" after it, so brackets inside
// the message survive. DECLINE wins when both markers appear. Text without
// any marker is treated as acceptance and kept whole.
func ParseAdmission(raw string) domain.AdmissionResult {
	matches := admissionMarker.FindAllStringSubmatchIndex(raw, -1)

	var chosen []int
	for _, m := range matches {
		kind := raw[m[2]:m[3]]
		if kind == string(domain.DecisionDecline) {
			chosen = m
			break
		}
		if chosen == nil {
			chosen = m
		}
	}

	if chosen == nil {
		text := strings.TrimSpace(raw)
		if text == "" {
			text = DefaultProceedMessage
		}
		return domain.AdmissionResult{Decision: domain.DecisionProceed, Message: text}
	}

	body := raw[chosen[1]:]
	if end := strings.LastIndex(body, "]]"); end >= 0 {
		body = body[:end]
	}

	result := domain.AdmissionResult{
		Decision: domain.Decision(raw[chosen[2]:chosen[3]]),
		Message:  strings.TrimSpace(body),
	}
	if result.Message == "" {
		result.Message = DefaultProceedMessage
		if result.Decision == domain.DecisionDecline {
			result.Message = DefaultDeclineReason
		}
	}
	return result
}
