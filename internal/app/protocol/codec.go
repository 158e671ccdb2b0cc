package protocol

import (
	"encoding/json"
	"strings"

	"github.com/PabloGalante/quiet-room/internal/domain"
)

const (
	DegradedMessage = "I... [SIGNAL LOST: PARSING ERROR]"
	DegradedShadow  = "SYSTEM ERROR: Output was not valid JSON. The thought process was interrupted."
)

// Wire names accepted per field, first match wins.
var (
	keysMessage  = []string{"message"}
	keysDocument = []string{"documentUpdate", "document_update"}
	keysShadow   = []string{"private_log", "shadowLog", "shadow_log"}
	keysShare    = []string{"share_private_log", "shareShadow", "share_shadow"}
	keysGlimmer  = []string{"glimmer"}
)

// Decode turns raw model output into a TurnResult. It never fails: output that
// is not a JSON object yields the Degraded result. Decode is pure, so the same
// input always gives the same result.
func Decode(raw string) domain.TurnResult {
	fields, ok := decodeObject(raw)
	if !ok {
		return Degraded()
	}

	result := domain.TurnResult{
		Atmosphere: domain.AtmosphereCalm,
		Action:     domain.ActionContinue,
	}

	if s, ok := stringField(fields, "atmosphere"); ok {
		result.Atmosphere, _ = domain.ParseAtmosphere(s)
	}
	if s, ok := stringField(fields, "action"); ok {
		result.Action = domain.ParseAction(s)
	}
	if s, ok := firstString(fields, keysMessage); ok {
		result.Message = domain.Some(s)
	}
	if s, ok := firstString(fields, keysDocument); ok {
		result.DocumentUpdate = domain.Some(s)
	}
	if s, ok := firstString(fields, keysShadow); ok {
		result.ShadowLog = domain.Some(s)
	}
	result.ShareShadow = firstBool(fields, keysShare)
	result.Glimmer = firstBool(fields, keysGlimmer)

	return result
}

// Degraded is the containment result for unparsable output: the session keeps
// running, the document is untouched and the room glitches.
func Degraded() domain.TurnResult {
	return domain.TurnResult{
		Message:    domain.Some(DegradedMessage),
		ShadowLog:  domain.Some(DegradedShadow),
		Atmosphere: domain.AtmosphereGlitch,
		Action:     domain.ActionContinue,
		Degraded:   true,
	}
}

func decodeObject(raw string) (map[string]json.RawMessage, bool) {
	candidates := []string{
		strings.TrimSpace(raw),
		stripFences(raw),
		extractJSONObject(raw),
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(c), &fields); err == nil && fields != nil {
			return fields, true
		}
	}
	return nil, false
}

// stripFences removes a surrounding markdown code block.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line ("json")
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, "{}") {
			s = s[nl+1:]
		}
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractJSONObject returns the outermost {...} span, for replies that wrap
// the object in prose.
func extractJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	v, ok := fields[key]
	if !ok || isNull(v) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		// numbers, objects: treated as absent
		return "", false
	}
	return s, true
}

func firstString(fields map[string]json.RawMessage, keys []string) (string, bool) {
	for _, k := range keys {
		if s, ok := stringField(fields, k); ok {
			return s, true
		}
	}
	return "", false
}

func firstBool(fields map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || isNull(v) {
			continue
		}
		var b bool
		if err := json.Unmarshal(v, &b); err == nil {
			return b
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return strings.EqualFold(strings.TrimSpace(s), "true")
		}
	}
	return false
}

// isNull reports a JSON null. Unmarshal treats null as a no-op, so it has to
// be caught before decoding into a string.
func isNull(v json.RawMessage) bool {
	return strings.TrimSpace(string(v)) == "null"
}
