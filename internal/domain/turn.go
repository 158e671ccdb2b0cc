package domain

// Optional holds a value that may be absent. The zero value is absent, which
// is distinct from a present zero value (e.g. an explicit empty string).
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns a present Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

func (o Optional[T]) IsSet() bool { return o.set }

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) { return o.value, o.set }

// Or returns the value when present, def otherwise.
func (o Optional[T]) Or(def T) T {
	if o.set {
		return o.value
	}
	return def
}

// TurnResult is the decoded shape of one Architect response. It is applied to
// the session once and then discarded.
type TurnResult struct {
	Message        Optional[string]
	DocumentUpdate Optional[string]
	ShadowLog      Optional[string]
	ShareShadow    bool
	Atmosphere     Atmosphere
	Glimmer        bool
	Action         Action

	// Degraded is set when the raw output could not be parsed at all.
	Degraded bool
}

// AdmissionResult is the Architect's answer to the orientation request.
type AdmissionResult struct {
	Decision Decision
	Message  string
}
