package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/quiet-room/internal/domain"
)

const (
	ConcludedNotice   = "The Architect has concluded the session."
	interruptedPrefix = ">> CONNECTION INTERRUPTED: "
)

// Machine owns one session: lifecycle status, turn ownership, the shared
// document, the atmosphere and the append-only message log. All mutation goes
// through its transition methods; it is safe for concurrent use.
type Machine struct {
	mu sync.Mutex

	status        domain.Status
	turn          domain.TurnOwner
	atmosphere    domain.Atmosphere
	document      string
	messages      []domain.Message
	profile       domain.WitnessProfile
	frozen        bool
	declineReason string
	inflight      domain.MessageID

	initialDocument string
	now             func() time.Time
	newID           func() domain.MessageID
}

// Option customises a Machine.
type Option func(*Machine)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithIDs replaces the uuid message id generator.
func WithIDs(gen func() domain.MessageID) Option {
	return func(m *Machine) { m.newID = gen }
}

// New returns an IDLE session whose canvas starts as initialDocument.
func New(initialDocument string, opts ...Option) *Machine {
	m := &Machine{
		initialDocument: initialDocument,
		now:             time.Now,
		newID:           func() domain.MessageID { return domain.MessageID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(m)
	}
	m.resetLocked()
	return m
}

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	Status        domain.Status
	Turn          domain.TurnOwner
	Atmosphere    domain.Atmosphere
	Document      string
	Messages      []domain.Message
	Profile       domain.WitnessProfile
	DeclineReason string
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Status:        m.status,
		Turn:          m.turn,
		Atmosphere:    m.atmosphere,
		Document:      m.document,
		Messages:      append([]domain.Message(nil), m.messages...),
		Profile:       copyProfile(m.profile),
		DeclineReason: m.declineReason,
	}
}

func (m *Machine) Status() domain.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Begin moves IDLE to CONFIGURING. credentialOK reports whether a valid
// credential is stored; without one the transition is refused.
func (m *Machine) Begin(credentialOK bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != domain.StatusIdle {
		return &domain.TransitionError{From: m.status, Op: "begin"}
	}
	if !credentialOK {
		return domain.ErrCredentialMissing
	}
	m.status = domain.StatusConfiguring
	m.profile = domain.WitnessProfile{}
	m.frozen = false
	return nil
}

// Calibrate replaces the profile draft while CONFIGURING.
func (m *Machine) Calibrate(profile domain.WitnessProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != domain.StatusConfiguring || m.frozen {
		return &domain.TransitionError{From: m.status, Op: "calibrate"}
	}
	m.profile = profile.Normalize()
	return nil
}

// StartOrienting freezes the profile and enters ORIENTING, from CONFIGURING or
// as a retry from DECLINED. It returns the profile to send for admission.
func (m *Machine) StartOrienting() (domain.WitnessProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.status {
	case domain.StatusConfiguring, domain.StatusDeclined:
	default:
		return domain.WitnessProfile{}, &domain.TransitionError{From: m.status, Op: "orient"}
	}
	if err := m.profile.Validate(); err != nil {
		return domain.WitnessProfile{}, err
	}

	m.frozen = true
	m.status = domain.StatusOrienting
	m.atmosphere = domain.AtmosphereCalm
	m.declineReason = ""
	return copyProfile(m.profile), nil
}

// Admit applies a PROCEED decision: the session opens with the Architect's
// message and the witness holds the turn.
func (m *Machine) Admit(opening string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != domain.StatusOrienting {
		return &domain.TransitionError{From: m.status, Op: "admit"}
	}
	m.status = domain.StatusActive
	m.appendLocked(domain.Message{Sender: domain.SenderArchitect, Content: opening})
	m.turn = domain.TurnWitness
	return nil
}

// Decline applies a DECLINE decision and keeps the rationale for display.
func (m *Machine) Decline(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != domain.StatusOrienting {
		return &domain.TransitionError{From: m.status, Op: "decline"}
	}
	m.status = domain.StatusDeclined
	m.declineReason = reason
	return nil
}

// Pending is what the orchestrator needs to run a turn, captured atomically
// with the turn flip.
type Pending struct {
	Input    domain.Message
	Document string
	// History is the log as it was before Input was appended.
	History []domain.Message
}

// SubmitMessage records a witness message and hands the turn to the Architect.
func (m *Machine) SubmitMessage(text string) (Pending, error) {
	if strings.TrimSpace(text) == "" {
		return Pending{}, domain.ErrEmptyMessage
	}
	return m.submit(domain.Message{Sender: domain.SenderWitness, Content: text}, "send message")
}

// SubmitSignal records a signal echo (a SYSTEM message flagged as signal) and
// hands the turn to the Architect.
func (m *Machine) SubmitSignal(label string) (Pending, error) {
	return m.submit(domain.Message{Sender: domain.SenderSystem, Content: label, IsSignal: true}, "send signal")
}

func (m *Machine) submit(msg domain.Message, op string) (Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.witnessTurnLocked(op); err != nil {
		return Pending{}, err
	}
	history := append([]domain.Message(nil), m.messages...)
	stored := m.appendLocked(msg)
	m.turn = domain.TurnArchitect
	m.inflight = stored.ID

	return Pending{Input: stored, Document: m.document, History: history}, nil
}

// EditDocument lets the witness rewrite the canvas while holding the turn.
func (m *Machine) EditDocument(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.witnessTurnLocked("edit document"); err != nil {
		return err
	}
	m.document = text
	return nil
}

// Effects reports what applying a TurnResult did.
type Effects struct {
	// Glimmer asks the presentation layer for a transient FOCUS pulse.
	Glimmer  bool
	Ended    bool
	Appended []domain.Message
}

// ApplyTurn applies a decoded Architect response. The order matters: glimmer,
// atmosphere, then either the terminal branch or document and message, and
// finally the turn returns to the witness.
func (m *Machine) ApplyTurn(p Pending, res domain.TurnResult) (Effects, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.architectTurnLocked(p, "apply turn"); err != nil {
		return Effects{}, err
	}

	var fx Effects
	fx.Glimmer = res.Glimmer

	if res.Atmosphere != "" {
		m.atmosphere = res.Atmosphere
	}

	if res.Action == domain.ActionEndSession {
		if doc, ok := res.DocumentUpdate.Get(); ok {
			m.document = doc
		}
		if msg, ok := m.architectMessage(res); ok {
			fx.Appended = append(fx.Appended, m.appendLocked(msg))
		}
		fx.Appended = append(fx.Appended, m.appendLocked(domain.Message{
			Sender:  domain.SenderSystem,
			Content: ConcludedNotice,
		}))
		m.status = domain.StatusEnded
		m.turn = domain.TurnWitness
		m.inflight = ""
		fx.Ended = true
		return fx, nil
	}

	if doc, ok := res.DocumentUpdate.Get(); ok {
		m.document = doc
	}
	if msg, ok := m.architectMessage(res); ok {
		fx.Appended = append(fx.Appended, m.appendLocked(msg))
	}
	m.turn = domain.TurnWitness
	m.inflight = ""
	return fx, nil
}

// FailTurn records a recoverable transport failure and returns the turn to
// the witness. The document and prior messages are left untouched.
func (m *Machine) FailTurn(p Pending, cause error) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.architectTurnLocked(p, "fail turn"); err != nil {
		return domain.Message{}, err
	}
	notice := m.appendLocked(domain.Message{
		Sender:  domain.SenderSystem,
		Content: interruptedPrefix + cause.Error(),
	})
	m.turn = domain.TurnWitness
	m.inflight = ""
	return notice, nil
}

// Return goes back to IDLE from a rest state (or from CONFIGURING, "back").
// The session content is discarded.
func (m *Machine) Return() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.status {
	case domain.StatusIdle, domain.StatusConfiguring, domain.StatusDeclined, domain.StatusEnded:
	default:
		return &domain.TransitionError{From: m.status, Op: "return"}
	}
	m.resetLocked()
	return nil
}

// ForceEnd unconditionally discards the session and returns to IDLE.
func (m *Machine) ForceEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *Machine) resetLocked() {
	m.status = domain.StatusIdle
	m.turn = domain.TurnWitness
	m.atmosphere = domain.AtmosphereCalm
	m.document = m.initialDocument
	m.messages = nil
	m.profile = domain.WitnessProfile{}
	m.frozen = false
	m.declineReason = ""
	m.inflight = ""
}

func (m *Machine) witnessTurnLocked(op string) error {
	if m.status != domain.StatusActive {
		return &domain.TransitionError{From: m.status, Op: op}
	}
	if m.turn != domain.TurnWitness {
		return domain.ErrTurnLocked
	}
	return nil
}

// architectTurnLocked also rejects results for a turn that no longer exists,
// e.g. one issued before a force end.
func (m *Machine) architectTurnLocked(p Pending, op string) error {
	if m.status != domain.StatusActive || m.turn != domain.TurnArchitect || m.inflight != p.Input.ID {
		return fmt.Errorf("%w (turn=%s)", &domain.TransitionError{From: m.status, Op: op}, m.turn)
	}
	return nil
}

// architectMessage builds the Architect's log entry. A turn with only a shadow
// annotation is still recorded.
func (m *Machine) architectMessage(res domain.TurnResult) (domain.Message, bool) {
	text := res.Message.Or("")
	shadow := res.ShadowLog.Or("")
	if text == "" && shadow == "" {
		return domain.Message{}, false
	}
	return domain.Message{
		Sender:      domain.SenderArchitect,
		Content:     text,
		ShadowLog:   shadow,
		ShareShadow: res.ShareShadow && shadow != "",
	}, true
}

func (m *Machine) appendLocked(msg domain.Message) domain.Message {
	msg.ID = m.newID()
	msg.CreatedAt = m.now()
	if msg.Sender == domain.SenderSystem {
		msg.ShadowLog = ""
		msg.ShareShadow = false
	}
	m.messages = append(m.messages, msg)
	return msg
}

func copyProfile(p domain.WitnessProfile) domain.WitnessProfile {
	p.Moods = append([]string(nil), p.Moods...)
	return p
}
