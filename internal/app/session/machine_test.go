package session

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/PabloGalante/quiet-room/internal/domain"
)

func newTestMachine() *Machine {
	n := 0
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return New("initial",
		WithIDs(func() domain.MessageID {
			n++
			return domain.MessageID(fmt.Sprintf("m%d", n))
		}),
		WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
	)
}

func activeMachine(t *testing.T) *Machine {
	t.Helper()

	m := newTestMachine()
	if err := m.Begin(true); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := m.Calibrate(domain.WitnessProfile{Intention: "explore"}); err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if _, err := m.StartOrienting(); err != nil {
		t.Fatalf("StartOrienting failed: %v", err)
	}
	if err := m.Admit("hello"); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	return m
}

func TestBeginRequiresCredential(t *testing.T) {
	m := newTestMachine()
	if err := m.Begin(false); !errors.Is(err, domain.ErrCredentialMissing) {
		t.Fatalf("expected ErrCredentialMissing, got %v", err)
	}
	if m.Status() != domain.StatusIdle {
		t.Fatalf("refused Begin must not mutate")
	}
}

func TestInvalidTransitionsDoNotMutate(t *testing.T) {
	m := newTestMachine()
	before := m.Snapshot()

	checks := []error{
		m.Calibrate(domain.WitnessProfile{Intention: "x"}),
		m.Admit("hi"),
		m.Decline("no"),
		m.EditDocument("new"),
	}
	if _, err := m.StartOrienting(); err != nil {
		checks = append(checks, err)
	}
	if _, err := m.SubmitMessage("hi"); err != nil {
		checks = append(checks, err)
	}

	for i, err := range checks {
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("check %d: expected ErrInvalidTransition, got %v", i, err)
		}
	}
	after := m.Snapshot()
	if after.Status != before.Status || after.Document != before.Document || len(after.Messages) != 0 {
		t.Fatalf("invalid transitions mutated the session")
	}
}

func TestOrientingRequiresIntention(t *testing.T) {
	m := newTestMachine()
	_ = m.Begin(true)
	_ = m.Calibrate(domain.WitnessProfile{Name: "Ada", Intention: "  "})

	if _, err := m.StartOrienting(); !errors.Is(err, domain.ErrEmptyIntention) {
		t.Fatalf("expected ErrEmptyIntention, got %v", err)
	}
	if m.Status() != domain.StatusConfiguring {
		t.Fatalf("expected to stay CONFIGURING, got %s", m.Status())
	}
}

func TestProfileFrozenAfterOrienting(t *testing.T) {
	m := newTestMachine()
	_ = m.Begin(true)
	_ = m.Calibrate(domain.WitnessProfile{Intention: "explore", Moods: []string{"Calm"}})
	if _, err := m.StartOrienting(); err != nil {
		t.Fatalf("StartOrienting failed: %v", err)
	}
	if err := m.Decline("not now"); err != nil {
		t.Fatalf("Decline failed: %v", err)
	}
	if err := m.Calibrate(domain.WitnessProfile{Intention: "other"}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected frozen profile, got %v", err)
	}

	profile, err := m.StartOrienting()
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if profile.Intention != "explore" || !profile.HasMood("calm") {
		t.Fatalf("retry must reuse the frozen profile, got %+v", profile)
	}
	if m.Snapshot().DeclineReason != "" {
		t.Fatalf("decline reason must be cleared on retry")
	}
}

func TestAdmitOpensWithArchitectMessage(t *testing.T) {
	m := activeMachine(t)
	snap := m.Snapshot()

	if snap.Status != domain.StatusActive || snap.Turn != domain.TurnWitness || snap.Atmosphere != domain.AtmosphereCalm {
		t.Fatalf("unexpected state %s/%s/%s", snap.Status, snap.Turn, snap.Atmosphere)
	}
	if len(snap.Messages) != 1 || snap.Messages[0].Sender != domain.SenderArchitect || snap.Messages[0].Content != "hello" {
		t.Fatalf("unexpected opening %+v", snap.Messages)
	}
}

func TestTurnLock(t *testing.T) {
	m := activeMachine(t)

	p, err := m.SubmitMessage("hi")
	if err != nil {
		t.Fatalf("SubmitMessage failed: %v", err)
	}
	if len(p.History) != 1 {
		t.Fatalf("history must exclude the new input, got %d", len(p.History))
	}
	if p.Document != "initial" {
		t.Fatalf("unexpected pending document %q", p.Document)
	}

	if _, err := m.SubmitMessage("again"); !errors.Is(err, domain.ErrTurnLocked) {
		t.Fatalf("expected ErrTurnLocked, got %v", err)
	}
	if _, err := m.SubmitSignal(">> SIGNAL"); !errors.Is(err, domain.ErrTurnLocked) {
		t.Fatalf("expected ErrTurnLocked for signal, got %v", err)
	}
	if err := m.EditDocument("x"); !errors.Is(err, domain.ErrTurnLocked) {
		t.Fatalf("expected ErrTurnLocked for edit, got %v", err)
	}
	if got := len(m.Snapshot().Messages); got != 2 {
		t.Fatalf("locked submissions must not append, got %d messages", got)
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	m := activeMachine(t)
	if _, err := m.SubmitMessage(" \n\t"); !errors.Is(err, domain.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if m.Snapshot().Turn != domain.TurnWitness {
		t.Fatalf("turn must stay with the witness")
	}
}

func TestApplyTurnOrder(t *testing.T) {
	m := activeMachine(t)
	p, _ := m.SubmitMessage("hi")

	fx, err := m.ApplyTurn(p, domain.TurnResult{
		Message:        domain.Some("reply"),
		DocumentUpdate: domain.Some("doc v2"),
		ShadowLog:      domain.Some("hidden"),
		Atmosphere:     domain.AtmosphereCharged,
		Glimmer:        true,
		Action:         domain.ActionContinue,
	})
	if err != nil {
		t.Fatalf("ApplyTurn failed: %v", err)
	}
	if !fx.Glimmer || fx.Ended || len(fx.Appended) != 1 {
		t.Fatalf("unexpected effects %+v", fx)
	}

	snap := m.Snapshot()
	if snap.Document != "doc v2" || snap.Atmosphere != domain.AtmosphereCharged || snap.Turn != domain.TurnWitness {
		t.Fatalf("unexpected state %+v", snap)
	}
	last := snap.Messages[len(snap.Messages)-1]
	if last.ShadowLog != "hidden" || last.ShareShadow {
		t.Fatalf("unexpected architect message %+v", last)
	}
}

func TestApplyTurnAbsentFieldsKeepState(t *testing.T) {
	m := activeMachine(t)
	p, _ := m.SubmitMessage("hi")

	fx, err := m.ApplyTurn(p, domain.TurnResult{Atmosphere: domain.AtmosphereVoid, Action: domain.ActionContinue})
	if err != nil {
		t.Fatalf("ApplyTurn failed: %v", err)
	}
	if len(fx.Appended) != 0 {
		t.Fatalf("no message expected without text or shadow")
	}
	if m.Snapshot().Document != "initial" {
		t.Fatalf("absent document update must not change the document")
	}

	p, _ = m.SubmitMessage("again")
	if _, err := m.ApplyTurn(p, domain.TurnResult{DocumentUpdate: domain.Some(""), Action: domain.ActionContinue}); err != nil {
		t.Fatalf("ApplyTurn failed: %v", err)
	}
	if m.Snapshot().Document != "" {
		t.Fatalf("explicit empty update must clear the document")
	}
}

func TestApplyTurnEndSession(t *testing.T) {
	m := activeMachine(t)
	p, _ := m.SubmitMessage("bye")

	fx, err := m.ApplyTurn(p, domain.TurnResult{
		Message:        domain.Some("Goodbye"),
		DocumentUpdate: domain.Some("Final"),
		Atmosphere:     domain.AtmosphereSorrow,
		Action:         domain.ActionEndSession,
	})
	if err != nil {
		t.Fatalf("ApplyTurn failed: %v", err)
	}
	if !fx.Ended || len(fx.Appended) != 2 {
		t.Fatalf("unexpected effects %+v", fx)
	}

	snap := m.Snapshot()
	if snap.Status != domain.StatusEnded || snap.Document != "Final" || snap.Atmosphere != domain.AtmosphereSorrow {
		t.Fatalf("unexpected end state %+v", snap)
	}
	if snap.Messages[len(snap.Messages)-1].Content != ConcludedNotice {
		t.Fatalf("expected concluded notice last")
	}
	if err := m.Return(); err != nil {
		t.Fatalf("Return from ENDED failed: %v", err)
	}
	if snap := m.Snapshot(); snap.Status != domain.StatusIdle || snap.Document != "initial" || len(snap.Messages) != 0 {
		t.Fatalf("Return must reset the session, got %+v", snap)
	}
}

func TestFailTurnKeepsContent(t *testing.T) {
	m := activeMachine(t)
	p, _ := m.SubmitMessage("hi")

	notice, err := m.FailTurn(p, errors.New("connection reset"))
	if err != nil {
		t.Fatalf("FailTurn failed: %v", err)
	}
	if notice.Sender != domain.SenderSystem || notice.Content != ">> CONNECTION INTERRUPTED: connection reset" {
		t.Fatalf("unexpected notice %+v", notice)
	}
	snap := m.Snapshot()
	if snap.Turn != domain.TurnWitness || snap.Document != "initial" || len(snap.Messages) != 3 {
		t.Fatalf("unexpected state after failure %+v", snap)
	}
}

func TestStaleResultRejectedAfterForceEnd(t *testing.T) {
	m := activeMachine(t)
	p, _ := m.SubmitMessage("hi")

	m.ForceEnd()
	if _, err := m.ApplyTurn(p, domain.TurnResult{Message: domain.Some("late")}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected stale result to be rejected, got %v", err)
	}
	if len(m.Snapshot().Messages) != 0 {
		t.Fatalf("stale result must not be appended")
	}
}

func TestSignalEchoAndSystemShadowStripped(t *testing.T) {
	m := activeMachine(t)
	p, err := m.SubmitSignal(">> SIGNAL: OBSERVE (Watching)")
	if err != nil {
		t.Fatalf("SubmitSignal failed: %v", err)
	}
	if !p.Input.IsSignal || p.Input.Sender != domain.SenderSystem {
		t.Fatalf("unexpected echo %+v", p.Input)
	}

	for _, msg := range m.Snapshot().Messages {
		if msg.Sender == domain.SenderSystem && msg.HasShadow() {
			t.Fatalf("SYSTEM messages never carry a shadow")
		}
	}
}

func TestMessageIDsAndTimesAssigned(t *testing.T) {
	m := activeMachine(t)
	_, _ = m.SubmitMessage("hi")

	msgs := m.Snapshot().Messages
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Fatalf("unexpected ids %s %s", msgs[0].ID, msgs[1].ID)
	}
	if !msgs[1].CreatedAt.After(msgs[0].CreatedAt) {
		t.Fatalf("timestamps must advance")
	}
}

func TestReturnRules(t *testing.T) {
	m := activeMachine(t)
	if err := m.Return(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("Return from ACTIVE must be refused, got %v", err)
	}

	c := newTestMachine()
	_ = c.Begin(true)
	if err := c.Return(); err != nil {
		t.Fatalf("Return from CONFIGURING failed: %v", err)
	}
	if c.Status() != domain.StatusIdle {
		t.Fatalf("expected IDLE")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := activeMachine(t)
	snap := m.Snapshot()
	snap.Messages[0].Content = "tampered"

	if m.Snapshot().Messages[0].Content != "hello" {
		t.Fatalf("snapshot must not alias internal state")
	}
}
