package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/PabloGalante/quiet-room/internal/adapters/llm"
	"github.com/PabloGalante/quiet-room/internal/adapters/storage/memory"
	"github.com/PabloGalante/quiet-room/internal/app/conversation"
	"github.com/PabloGalante/quiet-room/internal/app/protocol"
	"github.com/PabloGalante/quiet-room/internal/app/session"
	"github.com/PabloGalante/quiet-room/internal/domain"
)

func newTestModel(t *testing.T) (model, *llm.MockTransport) {
	t.Helper()

	mock := llm.NewMockTransport()
	creds := memory.NewCredentialStore(llm.SlotName(llm.VendorMock))
	svc := conversation.NewService(session.New(protocol.InitialDocument), mock, creds, conversation.Options{})
	if err := svc.SaveCredential(context.Background(), "k"); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}
	return newModel(context.Background(), svc), mock
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+a":
		return tea.KeyMsg{Type: tea.KeyCtrlA}
	case "ctrl+x":
		return tea.KeyMsg{Type: tea.KeyCtrlX}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(m model, text string) model {
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(model)
	}
	return m
}

func press(m model, k string) (model, tea.Cmd) {
	next, cmd := m.Update(key(k))
	return next.(model), cmd
}

// toActive drives the model through calibration and admission.
func toActive(t *testing.T, m model) model {
	t.Helper()

	m, _ = press(m, "enter") // begin
	if m.snap.Status != domain.StatusConfiguring {
		t.Fatalf("expected CONFIGURING, got %s", m.snap.Status)
	}
	m, _ = press(m, "enter") // no name
	m = typeText(m, "Curious, Playful")
	m, _ = press(m, "enter")
	m = typeText(m, "write together")
	m, _ = press(m, "enter")
	if !m.busy {
		t.Fatalf("expected orienting request in flight")
	}

	// run the request the returned command would have made
	out, err := m.room.Orient(context.Background())
	if err != nil {
		t.Fatalf("Orient failed: %v", err)
	}
	next, _ := m.Update(admissionDoneMsg{out: out, err: err})
	return next.(model)
}

func TestBeginWithoutKeyAsksForOne(t *testing.T) {
	mock := llm.NewMockTransport()
	creds := memory.NewCredentialStore(llm.SlotName(llm.VendorMock))
	svc := conversation.NewService(session.New(""), mock, creds, conversation.Options{})
	m := newModel(context.Background(), svc)

	m, _ = press(m, "enter")
	if !m.keyEntry {
		t.Fatalf("expected key entry mode")
	}

	m = typeText(m, "secret")
	m, _ = press(m, "enter")
	if m.keyEntry {
		t.Fatalf("expected key entry to close after saving")
	}
	if got, _ := creds.Load(context.Background()); got != "secret" {
		t.Fatalf("expected stored key, got %q", got)
	}
}

func TestCalibrationRequiresIntention(t *testing.T) {
	m, mock := newTestModel(t)

	m, _ = press(m, "enter")
	m, _ = press(m, "enter")
	m, _ = press(m, "enter")
	m, cmd := press(m, "enter")

	if cmd != nil || m.busy {
		t.Fatalf("blank intention must not start orientation")
	}
	if m.err != domain.ErrEmptyIntention {
		t.Fatalf("expected ErrEmptyIntention, got %v", m.err)
	}
	if len(mock.Calls()) != 0 {
		t.Fatalf("no request expected")
	}
}

func TestInputLockedWhileArchitectThinks(t *testing.T) {
	m, mock := newTestModel(t)
	m = toActive(t, m)
	if m.snap.Status != domain.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", m.snap.Status)
	}

	m = typeText(m, "hello")
	m, cmd := press(m, "enter")
	if cmd == nil || !m.busy {
		t.Fatalf("expected a turn to start")
	}

	before := m.input.Value()
	m = typeText(m, "more")
	if m.input.Value() != before {
		t.Fatalf("input must be locked during the Architect's turn")
	}
	if _, cmd := press(m, "ctrl+a"); cmd != nil {
		t.Fatalf("signals must be locked during the Architect's turn")
	}

	calls := len(mock.Calls())
	if calls != 1 {
		t.Fatalf("expected only the admission request so far, got %d", calls)
	}
}

func TestForceEndWhileArchitectThinks(t *testing.T) {
	m, _ := newTestModel(t)
	m = toActive(t, m)

	m = typeText(m, "hello")
	m, _ = press(m, "enter")
	if !m.busy {
		t.Fatalf("expected a turn in flight")
	}

	m, _ = press(m, "ctrl+x")
	if m.busy || m.snap.Status != domain.StatusIdle {
		t.Fatalf("expected an idle, unlocked room, got busy=%v status=%s", m.busy, m.snap.Status)
	}

	// the abandoned turn lands late and is dropped
	next, _ := m.Update(turnDoneMsg{err: errors.New("late result"), gen: 0})
	m = next.(model)
	if m.err != nil {
		t.Fatalf("late result must be ignored, got %v", m.err)
	}
	if m.snap.Status != domain.StatusIdle || len(m.snap.Messages) != 0 {
		t.Fatalf("late result must not touch the room")
	}
}

func TestForceEndWhileOrienting(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(m, "enter")
	m, _ = press(m, "enter")
	m, _ = press(m, "enter")
	m = typeText(m, "write together")
	m, _ = press(m, "enter")
	if !m.busy {
		t.Fatalf("expected orienting request in flight")
	}

	m, _ = press(m, "ctrl+x")
	if m.busy || m.snap.Status != domain.StatusIdle {
		t.Fatalf("expected idle after force end, got %s", m.snap.Status)
	}

	out, err := m.room.Orient(context.Background())
	next, _ := m.Update(admissionDoneMsg{out: out, err: err, gen: 0})
	m = next.(model)
	if m.err != nil || m.snap.Status != domain.StatusIdle {
		t.Fatalf("stale admission must be dropped, got err=%v status=%s", m.err, m.snap.Status)
	}
}

func TestMoodCatalogueHighlightsTyped(t *testing.T) {
	out := renderMoodCatalogue("curious, TIRED", newTheme(domain.AtmosphereCalm))
	if !strings.Contains(out, "[Curious]") || !strings.Contains(out, "[Tired]") {
		t.Fatalf("expected typed moods highlighted: %s", out)
	}
	if strings.Contains(out, "[Calm]") {
		t.Fatalf("untyped mood highlighted: %s", out)
	}
}

func TestGlimmerPulsesFocus(t *testing.T) {
	m, _ := newTestModel(t)
	m = toActive(t, m)

	next, cmd := m.Update(turnDoneMsg{out: &conversation.TurnOutput{
		Effects: session.Effects{Glimmer: true},
	}})
	m = next.(model)
	if !m.glimmer || cmd == nil {
		t.Fatalf("expected glimmer pulse with a timer")
	}
	if !strings.Contains(m.View(), "FOCUS") {
		t.Fatalf("expected FOCUS in header during pulse")
	}

	next, _ = m.Update(glimmerDoneMsg{})
	m = next.(model)
	if m.glimmer {
		t.Fatalf("expected pulse to end")
	}
	if m.snap.Atmosphere != domain.AtmosphereCalm {
		t.Fatalf("persisted atmosphere must stay CALM, got %s", m.snap.Atmosphere)
	}
}

func TestTranscriptRedactsPrivateShadow(t *testing.T) {
	msgs := []domain.Message{
		{ID: "1", Sender: domain.SenderWitness, Content: "hi"},
		{ID: "2", Sender: domain.SenderArchitect, Content: "hello", ShadowLog: "a very private thought"},
		{ID: "3", Sender: domain.SenderArchitect, Content: "", ShadowLog: "shared thought", ShareShadow: true},
		{ID: "4", Sender: domain.SenderSystem, Content: protocol.SignalObserve.Label(), IsSignal: true},
	}

	out := renderTranscript(msgs, newTheme(domain.AtmosphereCalm), true)
	if strings.Contains(out, "a very private thought") {
		t.Fatalf("private shadow rendered: %s", out)
	}
	if !strings.Contains(out, protocol.RedactionBar("a very private thought")) {
		t.Fatalf("expected redaction bar")
	}
	if !strings.Contains(out, "shared thought") {
		t.Fatalf("expected shared shadow to be shown")
	}
	if !strings.Contains(out, "[...]") {
		t.Fatalf("expected placeholder for empty architect text")
	}

	hidden := renderTranscript(msgs, newTheme(domain.AtmosphereCalm), false)
	if strings.Contains(hidden, "shared thought") {
		t.Fatalf("shadows toggled off should not render")
	}
}

func TestSplitMoods(t *testing.T) {
	got := splitMoods(" Curious, ,Tired ,")
	if len(got) != 2 || got[0] != "Curious" || got[1] != "Tired" {
		t.Fatalf("unexpected moods %v", got)
	}
}
