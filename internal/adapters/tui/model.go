// Package tui is the terminal witness client. It renders the room from
// session snapshots and forwards witness actions to the conversation service.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/PabloGalante/quiet-room/internal/app/conversation"
	"github.com/PabloGalante/quiet-room/internal/app/protocol"
	"github.com/PabloGalante/quiet-room/internal/app/session"
	"github.com/PabloGalante/quiet-room/internal/domain"
)

// glimmerPulse is how long the FOCUS palette is shown for a glimmer.
const glimmerPulse = 1500 * time.Millisecond

// Room is the slice of the conversation service the client drives.
type Room interface {
	Snapshot() session.Snapshot
	Vendor() string
	HasCredential(ctx context.Context) (bool, error)
	SaveCredential(ctx context.Context, key string) error
	ResetCredential(ctx context.Context) error
	Begin(ctx context.Context) error
	Calibrate(ctx context.Context, profile domain.WitnessProfile) error
	Orient(ctx context.Context) (*conversation.AdmissionOutput, error)
	Send(ctx context.Context, text string) (*conversation.TurnOutput, error)
	Signal(ctx context.Context, sig protocol.Signal) (*conversation.TurnOutput, error)
	EditDocument(ctx context.Context, text string) error
	Return(ctx context.Context) error
	ForceEnd(ctx context.Context)
}

// calibration steps, in order
const (
	stepName = iota
	stepMoods
	stepIntention
)

// gen on the result messages ties them to the request that produced them.
type admissionDoneMsg struct {
	out *conversation.AdmissionOutput
	err error
	gen int
}

type turnDoneMsg struct {
	out *conversation.TurnOutput
	err error
	gen int
}

type glimmerDoneMsg struct{}

type model struct {
	ctx  context.Context
	room Room

	snap session.Snapshot

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model

	width  int
	height int

	keyEntry bool
	step     int
	draft    domain.WitnessProfile
	busy     bool // a remote request is in flight
	gen      int  // bumped on force end
	glimmer  bool
	// showShadows reveals shared annotations inline; private ones stay redacted.
	showShadows bool

	statusLine string
	err        error
}

// New builds the bubbletea model for room.
func New(ctx context.Context, room Room) tea.Model {
	return newModel(ctx, room)
}

// Run starts the client on the terminal and blocks until the witness quits.
func Run(ctx context.Context, room Room) error {
	p := tea.NewProgram(New(ctx, room), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func newModel(ctx context.Context, room Room) model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true

	m := model{
		ctx:         ctx,
		room:        room,
		input:       input,
		timeline:    timeline,
		spinner:     sp,
		showShadows: true,
		statusLine:  "press enter to enter the room",
	}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case admissionDoneMsg:
		if msg.gen != m.gen {
			break
		}
		m.busy = false
		m.handleErr(msg.err)
		if msg.err == nil {
			if msg.out.Decision == domain.DecisionProceed {
				m.statusLine = "the Architect is present"
			} else {
				m.statusLine = "the Architect declined · r to retry · esc to leave"
			}
		}
		m.refresh()
		cmds = append(cmds, m.input.Focus())

	case turnDoneMsg:
		if msg.gen != m.gen {
			break
		}
		m.busy = false
		m.handleErr(msg.err)
		if msg.err == nil {
			switch {
			case msg.out.Interrupted:
				m.statusLine = "connection interrupted · your turn"
			case msg.out.Effects.Ended:
				m.statusLine = "the session has ended · enter to leave"
			default:
				m.statusLine = "your turn"
			}
			if msg.out.Effects.Glimmer {
				m.glimmer = true
				cmds = append(cmds, tea.Tick(glimmerPulse, func(time.Time) tea.Msg { return glimmerDoneMsg{} }))
			}
		}
		m.refresh()
		cmds = append(cmds, m.input.Focus())

	case glimmerDoneMsg:
		m.glimmer = false
		m.refresh()

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if msg.String() == "ctrl+x" && !m.keyEntry && m.snap.Status != domain.StatusIdle {
			cmds = append(cmds, m.forceEnd())
			return m, tea.Batch(cmds...)
		}
		// input is locked while the Architect holds the turn
		if m.busy {
			return m, tea.Batch(cmds...)
		}
		if cmd, handled := m.handleKey(msg); handled {
			cmds = append(cmds, cmd)
			return m, tea.Batch(cmds...)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleKey interprets keys that act on the room. It reports false for keys
// that should go to the text input.
func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	key := msg.String()

	if m.keyEntry {
		switch key {
		case "enter":
			m.saveKey()
			return nil, true
		case "esc":
			m.leaveKeyEntry()
			return nil, true
		}
		return nil, false
	}

	switch m.snap.Status {
	case domain.StatusIdle:
		switch key {
		case "enter":
			m.begin()
			return nil, true
		case "ctrl+k":
			m.enterKeyEntry("enter a new key")
			return nil, true
		case "q", "esc":
			return tea.Quit, true
		}
		return nil, true

	case domain.StatusConfiguring:
		switch key {
		case "enter":
			return m.advanceCalibration(), true
		case "esc":
			m.act(m.room.Return(m.ctx))
			m.refresh()
			return nil, true
		}

	case domain.StatusDeclined:
		switch key {
		case "r", "enter":
			return m.orient(), true
		case "esc", "q":
			m.act(m.room.Return(m.ctx))
			m.refresh()
			return nil, true
		}
		return nil, true

	case domain.StatusEnded:
		switch key {
		case "enter", "esc", "q":
			m.act(m.room.Return(m.ctx))
			m.refresh()
			return nil, true
		}
		return nil, true

	case domain.StatusActive:
		switch key {
		case "enter":
			return m.submit(), true
		case "ctrl+a":
			return m.signal(protocol.SignalAmplify), true
		case "ctrl+s":
			return m.signal(protocol.SignalStabilize), true
		case "ctrl+o":
			return m.signal(protocol.SignalObserve), true
		case "ctrl+r":
			m.showShadows = !m.showShadows
			m.refresh()
			return nil, true
		case "pgup", "pgdown":
			m.timeline, _ = m.timeline.Update(msg)
			return nil, true
		}
	}
	return nil, false
}

func (m *model) begin() {
	err := m.room.Begin(m.ctx)
	if errors.Is(err, domain.ErrCredentialMissing) {
		m.enterKeyEntry(fmt.Sprintf("no %s key stored · paste one and press enter", m.room.Vendor()))
		return
	}
	if m.act(err) {
		m.step = stepName
		m.draft = domain.WitnessProfile{}
		m.input.Placeholder = "your name (optional)"
		m.statusLine = "calibrate the room"
	}
	m.refresh()
}

func (m *model) enterKeyEntry(status string) {
	m.keyEntry = true
	m.input.Reset()
	m.input.EchoMode = textinput.EchoPassword
	m.input.Placeholder = "api key"
	m.statusLine = status
}

func (m *model) leaveKeyEntry() {
	m.keyEntry = false
	m.input.Reset()
	m.input.EchoMode = textinput.EchoNormal
	m.input.Placeholder = ""
}

func (m *model) saveKey() {
	if err := m.room.SaveCredential(m.ctx, m.input.Value()); err != nil {
		m.err = err
		m.statusLine = "key rejected"
		m.input.Reset()
		return
	}
	m.leaveKeyEntry()
	m.err = nil
	m.statusLine = "key stored · press enter to enter the room"
}

// advanceCalibration walks name, moods and intention, then orients.
func (m *model) advanceCalibration() tea.Cmd {
	value := m.input.Value()
	m.input.Reset()

	switch m.step {
	case stepName:
		m.draft.Name = value
		m.step = stepMoods
		m.input.Placeholder = "moods, comma separated"
	case stepMoods:
		m.draft.Moods = splitMoods(value)
		m.step = stepIntention
		m.input.Placeholder = "why are you here?"
	case stepIntention:
		if strings.TrimSpace(value) == "" {
			m.err = domain.ErrEmptyIntention
			return nil
		}
		m.draft.Intention = value
		if !m.act(m.room.Calibrate(m.ctx, m.draft)) {
			return nil
		}
		m.input.Placeholder = ""
		return m.orient()
	}
	return nil
}

// forceEnd discards the session at once, even with a request in flight; that
// request's result is dropped when it lands.
func (m *model) forceEnd() tea.Cmd {
	m.room.ForceEnd(m.ctx)
	m.gen++
	m.busy = false
	m.err = nil
	m.step = stepName
	m.draft = domain.WitnessProfile{}
	m.input.Reset()
	m.input.Placeholder = ""
	m.statusLine = "session discarded · press enter to begin again"
	m.refresh()
	return m.input.Focus()
}

func (m *model) orient() tea.Cmd {
	m.busy = true
	m.err = nil
	m.input.Blur()
	m.statusLine = "the Architect is orienting"

	ctx, room, gen := m.ctx, m.room, m.gen
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		out, err := room.Orient(ctx)
		return admissionDoneMsg{out: out, err: err, gen: gen}
	})
}

func (m *model) submit() tea.Cmd {
	text := m.input.Value()
	if strings.HasPrefix(text, "/doc ") {
		m.input.Reset()
		m.act(m.room.EditDocument(m.ctx, strings.TrimPrefix(text, "/doc ")))
		m.refresh()
		return nil
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	m.input.Reset()
	return m.startTurn(func(ctx context.Context) (*conversation.TurnOutput, error) {
		return m.room.Send(ctx, text)
	})
}

func (m *model) signal(sig protocol.Signal) tea.Cmd {
	return m.startTurn(func(ctx context.Context) (*conversation.TurnOutput, error) {
		return m.room.Signal(ctx, sig)
	})
}

func (m *model) startTurn(run func(context.Context) (*conversation.TurnOutput, error)) tea.Cmd {
	m.busy = true
	m.err = nil
	m.input.Blur()
	m.statusLine = "the Architect is thinking"

	ctx, gen := m.ctx, m.gen
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		out, err := run(ctx)
		return turnDoneMsg{out: out, err: err, gen: gen}
	})
}

// act records err for display and reports whether the action succeeded.
func (m *model) act(err error) bool {
	m.err = err
	return err == nil
}

func (m *model) handleErr(err error) {
	m.err = err
	if errors.Is(err, domain.ErrCredentialRevoked) {
		m.enterKeyEntry("the vendor rejected the key · it was purged · enter a new one")
	}
}

func (m *model) refresh() {
	m.snap = m.room.Snapshot()
	m.timeline.SetContent(renderTranscript(m.snap.Messages, m.theme(), m.showShadows))
	m.timeline.GotoBottom()
}

func (m *model) resize() {
	m.input.Width = maxInt(10, m.width-6)
	m.timeline.Width = maxInt(10, m.width/2-4)
	m.timeline.Height = maxInt(3, m.height-10)
}

func (m model) theme() uiTheme {
	if m.glimmer {
		return newTheme(domain.AtmosphereFocus)
	}
	return newTheme(m.snap.Atmosphere)
}

func (m model) View() string {
	th := m.theme()

	header := th.header.Render(fmt.Sprintf("QUIET ROOM · %s · %s", m.snap.Status, m.atmosphereLabel()))

	var body string
	switch m.snap.Status {
	case domain.StatusIdle:
		body = th.panel.Render("The room is quiet.\n\nPress enter to begin, ctrl+k to replace the key, q to leave.")
	case domain.StatusConfiguring:
		body = th.panel.Render(m.renderCalibration(th))
	case domain.StatusOrienting:
		body = th.panel.Render(m.spinner.View() + " The Architect is orienting itself...")
	case domain.StatusDeclined:
		body = th.panel.Render(th.title.Render("DECLINED") + "\n\n" + m.snap.DeclineReason)
	default:
		body = m.renderSession(th)
	}

	status := th.status.Render(m.statusLine)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	if m.err != nil {
		status = th.errStatus.Render(m.err.Error())
	}

	out := lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		m.input.View(),
		status,
		th.help.Render(m.helpLine()),
	)
	return th.root.Render(out)
}

func (m model) atmosphereLabel() string {
	if m.glimmer {
		return string(domain.AtmosphereFocus) + " *"
	}
	return string(m.snap.Atmosphere)
}

func (m model) renderCalibration(th uiTheme) string {
	var b strings.Builder
	b.WriteString(th.title.Render("CALIBRATION"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "name:      %s\n", m.draft.Name)
	fmt.Fprintf(&b, "moods:     %s\n", strings.Join(m.draft.Moods, ", "))
	fmt.Fprintf(&b, "intention: %s\n", m.draft.Intention)
	if m.step == stepMoods {
		b.WriteString("\n")
		b.WriteString(renderMoodCatalogue(m.input.Value(), th))
	}
	return b.String()
}

// renderMoodCatalogue lists the offered moods, highlighting those already typed.
func renderMoodCatalogue(typed string, th uiTheme) string {
	picked := domain.WitnessProfile{Moods: splitMoods(typed)}
	labels := make([]string, 0, len(domain.WitnessMoods))
	for _, mood := range domain.WitnessMoods {
		if picked.HasMood(mood) {
			labels = append(labels, th.title.Render("["+mood+"]"))
			continue
		}
		labels = append(labels, th.help.Render(mood))
	}
	return strings.Join(labels, " · ")
}

func (m model) renderSession(th uiTheme) string {
	half := maxInt(20, m.width/2-2)
	doc := th.panel.Width(half).Render(th.title.Render("CANVAS") + "\n\n" + m.snap.Document)
	chat := th.panel.Width(half).Render(m.timeline.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, doc, chat)
}

func (m model) helpLine() string {
	switch {
	case m.keyEntry:
		return "enter: save key · esc: cancel"
	case m.snap.Status == domain.StatusActive:
		return "enter: send · /doc <text>: rewrite canvas · ctrl+a amplify · ctrl+s stabilize · ctrl+o observe · ctrl+r shadows · ctrl+x discard"
	case m.snap.Status == domain.StatusConfiguring:
		return "enter: next · esc: back · ctrl+x discard"
	default:
		return "ctrl+c: quit"
	}
}

// renderTranscript draws the visible log. Shadow annotations the Architect
// did not share are shown only as a redaction bar.
func renderTranscript(messages []domain.Message, th uiTheme, showShadows bool) string {
	visible := protocol.Visible(messages)

	var b strings.Builder
	for i, v := range visible {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch v.Label {
		case string(domain.SenderWitness):
			b.WriteString(th.witness.Render("WITNESS") + "\n" + v.Content)
		case string(domain.SenderArchitect):
			b.WriteString(th.architect.Render("ARCHITECT"))
			if v.HasShadow && showShadows {
				b.WriteString("\n")
				if v.Shared {
					b.WriteString(th.shadow.Render("// " + v.Shadow))
				} else {
					b.WriteString(th.redaction.Render(protocol.RedactionBar(messages[i].ShadowLog)))
				}
			}
			b.WriteString("\n" + v.Content)
		case "SIGNAL":
			b.WriteString(th.signal.Render(v.Content))
		default:
			b.WriteString(th.system.Render(v.Content))
		}
	}
	return b.String()
}

func splitMoods(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
