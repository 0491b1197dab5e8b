package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mkefalas/sigmalink/internal/panel"
	"github.com/mkefalas/sigmalink/internal/poll"
	"github.com/mkefalas/sigmalink/internal/transcript"
)

// watchKeyMap holds the dashboard keybindings.
type watchKeyMap struct {
	ArmAway key.Binding
	ArmStay key.Binding
	Disarm  key.Binding
	Quit    key.Binding
}

func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ArmAway, k.ArmStay, k.Disarm, k.Quit}
}

func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.ArmAway, k.ArmStay, k.Disarm, k.Quit}}
}

var watchKeys = watchKeyMap{
	ArmAway: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "arm away"),
	),
	ArmStay: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "arm stay"),
	),
	Disarm: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "disarm"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

type updateMsg poll.Update

type actionDoneMsg panel.Result

// WatchModel is the live dashboard for one panel.
type WatchModel struct {
	name     string
	updates  <-chan poll.Update
	executor *panel.Executor

	snapshot  *transcript.Snapshot
	available bool
	lastErr   string

	acting     bool
	lastAction string
	actionNote string

	spinner spinner.Model
	keys    watchKeyMap
	help    help.Model
	width   int
}

// NewWatchModel builds the dashboard. The coordinator must already be
// started; updates is its subscription channel.
func NewWatchModel(name string, updates <-chan poll.Update, executor *panel.Executor) WatchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	return WatchModel{
		name:      name,
		updates:   updates,
		executor:  executor,
		available: true,
		spinner:   sp,
		keys:      watchKeys,
		help:      help.New(),
		width:     GetTerminalWidth(),
	}
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), m.spinner.Tick)
}

// waitForUpdate blocks on the coordinator subscription.
func (m WatchModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		u, ok := <-m.updates
		if !ok {
			return tea.Quit()
		}
		return updateMsg(u)
	}
}

func (m WatchModel) runAction(action panel.Action) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		return actionDoneMsg(m.executor.Execute(ctx, action))
	}
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if m.width > MaxContentWidth {
			m.width = MaxContentWidth
		}
		return m, nil

	case updateMsg:
		m.available = msg.Available
		if msg.Snapshot != nil {
			m.snapshot = msg.Snapshot
		}
		if msg.Err != nil {
			m.lastErr = msg.Err.Error()
		} else {
			m.lastErr = ""
		}
		return m, m.waitForUpdate()

	case actionDoneMsg:
		m.acting = false
		result := panel.Result(msg)
		if result.Success {
			m.actionNote = SuccessMessageStyle.Render(fmt.Sprintf(
				"%s %s verified (%d attempt(s))", SuccessMarker, result.Action, result.Attempts))
			// The coordinator still holds this snapshot; copy before
			// stamping the verified state so shared data stays immutable.
			if m.snapshot != nil && result.FinalState != "" {
				updated := *m.snapshot
				updated.State = result.FinalState
				m.snapshot = &updated
			}
		} else {
			m.actionNote = ErrorMessageStyle.Render(fmt.Sprintf(
				"%s %s failed: %v", FailureMarker, result.Action, result.Err))
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.ArmAway):
			return m.startAction(panel.ActionArmAway)
		case key.Matches(msg, m.keys.ArmStay):
			return m.startAction(panel.ActionArmStay)
		case key.Matches(msg, m.keys.Disarm):
			return m.startAction(panel.ActionDisarm)
		}
	}
	return m, nil
}

func (m WatchModel) startAction(action panel.Action) (tea.Model, tea.Cmd) {
	if m.acting {
		m.actionNote = HintStyle.Render("another action is still in flight")
		return m, nil
	}
	m.acting = true
	m.lastAction = action.String()
	m.actionNote = ""
	return m, m.runAction(action)
}

// View implements tea.Model.
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("SIGMALINK") +
		SubtitleStyle.Render("  watching "+m.name) + "\n\n")

	if !m.available {
		b.WriteString("  " + UnavailableStyle.Render("PANEL UNAVAILABLE") + "\n")
		if m.lastErr != "" {
			b.WriteString("  " + ErrorMessageStyle.Render(m.lastErr) + "\n")
		}
	} else if m.snapshot == nil {
		b.WriteString("  " + m.spinner.View() + HintStyle.Render(" waiting for first poll...") + "\n")
	} else {
		b.WriteString(m.renderSnapshot())
	}

	b.WriteString("\n")
	if m.acting {
		b.WriteString("  " + m.spinner.View() +
			HintStyle.Render(" running "+m.lastAction+"...") + "\n")
	} else if m.actionNote != "" {
		b.WriteString("  " + m.actionNote + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys) + "\n")

	return PanelBoxStyle(m.width).Render(b.String())
}

func (m WatchModel) renderSnapshot() string {
	s := m.snapshot
	var b strings.Builder

	b.WriteString("  " + StateStyle(s.State).Render(StateLabel(s.State)))
	if s.ZonesBypassed {
		b.WriteString("  " + ZoneBypassStyle.Render("(zones bypassed)"))
	}
	b.WriteString("\n\n")

	b.WriteString(LabelStyle.Render("Battery") +
		ValueStyle.Render(fmt.Sprintf("%.1f V", s.BatteryVolt)) + "\n")
	mains := SuccessMarker + " on"
	if !s.ACPower {
		mains = FailureMarker + " off"
	}
	b.WriteString(LabelStyle.Render("Mains 230V") + ValueStyle.Render(mains) + "\n")
	b.WriteString(LabelStyle.Render("Updated") +
		ValueStyle.Render(s.CapturedAt.Format("15:04:05")) + "\n\n")

	for _, z := range s.Zones {
		marker := ZoneClosedStyle.Render(ClosedMarker)
		state := ZoneClosedStyle.Render("closed")
		if z.Open {
			marker = ZoneOpenStyle.Render(OpenMarker)
			state = ZoneOpenStyle.Render("open")
		}
		line := fmt.Sprintf("  %s %-20s %s", marker, z.Name, state)
		if z.Bypassed {
			line += "  " + ZoneBypassStyle.Render("bypassed")
		}
		b.WriteString(line + "\n")
	}

	return b.String()
}

// RunWatch runs the dashboard until the user quits.
func RunWatch(name string, updates <-chan poll.Update, executor *panel.Executor) error {
	p := tea.NewProgram(NewWatchModel(name, updates, executor), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
