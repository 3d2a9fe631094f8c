package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	gcruntime "github.com/wippyai/gc-runtime"
	"github.com/wippyai/gc-runtime/gc"
	"github.com/wippyai/gc-runtime/heap"
	"github.com/wippyai/gc-runtime/value"
	"github.com/wippyai/gc-runtime/workload"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	phaseStyles = map[gc.Phase]lipgloss.Style{
		gc.PhaseIdle:  lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98")),
		gc.PhaseMark:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")),
		gc.PhaseSweep: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8C00")),
	}

	blackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#333333"))

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const (
	autoInterval = 50 * time.Millisecond
	heapPreview  = 12
	eventHistory = 8
)

type keyMap struct {
	Step   key.Binding
	Finish key.Binding
	Full   key.Binding
	Burst  key.Binding
	Size   key.Binding
	Unroot key.Binding
	Pause  key.Binding
	Auto   key.Binding
	Verify key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Step, k.Full, k.Burst, k.Auto, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Step, k.Finish, k.Full},
		{k.Burst, k.Size, k.Unroot},
		{k.Pause, k.Auto, k.Verify},
		{k.Help, k.Quit},
	}
}

var keys = keyMap{
	Step:   key.NewBinding(key.WithKeys("s", " "), key.WithHelp("s", "step")),
	Finish: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "finish cycle")),
	Full:   key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "full gc")),
	Burst:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "mutator burst")),
	Size:   key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "burst size")),
	Unroot: key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "drop a root")),
	Pause:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
	Auto:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "auto-run")),
	Verify: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "verify")),
	Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// eventLog keeps the most recent collector events for display.
type eventLog struct {
	lines []string
}

func (l *eventLog) OnCollectorEvent(e gc.Event) {
	var line string
	switch e.Type {
	case gc.EventAllocated, gc.EventFreed:
		// Too frequent to show one by one.
		return
	case gc.EventPhase:
		line = fmt.Sprintf("phase %s -> %s", e.From, e.To)
	default:
		line = fmt.Sprintf("%s (%d bytes)", e.Type, e.Size)
	}
	l.lines = append(l.lines, line)
	if len(l.lines) > eventHistory {
		l.lines = l.lines[len(l.lines)-eventHistory:]
	}
}

type tickMsg time.Time

type interactiveModel struct {
	err     error
	c       *gc.Collector
	mem     gcruntime.MemorySizer
	mut     *workload.Mutator
	events  *eventLog
	status  string
	help    help.Model
	bar     progress.Model
	input   textinput.Model
	burst   int
	width   int
	editing bool
	auto    bool
}

func newInteractiveModel(cfg config) *interactiveModel {
	c, mem := newCollector(cfg)
	events := &eventLog{}
	c.Subscribe(events)

	input := textinput.New()
	input.Prompt = "burst size: "
	input.Placeholder = "100"
	input.CharLimit = 7
	input.Width = 10

	return &interactiveModel{
		c:      c,
		mem:    mem,
		mut:    workload.NewMutator(c, cfg.work),
		events: events,
		help:   help.New(),
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		input:  input,
		burst:  100,
	}
}

func tick() tea.Cmd {
	return tea.Tick(autoInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		if !m.auto {
			return m, nil
		}
		m.mut.Tick()
		m.c.Step()
		return m, tick()

	case tea.KeyMsg:
		if m.editing {
			return m.updateInput(msg)
		}
		m.err = nil
		switch {
		case key.Matches(msg, keys.Quit):
			m.c.Close()
			return m, tea.Quit
		case key.Matches(msg, keys.Step):
			m.c.Step()
			m.status = "step"
		case key.Matches(msg, keys.Finish):
			m.c.FinishGC()
			m.status = "finished cycle"
		case key.Matches(msg, keys.Full):
			before := m.c.Objects()
			m.c.FullGC()
			m.status = fmt.Sprintf("full gc freed %d", before-m.c.Objects())
		case key.Matches(msg, keys.Burst):
			res := m.mut.Run(m.burst)
			m.status = res.String()
		case key.Matches(msg, keys.Size):
			m.editing = true
			m.input.SetValue("")
			return m, m.input.Focus()
		case key.Matches(msg, keys.Unroot):
			m.status = m.dropRoot()
		case key.Matches(msg, keys.Pause):
			m.c.SetPaused(!m.c.Paused())
		case key.Matches(msg, keys.Auto):
			m.auto = !m.auto
			if m.auto {
				return m, tick()
			}
		case key.Matches(msg, keys.Verify):
			if err := workload.Verify(m.c); err != nil {
				m.err = err
			} else {
				m.status = "verify ok"
			}
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}
	return m, nil
}

func (m *interactiveModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		n, err := strconv.Atoi(strings.TrimSpace(m.input.Value()))
		if err != nil || n <= 0 {
			m.err = fmt.Errorf("burst size must be a positive number")
		} else {
			m.burst = n
			m.status = fmt.Sprintf("burst size %d", n)
		}
		m.editing = false
		m.input.Blur()
		return m, nil
	case tea.KeyEsc:
		m.editing = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) dropRoot() string {
	roots := m.c.Roots()
	if len(roots) == 0 {
		return "no roots"
	}
	r := roots[len(roots)-1]
	m.c.RemoveFromRoot(r.Value())
	return "dropped root " + r.String()
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("GC Simulator"))
	b.WriteString("\n\n")

	phase := m.c.Phase()
	st := m.c.Stats()
	fmt.Fprintf(&b, "%s %s", labelStyle.Render("phase:"), phaseStyles[phase].Render(phase.String()))
	if m.c.Paused() {
		b.WriteString(errorStyle.Render("  paused"))
	}
	if m.auto {
		b.WriteString(eventStyle.Render("  auto"))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %d   %s %d   %s %d\n",
		labelStyle.Render("objects:"), m.c.Objects(),
		labelStyle.Render("roots:"), len(m.c.Roots()),
		labelStyle.Render("gray:"), m.c.GrayLen())
	fmt.Fprintf(&b, "%s %d   %s %d/%d   %s %d   %s %d\n",
		labelStyle.Render("cycles:"), st.Cycles,
		labelStyle.Render("steps:"), st.MarkSteps, st.SweepSteps,
		labelStyle.Render("forced:"), st.ForcedSweeps,
		labelStyle.Render("freed:"), st.Freed)

	b.WriteString(labelStyle.Render("memory: "))
	if limit := m.mem.Limit(); limit > 0 {
		b.WriteString(m.bar.ViewAs(float64(m.mem.Used()) / float64(limit)))
		fmt.Fprintf(&b, " %d/%d", m.mem.Used(), limit)
	} else {
		fmt.Fprintf(&b, "%d bytes (unbounded)", m.mem.Used())
	}
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("heap (newest first):"))
	b.WriteString("\n")
	b.WriteString(m.heapView())
	b.WriteString("\n")

	if len(m.events.lines) > 0 {
		b.WriteString(labelStyle.Render("events:"))
		b.WriteString("\n")
		for _, line := range m.events.lines {
			b.WriteString(eventStyle.Render("  " + line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.editing {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter confirm • esc cancel"))
		return b.String()
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(keys))
	return b.String()
}

// heapView renders the first heap entries on lines that fit the window.
func (m *interactiveModel) heapView() string {
	var lines []string
	var line strings.Builder
	lineLen := 0
	shown := 0
	m.c.Each(func(ref value.Ref, kind heap.Kind, color heap.Color) bool {
		cell := fmt.Sprintf(" %s %s ", ref, kind)
		if m.width > 0 && lineLen+len(cell) > m.width && lineLen > 0 {
			lines = append(lines, line.String())
			line.Reset()
			lineLen = 0
		}
		if color == heap.Black {
			line.WriteString(blackStyle.Render(cell))
		} else {
			line.WriteString(cell)
		}
		lineLen += len(cell)
		shown++
		return shown < heapPreview*4
	})
	if lineLen > 0 {
		lines = append(lines, line.String())
	}
	if len(lines) > heapPreview {
		lines = lines[:heapPreview]
	}
	if rest := m.c.Objects() - shown; rest > 0 {
		lines = append(lines, helpStyle.Render(fmt.Sprintf(" … %d more", rest)))
	}
	if len(lines) == 0 {
		return helpStyle.Render(" (empty)")
	}
	return strings.Join(lines, "\n")
}

func runInteractive(cfg config) error {
	p := tea.NewProgram(newInteractiveModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
