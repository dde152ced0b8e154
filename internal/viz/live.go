package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/san-kum/ljmetad/internal/dynamo"
)

const (
	width           = 40
	height          = 16
	historyCapacity = 600
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(50)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// StepMsg carries one sample from the run goroutine.
type StepMsg dynamo.Sample

// DoneMsg ends the live view.
type DoneMsg struct{ Err error }

// Model follows a running simulation. It never touches the simulator; the
// run feeds it through a Monitor.
type Model struct {
	title   string
	steps   int
	cancel  context.CancelFunc
	canvas  *Canvas
	bounds  Bounds
	bond    float64
	last    dynamo.Sample
	seen    bool
	energy  []float64
	temp    []float64
	started time.Time
	frozen  bool
	done    bool
	err     error
}

// NewModel prepares a view of a run of steps steps. cancel is called when
// the user quits early. bond is the distance below which two particles are
// joined on the canvas.
func NewModel(title string, steps int, bond float64, cancel context.CancelFunc) Model {
	return Model{
		title:   title,
		steps:   steps,
		cancel:  cancel,
		canvas:  NewCanvas(width, height),
		bond:    bond,
		energy:  make([]float64, 0, historyCapacity),
		temp:    make([]float64, 0, historyCapacity),
		started: time.Now(),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case " ":
			m.frozen = !m.frozen
		}
	case StepMsg:
		m.observe(dynamo.Sample(msg))
	case DoneMsg:
		m.done, m.err = true, msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) observe(s dynamo.Sample) {
	if m.frozen {
		return
	}
	if !m.seen {
		m.bounds = FitBounds(s.Positions, 2)
		m.seen = true
	}
	m.last = s
	m.energy = appendBounded(m.energy, s.Total())
	m.temp = appendBounded(m.temp, s.Temperature)
}

func appendBounded(h []float64, v float64) []float64 {
	if len(h) == historyCapacity {
		copy(h, h[1:])
		h = h[:len(h)-1]
	}
	return append(h, v)
}

func (m Model) View() string {
	m.canvas.Clear()
	if m.seen {
		m.canvas.DrawParticles(m.bounds, m.last.Positions, m.bond)
	}
	canvasView := canvasStyle.Render(m.canvas.String())

	phase := "RUNNING"
	switch {
	case m.done && m.err != nil:
		phase = "FAILED"
	case m.done:
		phase = "DONE"
	case m.frozen:
		phase = "FROZEN"
	}

	var s strings.Builder
	s.WriteString(Title.Render(strings.ToUpper(m.title)) + "  " + Badge(phase) + "\n\n")
	progress := 0.0
	if m.steps > 0 {
		progress = float64(m.last.Step) / float64(m.steps)
	}
	s.WriteString(ProgressBar(progress, 30, phase) + fmt.Sprintf(" %3.0f%%\n\n", 100*progress))
	s.WriteString(Row("Step", humanize.Comma(int64(m.last.Step))))
	s.WriteString(Row("Time", fmt.Sprintf("%.3f", m.last.Time)))
	s.WriteString(Row("Potential", fmt.Sprintf("%.5f", m.last.Potential)))
	s.WriteString(Row("Total", fmt.Sprintf("%.5f", m.last.Total())))
	s.WriteString(Row("kT", fmt.Sprintf("%.4f", m.last.Temperature)))
	s.WriteString(Row("Elapsed", time.Since(m.started).Round(time.Second).String()) + "\n")
	s.WriteString(labelStyle.Render("Energy") + Sparkline(m.energy, 30) + "\n")
	s.WriteString(labelStyle.Render("kT") + Sparkline(m.temp, 30) + "\n")
	s.WriteString(helpStyle.Render("Q:Stop  SPACE:Freeze"))

	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
}

// Monitor is a run observer forwarding every Every-th sample to a program.
type Monitor struct {
	Every int
	send  func(tea.Msg)
}

func NewMonitor(p *tea.Program, every int) *Monitor {
	if every <= 0 {
		every = 1
	}
	return &Monitor{Every: every, send: p.Send}
}

func (m *Monitor) OnStep(s dynamo.Sample) {
	if s.Step%m.Every != 0 {
		return
	}
	s.Positions = s.Positions.Clone()
	s.Velocities = nil
	m.send(StepMsg(s))
}
