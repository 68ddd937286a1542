package viz

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/odesim/internal/dynamo"
	"github.com/san-kum/odesim/internal/trajectory"
)

// Inspector is a bubbletea model that scrubs through the dense output of a
// finished integration. Every cursor move is a random-time query on the
// trajectory.
type Inspector struct {
	title   string
	traj    *trajectory.Model
	times   []float64
	samples []dynamo.State

	t       float64
	y, yDot dynamo.State
	err     error

	xIdx, yIdx    int
	theme         int
	styles        Styles
	width, height int
}

// NewInspector samples traj for the overview plots and places the cursor at
// the initial time.
func NewInspector(title string, traj *trajectory.Model, samples int) (Inspector, error) {
	times, states, err := traj.Sample(samples)
	if err != nil {
		return Inspector{}, err
	}
	m := Inspector{
		title:   title,
		traj:    traj,
		times:   times,
		samples: states,
		yIdx:    1,
		styles:  NewStyles(Themes[0]),
		width:   100,
		height:  30,
	}
	if len(states[0]) < 2 {
		m.yIdx = 0
	}
	return m.seek(traj.InitialTime()), nil
}

func (m Inspector) Init() tea.Cmd { return nil }

// Time returns the cursor time.
func (m Inspector) Time() float64 { return m.t }

// State returns the interpolated primary state at the cursor.
func (m Inspector) State() dynamo.State { return m.y }

func (m Inspector) seek(t float64) Inspector {
	lo, hi := m.traj.InitialTime(), m.traj.FinalTime()
	if lo > hi {
		lo, hi = hi, lo
	}
	t = math.Max(lo, math.Min(hi, t))
	if err := m.traj.SetInterpolatedTime(t); err != nil {
		m.err = err
		return m
	}
	m.t = t
	m.y = m.traj.InterpolatedState()
	m.yDot = m.traj.InterpolatedDerivatives()
	m.err = nil
	return m
}

func (m Inspector) span() float64 { return m.traj.FinalTime() - m.traj.InitialTime() }

func (m Inspector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Inspector) handleKey(msg tea.KeyMsg) (Inspector, tea.Cmd) {
	dim := len(m.y)
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "right", "l":
		m = m.seek(m.t + m.span()/100)
	case "left", "h":
		m = m.seek(m.t - m.span()/100)
	case ".":
		m = m.seek(m.t + m.span()/1000)
	case ",":
		m = m.seek(m.t - m.span()/1000)
	case "home", "g":
		m = m.seek(m.traj.InitialTime())
	case "end", "G":
		m = m.seek(m.traj.FinalTime())
	case "x":
		m.xIdx = (m.xIdx + 1) % dim
	case "y":
		m.yIdx = (m.yIdx + 1) % dim
	case "t":
		m.theme = (m.theme + 1) % len(Themes)
		m.styles = NewStyles(Themes[m.theme])
	}
	return m, nil
}

func (m Inspector) column(idx int) []float64 {
	out := make([]float64, len(m.samples))
	for i, s := range m.samples {
		out[i] = s[idx]
	}
	return out
}

func (m Inspector) phasePlot(w, h int) string {
	xs, ys := m.column(m.xIdx), m.column(m.yIdx)
	if m.xIdx == m.yIdx {
		xs = m.times
	}
	vp := Fit(xs, ys)
	c := NewCanvas(w, h)
	c.Polyline(vp, xs, ys)
	if m.xIdx == m.yIdx {
		c.Mark(vp, m.t, m.y[m.yIdx])
	} else {
		c.Mark(vp, m.y[m.xIdx], m.y[m.yIdx])
	}
	return m.styles.Plot.Render(strings.TrimRight(c.String(), "\n"))
}

func (m Inspector) valueTable() string {
	var b strings.Builder
	b.WriteString(m.styles.MetricLabel.Render(fmt.Sprintf("%-4s %12s %12s", "", "y", "y'")))
	b.WriteByte('\n')
	for i := range m.y {
		label := fmt.Sprintf("y%-3d", i)
		if i == m.xIdx || i == m.yIdx {
			label = m.styles.Selected.Render(label)
		} else {
			label = m.styles.MetricLabel.Render(label)
		}
		b.WriteString(label)
		b.WriteString(m.styles.MetricValue.Render(fmt.Sprintf(" %12.6g %12.6g", m.y[i], m.yDot[i])))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func (m Inspector) View() string {
	w := clamp(m.width-44, 20, 80)
	h := clamp(m.height-12, 6, 24)

	header := m.styles.Header.Render(fmt.Sprintf("%s  t = %.6g", m.title, m.t))

	axes := fmt.Sprintf("y%d vs y%d", m.yIdx, m.xIdx)
	if m.xIdx == m.yIdx {
		axes = fmt.Sprintf("y%d vs t", m.yIdx)
	}
	plot := m.styles.Panel.Render(m.styles.Title.Render(axes) + "\n" + m.phasePlot(w, h))
	values := m.styles.Panel.Render(m.styles.Title.Render("state") + "\n" + m.valueTable())
	body := lipgloss.JoinHorizontal(lipgloss.Top, plot, values)

	progress := 0.0
	if s := m.span(); s != 0 {
		progress = (m.t - m.traj.InitialTime()) / s
	}
	lines := []string{
		header,
		body,
		m.styles.Sparkline(m.column(m.xIdx), w+20),
		m.styles.ProgressBar(progress, w+20),
	}
	if m.err != nil {
		lines = append(lines, m.styles.SparkLow.Render(m.err.Error()))
	}
	lines = append(lines, m.styles.KeyHint.Render("←/→ scrub  ,/. fine  g/G ends  x/y axes  t theme  q quit"))
	return strings.Join(lines, "\n")
}

// RunInspector starts the inspector full screen and blocks until it exits.
func RunInspector(m Inspector) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
