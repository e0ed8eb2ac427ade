package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hirecs/hirecs/pkg/observability"
)

// passMsg reports one committed clustering pass to the progress view.
type passMsg struct {
	pass     int
	clusters int
	delta    float64
}

// doneMsg ends the progress view.
type doneMsg struct{}

// tickMsg advances the spinner frame.
type tickMsg time.Time

// progressModel is the bubbletea model of the live clustering view: one
// line per finished pass plus an animated work indicator.
type progressModel struct {
	passes []passMsg
	frame  int
	done   bool
}

var progressFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m progressModel) Init() tea.Cmd { return tick() }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case passMsg:
		m.passes = append(m.passes, msg)
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tickMsg:
		m.frame++
		return m, tick()
	}
	return m, nil
}

func (m progressModel) View() string {
	var sb strings.Builder
	for _, p := range m.passes {
		sb.WriteString(fmt.Sprintf("%s pass %d: %d clusters, dQ %+.6g\n",
			styleSuccess.Render("✓"), p.pass, p.clusters, p.delta))
	}
	if !m.done {
		frame := progressFrames[m.frame%len(progressFrames)]
		sb.WriteString(styleIconSpinner.Render(frame))
		sb.WriteString(styleDim.Render(" clustering..."))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// teaHooks forwards clustering events into a running bubbletea program.
type teaHooks struct {
	observability.NoopClusteringHooks
	prog *tea.Program
}

func (h teaHooks) OnPassComplete(ctx context.Context, pass, clusterCount int, deltaMod float64) {
	h.prog.Send(passMsg{pass: pass, clusters: clusterCount, delta: deltaMod})
}

// withPassProgress runs fn under a live pass-by-pass progress view.
// The view owns stderr until fn returns.
func withPassProgress(fn func() error) error {
	prog := tea.NewProgram(progressModel{}, tea.WithoutSignalHandler(), tea.WithOutput(os.Stderr))
	observability.SetClusteringHooks(teaHooks{prog: prog})
	defer observability.SetClusteringHooks(observability.NoopClusteringHooks{})

	errc := make(chan error, 1)
	go func() {
		errc <- fn()
		prog.Send(doneMsg{})
	}()
	if _, err := prog.Run(); err != nil {
		return err
	}
	return <-errc
}
