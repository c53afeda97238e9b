// Package tui is a terminal monitor for training runs.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/tetrai/search"
	"github.com/brensch/tetrai/trainer"
)

const (
	barWidth     = 40
	recentLength = 10
)

// DoneMsg is sent to the program when training returns.
type DoneMsg struct {
	BestWeights search.Weights
	BestFitness float64
	Err         error
}

type TickMsg time.Time

type closedMsg struct{}

type Model struct {
	updates <-chan trainer.Progress
	cancel  func()

	startTime   time.Time
	now         time.Time
	last        trainer.Progress
	evaluations int
	recent      []string
	done        *DoneMsg
}

// New builds a model that reads progress from updates. cancel is called
// when the user quits.
func New(updates <-chan trainer.Progress, cancel func()) Model {
	now := time.Now()
	return Model{
		updates:   updates,
		cancel:    cancel,
		startTime: now,
		now:       now,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitForUpdate(updates <-chan trainer.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return p
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case TickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()
	case trainer.Progress:
		m.last = msg
		switch msg.Kind {
		case trainer.ProgressIndividual:
			m.evaluations++
		case trainer.ProgressGeneration:
			line := fmt.Sprintf("Gen %3d  best %8.2f  overall %8.2f", msg.Generation, msg.BestInGeneration, msg.BestOverall)
			m.recent = append([]string{line}, m.recent...)
			if len(m.recent) > recentLength {
				m.recent = m.recent[:recentLength]
			}
		}
		return m, waitForUpdate(m.updates)
	case closedMsg:
		return m, nil
	case DoneMsg:
		m.done = &msg
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var sb strings.Builder
	elapsed := m.now.Sub(m.startTime).Round(time.Second)

	p := m.last
	fmt.Fprintf(&sb, "Generation:  %d/%d\n", p.Generation, p.Generations)
	fmt.Fprintf(&sb, "Individual:  %d/%d\n", p.Individual, p.PopulationSize)
	fmt.Fprintf(&sb, "Progress:    %s %5.1f%%\n", bar(p.Percent), p.Percent)
	fmt.Fprintf(&sb, "Best (gen):  %.2f\n", p.BestInGeneration)
	fmt.Fprintf(&sb, "Best (all):  %.2f\n", p.BestOverall)
	fmt.Fprintf(&sb, "Evaluations: %d\n", m.evaluations)
	fmt.Fprintf(&sb, "Elapsed:     %s\n\n", elapsed)

	sb.WriteString("Recent generations:\n")
	for _, line := range m.recent {
		sb.WriteString(line + "\n")
	}

	if m.done != nil {
		if m.done.Err != nil {
			fmt.Fprintf(&sb, "\nStopped: %v\n", m.done.Err)
		}
		fmt.Fprintf(&sb, "\nBest fitness %.2f with weights %v\n", m.done.BestFitness, m.done.BestWeights)
		return sb.String()
	}
	sb.WriteString("\nPress q to stop.\n")
	return sb.String()
}

// Done returns the final message once training has returned.
func (m Model) Done() (DoneMsg, bool) {
	if m.done == nil {
		return DoneMsg{}, false
	}
	return *m.done, true
}

func bar(percent float64) string {
	filled := int(percent / 100 * barWidth)
	filled = max(0, min(barWidth, filled))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}
