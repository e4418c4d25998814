package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"devguard/internal/core/ports"
	"devguard/internal/engine/integrity"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	highStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	mediumStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type model struct {
	list       list.Model
	findings   []integrity.Finding
	info       ports.SnapshotInfo
	lastUpdate time.Time
}

type updateMsg struct {
	findings []integrity.Finding
	info     ports.SnapshotInfo
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case updateMsg:
		m.findings = msg.findings
		m.info = msg.info
		m.lastUpdate = time.Now()

		items := []list.Item{}
		for _, f := range m.findings {
			items = append(items, item{
				title: fmt.Sprintf("%s (%s)", findingTitle(f.Kind), f.Severity),
				desc:  strings.Join(f.Evidence, "; "),
			})
		}
		m.list.SetItems(items)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last update: %v | snapshot v%d | %d nodes | %d edges | coverage %.0f%%",
		m.lastUpdate.Format("15:04:05"), m.info.Version, m.info.NodeCount, m.info.EdgeCount, m.info.Coverage*100))

	var summary string
	if len(m.findings) == 0 {
		summary = successStyle.Render("✅ No findings")
	} else {
		high := 0
		for _, f := range m.findings {
			if f.Severity == integrity.SeverityHigh || f.Severity == integrity.SeverityCritical {
				high++
			}
		}
		summary = fmt.Sprintf("⚠️  %s | %s",
			highStyle.Render(fmt.Sprintf("%d high", high)),
			mediumStyle.Render(fmt.Sprintf("%d total", len(m.findings))))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("Dependency Integrity Monitor"), status, summary)
	return docStyle.Render(header + "\n" + m.list.View())
}

func findingTitle(kind integrity.FindingKind) string {
	switch kind {
	case integrity.FindingCycle:
		return "Dependency Cycle"
	case integrity.FindingGodObject:
		return "God Object"
	case integrity.FindingOrphan:
		return "Orphan"
	case integrity.FindingProductionRisk:
		return "Production Risk"
	default:
		return string(kind)
	}
}

func initialModel() model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Findings"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return model{
		list:       l,
		lastUpdate: time.Now(),
	}
}
