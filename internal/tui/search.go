// Package tui is the interactive search console: a Bubble Tea model over
// the daemon's HTTP API with per-session filters adjusted by slash
// commands.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tessellate-ai/recall/internal/domain"
)

// SessionFilters are the sticky filters applied to every query in a
// session until changed by a slash command.
type SessionFilters struct {
	Platform        string
	Limit           int
	Interpretations bool
	Metadata        string
}

// SearchPort runs one query with the session's filters applied.
type SearchPort interface {
	Search(query string, filters SessionFilters) (*domain.SearchResponse, error)
}

// Model is the Bubble Tea model for the search console.
type Model struct {
	port      SearchPort
	input     textinput.Model
	viewport  viewport.Model
	filters   SessionFilters
	results   []domain.SearchResult
	status    string
	ready     bool
	lastQuery string
}

// New creates a search console over port.
func New(port SearchPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a query, or /help for commands"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		port:     port,
		input:    ti,
		viewport: vp,
		filters:  SessionFilters{Limit: domain.DefaultLimit},
		status:   "Connected. Type to search.",
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + filter line, status, input box, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = maxInt(3, vh-rh)
		m.viewport.SetContent(m.renderResults())
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.SetValue("")
			if strings.HasPrefix(line, "/") {
				var cmd tea.Cmd
				m, cmd = m.runCommand(line)
				m.viewport.SetContent(m.renderResults())
				return m, cmd
			}
			m = m.runSearch(line)
			m.viewport.SetContent(m.renderResults())
			return m, nil
		case "up", "pgup":
			m.viewport.LineUp(3)
			return m, nil
		case "down", "pgdown":
			m.viewport.LineDown(3)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) runSearch(query string) Model {
	resp, err := m.port.Search(query, m.filters)
	if err != nil {
		m.status = "Error: " + err.Error()
		m.results = nil
		return m
	}
	m.results = resp.Results
	m.lastQuery = query
	m.status = fmt.Sprintf("%d results for %q in %.0fms", resp.TotalResults, query, resp.ExecutionTimeMS)
	return m
}

// runCommand applies one slash command to the session.
func (m Model) runCommand(line string) (Model, tea.Cmd) {
	fields := strings.Fields(line)
	name := fields[0]
	arg := ""
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}

	switch name {
	case "/quit", "/q", "/exit":
		return m, tea.Quit

	case "/platform":
		m.filters.Platform = arg
		if arg == "" {
			m.status = "Platform filter cleared"
		} else {
			m.status = "Platform: " + arg
		}

	case "/limit":
		var n int
		if _, err := fmt.Sscanf(arg, "%d", &n); err != nil || n < 1 || n > domain.MaxLimit {
			m.status = fmt.Sprintf("Usage: /limit <1-%d>", domain.MaxLimit)
			break
		}
		m.filters.Limit = n
		m.status = fmt.Sprintf("Limit: %d", n)

	case "/interpretations":
		m.filters.Interpretations = !m.filters.Interpretations
		if m.filters.Interpretations {
			m.status = "Only chunks with interpretation data"
		} else {
			m.status = "Interpretation filter off"
		}

	case "/metadata":
		if arg == "" {
			m.filters.Metadata = ""
			m.status = "Metadata filter cleared"
			break
		}
		key, value, found := strings.Cut(arg, ":")
		if !found || key == "" || value == "" {
			m.status = "Usage: /metadata key:value"
			break
		}
		m.filters.Metadata = arg
		m.status = "Metadata: " + arg

	case "/all":
		m.filters = SessionFilters{Limit: domain.DefaultLimit}
		m.status = "All filters cleared"

	case "/help":
		m.status = "/platform <p>  /limit <n>  /interpretations  /metadata k:v  /all  /quit"

	default:
		m.status = fmt.Sprintf("Unknown command %s (/help lists commands)", name)
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("recall")
	filters := filterStyle.Render(m.filterLine())
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "  " + filters + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) filterLine() string {
	parts := []string{fmt.Sprintf("limit=%d", m.filters.Limit)}
	if m.filters.Platform != "" {
		parts = append(parts, "platform="+m.filters.Platform)
	}
	if m.filters.Interpretations {
		parts = append(parts, "interpretations")
	}
	if m.filters.Metadata != "" {
		parts = append(parts, "metadata="+m.filters.Metadata)
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderResults() string {
	if len(m.results) == 0 {
		if m.lastQuery == "" {
			return "No results yet."
		}
		return fmt.Sprintf("Nothing matched %q.", m.lastQuery)
	}

	var b strings.Builder
	for i, r := range m.results {
		title := r.ConversationTitle
		if title == "" {
			title = domain.DefaultTitle
		}
		fmt.Fprintf(&b, "%s %s %s\n",
			scoreStyle.Render(fmt.Sprintf("[%.4f]", r.Score)),
			titleStyle.Render(title),
			platformStyle.Render("("+r.Platform+")"))
		if r.Timestamp != "" {
			fmt.Fprintf(&b, "  %s, turn %d\n", r.Timestamp, r.TurnNumber)
		}
		fmt.Fprintf(&b, "  %s\n", clip(r.UserMessage, m.viewport.Width-4))
		fmt.Fprintf(&b, "  %s\n", clip(r.AssistantMessage, m.viewport.Width-4))
		if r.AboutUser != "" {
			fmt.Fprintf(&b, "  %s\n", aboutStyle.Render(clip("about: "+r.AboutUser, m.viewport.Width-4)))
		}
		if i < len(m.results)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func clip(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if width < 8 {
		width = 8
	}
	if len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	filterStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	scoreStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	titleStyle     = lipgloss.NewStyle().Bold(true)
	platformStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	aboutStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
