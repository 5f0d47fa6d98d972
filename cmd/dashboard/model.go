package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D4AA")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00D4AA"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4444"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

type routeStatus struct {
	Route             string `json:"route"`
	OK                bool   `json:"ok"`
	Error             string `json:"error,omitempty"`
	Degraded          bool   `json:"degraded,omitempty"`
	StablecoinDropped bool   `json:"stablecoin_dropped,omitempty"`
}

type oracleStatus struct {
	Pairs []routeStatus `json:"pairs"`
}

type dlcStatus struct {
	Pair              string `json:"pair"`
	CurrentEventID    string `json:"current_event_id"`
	CurrentAttested   bool   `json:"current_attested"`
	CurrentAnnounced  bool   `json:"current_announced"`
}

type refreshMsg struct {
	oracle  oracleStatus
	dlc     dlcStatus
	healthy bool
	err     error
	at      time.Time
}

type tickMsg time.Time

type model struct {
	baseURL    string
	client     *http.Client
	width      int
	lastResult refreshMsg
	loading    bool
}

func newModel(baseURL string) *model {
	return &model{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
		loading: true,
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), tea.EnterAltScreen)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, m.fetch()
		}
	case refreshMsg:
		m.lastResult = msg
		m.loading = false
		return m, tickAfter(refreshInterval)
	case tickMsg:
		return m, m.fetch()
	}
	return m, nil
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("sho oracle dashboard") + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("target: %s", m.baseURL)) + "\n\n")

	if m.loading && m.lastResult.at.IsZero() {
		b.WriteString("fetching status...\n")
		return b.String()
	}

	if m.lastResult.err != nil {
		b.WriteString(errStyle.Render("unreachable: "+m.lastResult.err.Error()) + "\n")
	} else {
		healthLine := okStyle.Render("healthy")
		if !m.lastResult.healthy {
			healthLine = errStyle.Render("unhealthy")
		}
		b.WriteString(headerStyle.Render("status: ") + healthLine + "\n\n")

		b.WriteString(headerStyle.Render("pairs") + "\n")
		for _, p := range m.lastResult.oracle.Pairs {
			b.WriteString(renderRoute(p) + "\n")
		}

		b.WriteString("\n" + headerStyle.Render("dlc sub-oracle") + "\n")
		b.WriteString(renderDLC(m.lastResult.dlc) + "\n")
	}

	b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("last updated %s  ·  q quit  ·  r refresh", m.lastResult.at.Format("15:04:05"))))
	return b.String()
}

func renderRoute(p routeStatus) string {
	if !p.OK {
		return fmt.Sprintf("  %-16s %s", p.Route, errStyle.Render("FAILED: "+p.Error))
	}
	status := okStyle.Render("ok")
	if p.Degraded {
		status = warnStyle.Render("degraded")
	}
	extra := ""
	if p.StablecoinDropped {
		extra = dimStyle.Render(" (stablecoin dropped)")
	}
	return fmt.Sprintf("  %-16s %s%s", p.Route, status, extra)
}

func renderDLC(d dlcStatus) string {
	announced := okStyle.Render("yes")
	if !d.CurrentAnnounced {
		announced = warnStyle.Render("no")
	}
	attested := okStyle.Render("yes")
	if !d.CurrentAttested {
		attested = warnStyle.Render("no")
	}
	return fmt.Sprintf("  pair=%s event=%s announced=%s attested=%s", d.Pair, d.CurrentEventID, announced, attested)
}

func tickAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) fetch() tea.Cmd {
	return func() tea.Msg {
		var result refreshMsg
		result.at = time.Now()

		healthResp, err := m.client.Get(m.baseURL + "/health")
		if err != nil {
			result.err = fmt.Errorf("health check: %w", err)
			return result
		}
		healthResp.Body.Close()
		result.healthy = healthResp.StatusCode == http.StatusOK

		if err := getJSON(m.client, m.baseURL+"/oracle/status", &result.oracle); err != nil {
			result.err = fmt.Errorf("oracle status: %w", err)
			return result
		}
		if err := getJSON(m.client, m.baseURL+"/dlc/oracle/status", &result.dlc); err != nil {
			result.err = fmt.Errorf("dlc status: %w", err)
			return result
		}

		return result
	}
}

func getJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
