// Command dashboard is an operator TUI: it polls a running oracle's plain
// HTTP surface and renders per-pair attestation status and the DLC
// sub-oracle's current-hour state, refreshing on an interval.
package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	baseURL := os.Getenv("SHO_DASHBOARD_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}

	p := tea.NewProgram(newModel(baseURL))
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

const refreshInterval = 5 * time.Second
