package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/Carlos-paez/formaciones/internal/config"
	"github.com/Carlos-paez/formaciones/internal/poller"
	"github.com/Carlos-paez/formaciones/internal/tui"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	serverURL := flag.String("server", "", "Override server base URL")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *serverURL != "" {
		cfg.Client.ServerURL = *serverURL
	}

	client := poller.NewClient(cfg.Client.ServerURL, cfg.Client.RequestTimeout)
	ws := poller.NewWSClient(deriveWSURL(cfg.Client.ServerURL))

	m := tui.New(client, ws, cfg.Client)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// deriveWSURL converts http://host:port → ws://host:port/ws
func deriveWSURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return "ws://127.0.0.1:8080/ws"
	}
	scheme := "ws"
	if strings.HasPrefix(u.Scheme, "https") {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, u.Host)
}
