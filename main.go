// relay TUI - A terminal chat client for the Relay assistant backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/relay-tui/internal/api"
	"github.com/jeranaias/relay-tui/internal/auth"
	"github.com/jeranaias/relay-tui/internal/config"
	"github.com/jeranaias/relay-tui/internal/session"
	"github.com/jeranaias/relay-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version = "0.1.0"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.relay/config.toml)")
	conversationID := flag.String("conversation", "", "conversation id to resume")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("relay " + Version)
		return
	}

	if *configPath == "" {
		path, err := config.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "relay: %v\n", err)
			os.Exit(1)
		}
		*configPath = path
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}

	// The TUI owns stdout; logs go to a file next to the config.
	logFile, err := openLogFile(*configPath)
	if err == nil {
		defer logFile.Close()
		log.SetOutput(logFile)
	}

	tokens, err := auth.NewTokenStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
	if _, ok := tokens.Token(); !ok {
		fmt.Fprintf(os.Stderr, "relay: no access token; set %s or write %s\n",
			auth.EnvToken, tokens.Path())
		os.Exit(1)
	}

	client := api.NewClient(cfg.Backend.URL, tokens).WithTimeout(cfg.Timeout())
	sess := session.New(client)

	// Config edits take effect without a restart where they can.
	watcher, err := config.Watch(*configPath, func(next *config.Config) {
		client.WithTimeout(next.Timeout())
		log.Printf("config reloaded from %s", *configPath)
	})
	if err != nil {
		log.Printf("config watch unavailable: %v", err)
	} else {
		defer watcher.Close()
	}

	if *conversationID != "" {
		sess.LoadConversation(context.Background(), *conversationID)
	}

	program := tea.NewProgram(
		chat.New(sess, cfg.UI.Theme),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

// openLogFile opens (creating if needed) the log file in the config dir.
func openLogFile(configPath string) (*os.File, error) {
	path := filepath.Join(filepath.Dir(configPath), "relay.log")
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}
