// Package cmd implements the tg command-line interface.
package cmd

import (
	"io"
	"log/slog"
	"os"

	"taskgraph/internal/config"
	"taskgraph/internal/kvstorage"
	"taskgraph/internal/taskservice"
	"taskgraph/internal/taskstorage"

	"golang.org/x/term"
)

// App holds application state shared across commands.
type App struct {
	Engine  *taskservice.Engine
	Backend taskstorage.Backend
	Persist kvstorage.KVStore // settings document
	Config  config.Config
	DataDir string // path to .taskgraph directory
	Logger  *slog.Logger
	Out     io.Writer
	Err     io.Writer
	JSON    bool // output in JSON format
}

// Close releases the storage backend.
func (a *App) Close() error {
	if a.Backend == nil {
		return nil
	}
	return a.Backend.Close()
}

// SuccessColor returns the string wrapped in green ANSI codes if stdout is a terminal,
// otherwise returns the string unchanged.
func (a *App) SuccessColor(s string) string {
	if a.isTerminal() {
		return "\033[32m" + s + "\033[0m"
	}
	return s
}

// WarnColor returns the string wrapped in orange ANSI codes if stdout is a terminal,
// otherwise returns the string unchanged.
func (a *App) WarnColor(s string) string {
	if a.isTerminal() {
		return "\033[38;5;214m" + s + "\033[0m"
	}
	return s
}

// MutedColor dims finished and deleted tasks on a terminal.
func (a *App) MutedColor(s string) string {
	if a.isTerminal() {
		return "\033[2m" + s + "\033[0m"
	}
	return s
}

func (a *App) isTerminal() bool {
	f, ok := a.Out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
