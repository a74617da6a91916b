package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/sony/gobreaker/v2"

	"github.com/zombor/paragon/internal/chat"
	"github.com/zombor/paragon/internal/editor"
	"github.com/zombor/paragon/internal/export"
	"github.com/zombor/paragon/internal/receipt"
	"github.com/zombor/paragon/internal/selection"
	"github.com/zombor/paragon/internal/upload"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	root := ff.NewFlagSet("paragon")
	c := &cli{
		stdout:   os.Stdout,
		prompt:   NewPrompter(os.Stdin, os.Stdout),
		server:   root.StringLong("server", "http://localhost:8000", "receipt backend base URL"),
		authUser: root.StringLong("auth-user", "", "basic auth username (optional)"),
		authPass: root.StringLong("auth-pass", "", "basic auth password (optional)"),
		timeout:  root.DurationLong("timeout", 120*time.Second, "request timeout, scanning is slow"),
		dbPath:   root.StringLong("db", "paragon.db", "preferences file path"),
		logLevel: root.StringEnumLong("log-level", "log level", "warn", "info", "debug", "error"),
	}
	_ = root.StringLong("config", "", "config file (optional)")
	_ = root.BoolLong("version", "Show version information")

	cmd := &ff.Command{
		Name:      "paragon",
		Usage:     "paragon [FLAGS] <SUBCOMMAND>",
		ShortHelp: "scan, browse and export shopping receipts",
		Flags:     root,
	}
	cmd.Subcommands = c.commands(root)

	if err := cmd.Parse(os.Args[1:],
		ff.WithEnvVarPrefix("PARAGON"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithConfigAllowMissingFile(),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(cmd.GetSelected()))
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*c.logLevel)})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.Run(ctx)
	c.close()
	if err != nil {
		if errors.Is(err, ff.ErrNoExec) {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(cmd.GetSelected()))
			os.Exit(1)
		}
		slog.Debug("Command failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", userMessage(err))
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn
	}
	return level
}

// userMessage turns an error into a short message for the terminal
func userMessage(err error) string {
	var statusErr *receipt.HTTPStatusError
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "Serwer jest chwilowo niedostępny, spróbuj za chwilę."
	case receipt.IsTransport(err):
		return "Nie można połączyć się z serwerem."
	case errors.Is(err, receipt.ErrNotFound):
		return "Nie znaleziono paragonu."
	case errors.As(err, &statusErr):
		return fmt.Sprintf("Serwer zwrócił błąd (%s).", statusErr.Status)
	case errors.Is(err, upload.ErrEmptyQueue):
		return "Brak plików w kolejce."
	case errors.Is(err, upload.ErrBusy), errors.Is(err, chat.ErrBusy):
		return "Poczekaj na zakończenie poprzedniej operacji."
	case errors.Is(err, upload.ErrNotFailed):
		return "Ręcznie można wpisać tylko plik odrzucony przez skaner."
	case errors.Is(err, upload.ErrRetryExhausted):
		return "Limit ponowień wyczerpany, wpisz paragon ręcznie lub go odrzuć."
	case errors.Is(err, selection.ErrEmptySelection):
		return "Nie zaznaczono żadnych paragonów."
	case errors.Is(err, selection.ErrDeclined), errors.Is(err, editor.ErrCancelled):
		return "Anulowano."
	case errors.Is(err, export.ErrNothingToExport):
		return "Brak paragonów do eksportu."
	case errors.Is(err, chat.ErrEmptyMessage):
		return "Wiadomość jest pusta."
	default:
		return err.Error()
	}
}
