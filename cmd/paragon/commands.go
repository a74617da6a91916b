package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/paragon/internal/app"
	"github.com/zombor/paragon/internal/dashboard"
	"github.com/zombor/paragon/internal/editor"
	"github.com/zombor/paragon/internal/export"
	"github.com/zombor/paragon/internal/receipt"
	"github.com/zombor/paragon/internal/upload"
)

// cli holds the parsed root flags and the lazily opened application
type cli struct {
	stdout io.Writer
	prompt *Prompter

	server   *string
	authUser *string
	authPass *string
	timeout  *time.Duration
	dbPath   *string
	logLevel *string

	app   *app.App
	prefs *receipt.BoltPreferences
}

// open connects to the backend and loads the receipt list
func (c *cli) open(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}

	prefs, err := receipt.NewBoltPreferences(*c.dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening preferences: %w", err)
	}

	client := receipt.NewClient(*c.server,
		receipt.WithTimeout(*c.timeout),
		receipt.WithBasicAuth(receipt.BasicAuth{Username: *c.authUser, Password: *c.authPass}),
	)
	a, err := app.New(client, prefs)
	if err != nil {
		prefs.Close()
		return nil, err
	}
	if err := a.Reload(ctx); err != nil {
		prefs.Close()
		return nil, err
	}

	c.app, c.prefs = a, prefs
	return a, nil
}

func (c *cli) close() {
	if c.prefs != nil {
		if err := c.prefs.Close(); err != nil {
			slog.Error("Failed to close preferences", "error", err)
		}
	}
}

func (c *cli) println(a ...any) {
	fmt.Fprintln(c.stdout, a...)
}

// filterFlags registers --query, --from and --to on fs
func filterFlags(fs *ff.FlagSet) func() (dashboard.Filter, error) {
	query := fs.StringLong("query", "", "search store, category and product names")
	from := fs.StringLong("from", "", "first day to include (YYYY-MM-DD)")
	to := fs.StringLong("to", "", "last day to include (YYYY-MM-DD)")
	return func() (dashboard.Filter, error) {
		return parseFilter(*query, *from, *to)
	}
}

func parseFilter(query, from, to string) (dashboard.Filter, error) {
	f := dashboard.Filter{Query: query}
	var err error
	if f.From, err = receipt.NormalizeDate(from); err != nil {
		return f, fmt.Errorf("--from: %w", err)
	}
	if f.To, err = receipt.NormalizeDate(to); err != nil {
		return f, fmt.Errorf("--to: %w", err)
	}
	return f, nil
}

func parseIDs(args []string) ([]int, error) {
	var ids []int
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid receipt id %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *cli) commands(root *ff.FlagSet) []*ff.Command {
	return []*ff.Command{
		c.listCommand(root),
		c.statsCommand(root),
		c.showCommand(root),
		c.uploadCommand(root),
		c.newCommand(root),
		c.editCommand(root),
		c.deleteCommand(root),
		c.exportCommand(root),
		c.chatCommand(root),
		c.themeCommand(root),
		c.shellCommand(root),
	}
}

func (c *cli) listCommand(root *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("list").SetParent(root)
	filter := filterFlags(fs)
	return &ff.Command{
		Name:      "list",
		Usage:     "paragon list [--query Q] [--from DATE] [--to DATE]",
		ShortHelp: "list receipts, newest first",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			f, err := filter()
			if err != nil {
				return err
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			a.SetFilter(f)
			c.println(a.Renderer().List(a.View().Receipts, false, nil))
			return nil
		},
	}
}

func (c *cli) statsCommand(root *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("stats").SetParent(root)
	filter := filterFlags(fs)
	return &ff.Command{
		Name:      "stats",
		Usage:     "paragon stats [--query Q] [--from DATE] [--to DATE]",
		ShortHelp: "show totals, spend per category and the timeline",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			f, err := filter()
			if err != nil {
				return err
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			a.SetFilter(f)
			c.println(a.Renderer().Dashboard(a.View()))
			return nil
		},
	}
}

func (c *cli) showCommand(root *ff.FlagSet) *ff.Command {
	return &ff.Command{
		Name:      "show",
		Usage:     "paragon show <ID>",
		ShortHelp: "show one receipt with its products",
		Flags:     ff.NewFlagSet("show").SetParent(root),
		Exec: func(ctx context.Context, args []string) error {
			ids, err := parseIDs(args)
			if err != nil || len(ids) != 1 {
				return errors.New("show takes exactly one receipt id")
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			r, err := a.Receipt(ids[0])
			if err != nil {
				return err
			}
			c.println(a.Renderer().Receipt(r))
			return nil
		},
	}
}

func (c *cli) uploadCommand(root *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("upload").SetParent(root)
	interactive := fs.BoolLong("interactive", "ask what to do with files the scanner rejects")
	return &ff.Command{
		Name:      "upload",
		Usage:     "paragon upload [--interactive] <FILE>...",
		ShortHelp: "scan receipt images (JPEG, PNG, HEIC, PDF) in one batch",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return errors.New("upload needs at least one file")
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			for _, path := range args {
				f, err := upload.LoadFile(path)
				if err != nil {
					return err
				}
				a.Queue().Enqueue(f)
			}
			if err := c.submit(ctx, a); err != nil {
				return err
			}
			if *interactive {
				return c.resolveFailures(ctx, a)
			}
			return nil
		},
	}
}

func (c *cli) submit(ctx context.Context, a *app.App) error {
	c.println(fmt.Sprintf("Wysyłanie %d plików...", a.Queue().Len()))
	report, err := a.SubmitUploads(ctx)
	if err != nil {
		return err
	}
	c.println(fmt.Sprintf("Zapisano: %d, błędy: %d", len(report.Saved), len(report.Failed)))
	if len(report.Failed) > 0 {
		c.println(a.Renderer().Queue(a.Queue().Items(), a.Queue().Policy()))
	}
	return nil
}

// resolveFailures offers retry, manual entry or discard for every failed file
func (c *cli) resolveFailures(ctx context.Context, a *app.App) error {
	for _, item := range a.Queue().Items() {
		if item.State != upload.StateFailed {
			continue
		}
		if err := c.resolveFailure(ctx, a, item.Token); err != nil {
			return err
		}
	}
	return nil
}

func (c *cli) resolveFailure(ctx context.Context, a *app.App, token string) error {
	for {
		item, err := a.Queue().Get(token)
		if err != nil {
			// Saved, taken for manual entry or discarded
			return nil
		}
		actions, err := a.Queue().Actions(token)
		if err != nil || len(actions) == 0 {
			return nil
		}

		names := make([]string, len(actions))
		for i, action := range actions {
			names[i] = action.String()
		}
		answer := c.prompt.Ask(fmt.Sprintf("%s: %s (%s)", item.Filename, item.Reason, strings.Join(names, "/")), "")
		switch answer {
		case upload.ActionRetry.String():
			retried, err := a.RetryUpload(ctx, token)
			if err != nil && !errors.Is(err, upload.ErrRetryExhausted) {
				c.println(userMessage(err))
				continue
			}
			if retried.State == upload.StateDone {
				c.println(fmt.Sprintf("Zapisano %s", item.Filename))
			}
		case upload.ActionManualEntry.String():
			form, err := a.ManualEntry(token)
			if err != nil {
				return err
			}
			return c.editAndSave(ctx, a, form)
		case upload.ActionDiscard.String():
			return a.Queue().Remove(token)
		case "":
			return nil
		default:
			c.println(fmt.Sprintf("Nieznana akcja %q", answer))
		}
	}
}

// editAndSave runs the editor until the receipt is saved or the user gives up
func (c *cli) editAndSave(ctx context.Context, a *app.App, form *editor.Form) error {
	for {
		c.prompt.EditForm(form)
		result, err := a.SaveForm(ctx, form, c.prompt)
		if err == nil {
			if result.Created {
				c.println("Dodano paragon.")
			} else {
				c.println("Zapisano zmiany.")
			}
			return nil
		}
		if errors.Is(err, editor.ErrCancelled) {
			c.println("Anulowano.")
			return nil
		}
		c.println(userMessage(err))
		if !c.prompt.Confirm("Poprawić i spróbować ponownie?") {
			return err
		}
	}
}

func (c *cli) newCommand(root *ff.FlagSet) *ff.Command {
	return &ff.Command{
		Name:      "new",
		Usage:     "paragon new",
		ShortHelp: "type in a receipt by hand",
		Flags:     ff.NewFlagSet("new").SetParent(root),
		Exec: func(ctx context.Context, args []string) error {
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			return c.editAndSave(ctx, a, a.NewForm())
		},
	}
}

func (c *cli) editCommand(root *ff.FlagSet) *ff.Command {
	return &ff.Command{
		Name:      "edit",
		Usage:     "paragon edit <ID>",
		ShortHelp: "edit a receipt and reconcile its products with the total",
		Flags:     ff.NewFlagSet("edit").SetParent(root),
		Exec: func(ctx context.Context, args []string) error {
			ids, err := parseIDs(args)
			if err != nil || len(ids) != 1 {
				return errors.New("edit takes exactly one receipt id")
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			form, err := a.EditForm(ids[0])
			if err != nil {
				return err
			}
			return c.editAndSave(ctx, a, form)
		},
	}
}

func (c *cli) deleteCommand(root *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("delete").SetParent(root)
	yes := fs.BoolLong("yes", "do not ask for confirmation")
	return &ff.Command{
		Name:      "delete",
		Usage:     "paragon delete [--yes] <ID>...",
		ShortHelp: "delete one receipt, or several in one batch",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return errors.New("delete needs at least one receipt id")
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			confirm := c.prompt.Confirm
			if *yes {
				confirm = func(string) bool { return true }
			}

			if len(ids) == 1 {
				if !confirm(fmt.Sprintf("Usunąć paragon #%d?", ids[0])) {
					return nil
				}
				if err := a.DeleteReceipt(ctx, ids[0]); err != nil {
					return err
				}
				c.println("Usunięto.")
				return nil
			}

			a.Selection().Toggle()
			for _, id := range ids {
				a.Selection().Click(id)
			}
			deleted, err := a.DeleteSelected(ctx, confirm)
			if err != nil {
				return err
			}
			c.println(fmt.Sprintf("Usunięto %d paragonów.", len(deleted)))
			return nil
		},
	}
}

func (c *cli) exportCommand(root *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("export").SetParent(root)
	format := fs.StringEnumLong("format", "file format", string(export.FormatCSV), string(export.FormatXLSX))
	dir := fs.StringLong("dir", ".", "directory for the export file")
	ids := fs.StringLong("ids", "", "comma separated receipt ids to export instead of the list")
	filter := filterFlags(fs)
	return &ff.Command{
		Name:      "export",
		Usage:     "paragon export [--format csv|xlsx] [--dir DIR] [--ids 1,2,3] [--query Q] [--from DATE] [--to DATE]",
		ShortHelp: "export the listed or selected receipts",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			f, err := filter()
			if err != nil {
				return err
			}
			selected, err := parseIDs([]string{*ids})
			if err != nil {
				return err
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			a.SetFilter(f)
			if len(selected) > 0 {
				a.Selection().Toggle()
				for _, id := range selected {
					a.Selection().Click(id)
				}
			}
			path, err := a.Export(export.Format(*format), *dir)
			if err != nil {
				return err
			}
			c.println("Zapisano " + path)
			return nil
		},
	}
}

// terminalChatView prints the conversation as it happens
type terminalChatView struct {
	out io.Writer
}

func (v terminalChatView) ShowUser(message string) { fmt.Fprintf(v.out, "Ty: %s\n", message) }
func (v terminalChatView) ShowThinking()           { fmt.Fprintln(v.out, "Asystent myśli...") }
func (v terminalChatView) ShowReply(rendered string) {
	fmt.Fprintln(v.out, rendered)
}
func (v terminalChatView) ShowError(err error) { fmt.Fprintf(v.out, "Błąd: %s\n", userMessage(err)) }

func (c *cli) chatCommand(root *ff.FlagSet) *ff.Command {
	return &ff.Command{
		Name:      "chat",
		Usage:     "paragon chat [MESSAGE]",
		ShortHelp: "ask the assistant about your spending",
		Flags:     ff.NewFlagSet("chat").SetParent(root),
		Exec: func(ctx context.Context, args []string) error {
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			view := terminalChatView{out: c.stdout}
			if len(args) > 0 {
				_, err := a.Chat().Send(ctx, strings.Join(args, " "), view)
				return err
			}
			for {
				line, err := c.prompt.Line("> ")
				if err != nil || line == "exit" || line == "quit" {
					return nil
				}
				if line == "" {
					continue
				}
				// Errors were already shown through the view
				_, _ = a.Chat().Send(ctx, line, view)
			}
		},
	}
}

func (c *cli) themeCommand(root *ff.FlagSet) *ff.Command {
	return &ff.Command{
		Name:      "theme",
		Usage:     "paragon theme [light|dark]",
		ShortHelp: "show or change the display theme",
		Flags:     ff.NewFlagSet("theme").SetParent(root),
		Exec: func(ctx context.Context, args []string) error {
			prefs, err := receipt.NewBoltPreferences(*c.dbPath)
			if err != nil {
				return fmt.Errorf("opening preferences: %w", err)
			}
			defer prefs.Close()

			if len(args) == 0 {
				theme, err := prefs.Theme()
				if err != nil {
					return err
				}
				c.println(string(theme))
				return nil
			}
			theme, err := receipt.ParseTheme(args[0])
			if err != nil {
				return err
			}
			return prefs.SetTheme(theme)
		},
	}
}

func (c *cli) shellCommand(root *ff.FlagSet) *ff.Command {
	return &ff.Command{
		Name:      "shell",
		Usage:     "paragon shell",
		ShortHelp: "interactive session with selection mode and the upload queue",
		Flags:     ff.NewFlagSet("shell").SetParent(root),
		Exec: func(ctx context.Context, args []string) error {
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			return newShell(c, a).run(ctx)
		},
	}
}
