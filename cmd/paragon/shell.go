package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zombor/paragon/internal/app"
	"github.com/zombor/paragon/internal/chat"
	"github.com/zombor/paragon/internal/dashboard"
	"github.com/zombor/paragon/internal/export"
	"github.com/zombor/paragon/internal/receipt"
	"github.com/zombor/paragon/internal/selection"
	"github.com/zombor/paragon/internal/upload"
)

const shellHelp = `Polecenia:
  ls                      lista paragonów (z filtrem)
  stats                   podsumowanie, kategorie i oś czasu
  filter [q=..] [from=..] [to=..] | filter off
  open N                  otwórz paragon, w trybie zaznaczania przełącz zaznaczenie
  select                  włącz/wyłącz tryb zaznaczania
  all                     zaznacz/odznacz wszystkie widoczne
  del                     usuń zaznaczone
  rm N                    usuń jeden paragon
  new | edit N            dodaj lub edytuj paragon
  add PLIK...             dodaj pliki do kolejki
  queue                   pokaż kolejkę
  send                    wyślij kolejkę do skanowania
  retry N | manual N | discard N   obsłuż plik z kolejki (N = pozycja)
  export [csv|xlsx] [KATALOG]
  chat WIADOMOŚĆ | chat reset
  theme [light|dark]
  reload | help | quit`

type shell struct {
	cli *cli
	app *app.App
}

func newShell(c *cli, a *app.App) *shell {
	return &shell{cli: c, app: a}
}

func (s *shell) run(ctx context.Context) error {
	s.cli.println(shellHelp)
	for {
		prompt := "paragon> "
		if s.app.Selection().Mode() == selection.On {
			prompt = fmt.Sprintf("paragon [zaznaczone: %d]> ", s.app.Selection().Count())
		}
		line, err := s.cli.prompt.Line(prompt)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := s.dispatch(ctx, fields[0], fields[1:]); err != nil {
			s.cli.println(userMessage(err))
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *shell) dispatch(ctx context.Context, cmd string, args []string) error {
	a := s.app
	switch cmd {
	case "help":
		s.cli.println(shellHelp)
	case "ls":
		s.list()
	case "stats":
		s.cli.println(a.Renderer().Dashboard(a.View()))
	case "filter":
		return s.filter(args)
	case "reload":
		if err := a.Reload(ctx); err != nil {
			return err
		}
		s.list()
	case "select":
		if a.Selection().Toggle() == selection.On {
			s.cli.println("Tryb zaznaczania włączony.")
		} else {
			s.cli.println("Tryb zaznaczania wyłączony.")
		}
	case "all":
		a.Selection().SelectAll(a.VisibleIDs())
		s.list()
	case "open":
		id, err := s.id(args)
		if err != nil {
			return err
		}
		if a.Selection().Click(id) == selection.ActionToggled {
			s.list()
			return nil
		}
		r, err := a.Receipt(id)
		if err != nil {
			return err
		}
		s.cli.println(a.Renderer().Receipt(r))
	case "del":
		deleted, err := a.DeleteSelected(ctx, s.cli.prompt.Confirm)
		if err != nil {
			return err
		}
		s.cli.println(fmt.Sprintf("Usunięto %d paragonów.", len(deleted)))
	case "rm":
		id, err := s.id(args)
		if err != nil {
			return err
		}
		if !s.cli.prompt.Confirm(fmt.Sprintf("Usunąć paragon #%d?", id)) {
			return nil
		}
		if err := a.DeleteReceipt(ctx, id); err != nil {
			return err
		}
		s.list()
	case "new":
		return s.cli.editAndSave(ctx, a, a.NewForm())
	case "edit":
		id, err := s.id(args)
		if err != nil {
			return err
		}
		form, err := a.EditForm(id)
		if err != nil {
			return err
		}
		return s.cli.editAndSave(ctx, a, form)
	case "add":
		for _, path := range args {
			f, err := upload.LoadFile(path)
			if err != nil {
				return err
			}
			a.Queue().Enqueue(f)
		}
		s.queue()
	case "queue":
		s.queue()
	case "send":
		return s.cli.submit(ctx, a)
	case "retry", "manual", "discard":
		return s.queueAction(ctx, cmd, args)
	case "export":
		return s.export(args)
	case "chat":
		if len(args) == 1 && args[0] == "reset" {
			a.Chat().Reset()
			return nil
		}
		_, err := a.Chat().Send(ctx, strings.Join(args, " "), terminalChatView{out: s.cli.stdout})
		// Backend failures were already shown through the view
		if errors.Is(err, chat.ErrEmptyMessage) || errors.Is(err, chat.ErrBusy) {
			return err
		}
	case "theme":
		if len(args) == 0 {
			s.cli.println(string(a.Theme()))
			return nil
		}
		theme, err := receipt.ParseTheme(args[0])
		if err != nil {
			return err
		}
		return a.SetTheme(theme)
	default:
		return fmt.Errorf("nieznane polecenie %q, wpisz help", cmd)
	}
	return nil
}

func (s *shell) list() {
	a := s.app
	sel := a.Selection()
	s.cli.println(a.Renderer().List(a.View().Receipts, sel.Mode() == selection.On, sel.IsSelected))
}

func (s *shell) queue() {
	q := s.app.Queue()
	s.cli.println(s.app.Renderer().Queue(q.Items(), q.Policy()))
}

func (s *shell) id(args []string) (int, error) {
	ids, err := parseIDs(args)
	if err != nil {
		return 0, err
	}
	if len(ids) != 1 {
		return 0, errors.New("podaj jeden numer paragonu")
	}
	return ids[0], nil
}

func (s *shell) filter(args []string) error {
	if len(args) == 1 && args[0] == "off" {
		s.app.SetFilter(dashboard.Filter{})
		s.list()
		return nil
	}
	var query, from, to string
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("oczekiwano klucz=wartość, jest %q", arg)
		}
		switch key {
		case "q":
			query = value
		case "from":
			from = value
		case "to":
			to = value
		default:
			return fmt.Errorf("nieznany filtr %q", key)
		}
	}
	f, err := parseFilter(query, from, to)
	if err != nil {
		return err
	}
	s.app.SetFilter(f)
	s.list()
	return nil
}

// queueAction handles a failed upload by its 1-based queue position
func (s *shell) queueAction(ctx context.Context, cmd string, args []string) error {
	items := s.app.Queue().Items()
	if len(args) != 1 {
		return errors.New("podaj numer pozycji w kolejce")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(items) {
		return fmt.Errorf("nie ma pozycji %s w kolejce", args[0])
	}
	token := items[n-1].Token

	switch cmd {
	case "retry":
		item, err := s.app.RetryUpload(ctx, token)
		if err != nil {
			return err
		}
		if item.State == upload.StateDone {
			s.cli.println("Zapisano " + item.Filename)
		}
		s.queue()
	case "manual":
		form, err := s.app.ManualEntry(token)
		if err != nil {
			return err
		}
		return s.cli.editAndSave(ctx, s.app, form)
	case "discard":
		if err := s.app.Queue().Remove(token); err != nil {
			return err
		}
		s.queue()
	}
	return nil
}

func (s *shell) export(args []string) error {
	format, dir := export.FormatCSV, "."
	if len(args) > 0 {
		f, err := export.ParseFormat(args[0])
		if err != nil {
			return err
		}
		format = f
	}
	if len(args) > 1 {
		dir = args[1]
	}
	path, err := s.app.Export(format, dir)
	if err != nil {
		return err
	}
	s.cli.println("Zapisano " + path)
	return nil
}
