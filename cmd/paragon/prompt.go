package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zombor/paragon/internal/editor"
	"github.com/zombor/paragon/internal/receipt"
)

// Prompter asks the user questions on a terminal
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter reads answers from in and writes questions to out
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Line prints prompt and returns the trimmed answer. io.EOF is returned once
// the input is exhausted.
func (p *Prompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Ask returns the answer, or def when the answer is empty
func (p *Prompter) Ask(label, def string) string {
	prompt := label + ": "
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]: ", label, def)
	}
	answer, err := p.Line(prompt)
	if err != nil || answer == "" {
		return def
	}
	return answer
}

// AskAmount asks for a non-negative amount. Both "12.50" and "12,50" are accepted.
func (p *Prompter) AskAmount(label string, def float64) float64 {
	for {
		answer := p.Ask(label, receipt.FormatAmount(def))
		amount, err := parseAmount(answer)
		if err == nil {
			return amount
		}
		fmt.Fprintf(p.out, "Niepoprawna kwota: %s\n", answer)
	}
}

func parseAmount(s string) (float64, error) {
	amount, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil {
		return 0, err
	}
	if amount < 0 {
		return 0, editor.ErrNegativeAmount
	}
	return amount, nil
}

// Confirm asks a yes/no question. Anything but an explicit yes is a no.
func (p *Prompter) Confirm(question string) bool {
	answer, err := p.Line(question + " [t/N]: ")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "t", "tak", "y", "yes":
		return true
	default:
		return false
	}
}

// Resolve asks how to handle a total that does not match the items
func (p *Prompter) Resolve(m editor.Mismatch) editor.Resolution {
	fmt.Fprintf(p.out, "Suma produktów (%s) różni się od kwoty paragonu (%s) o %s.\n",
		receipt.FormatAmount(m.ItemsSum), receipt.FormatAmount(m.Total), receipt.FormatAmount(m.Difference()))
	options := m.Options()
	for i, o := range options {
		switch o {
		case editor.AcceptMismatch:
			fmt.Fprintf(p.out, "  %d) zapisz kwotę %s mimo różnicy\n", i+1, receipt.FormatAmount(m.Total))
		case editor.UseComputedSum:
			fmt.Fprintf(p.out, "  %d) użyj sumy produktów %s\n", i+1, receipt.FormatAmount(m.ItemsSum))
		}
	}
	answer, err := p.Line("Wybór (Enter = anuluj): ")
	if err != nil {
		return editor.Cancel
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(options) {
		return editor.Cancel
	}
	return options[n-1]
}

// EditForm walks the user through every field of f. Existing values are
// kept when the user just presses Enter.
func (p *Prompter) EditForm(f *editor.Form) {
	f.StoreName = p.Ask("Sklep", f.StoreName)
	f.Date = p.Ask("Data (RRRR-MM-DD)", f.Date)
	f.Category = p.Ask("Kategoria", f.Category)
	p.editRows(f)
	fmt.Fprintf(p.out, "Suma produktów: %s\n", receipt.FormatAmount(f.ItemsSum()))
	f.Total = p.AskAmount("Kwota", f.Total)
}

func (p *Prompter) editRows(f *editor.Form) {
	for {
		fmt.Fprintln(p.out, "Produkty:")
		for i, row := range f.Rows {
			fmt.Fprintf(p.out, "  %d. %s %s\n", i+1, row.Name, receipt.FormatAmount(row.Price))
		}
		answer, err := p.Line("[d]odaj, [e N] edytuj, [u N] usuń, Enter = dalej: ")
		if err != nil || answer == "" {
			return
		}

		fields := strings.Fields(answer)
		switch fields[0] {
		case "d":
			i := f.AddRow()
			p.editRow(f, i)
		case "e", "u":
			if len(fields) < 2 {
				fmt.Fprintln(p.out, "Podaj numer produktu")
				continue
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 1 || n > len(f.Rows) {
				fmt.Fprintf(p.out, "Nie ma produktu %s\n", fields[1])
				continue
			}
			if fields[0] == "e" {
				p.editRow(f, n-1)
			} else if err := f.RemoveRow(n - 1); err != nil {
				fmt.Fprintln(p.out, err)
			}
		default:
			fmt.Fprintf(p.out, "Nieznana opcja %q\n", fields[0])
		}
	}
}

// clearName typed as a row name empties it, which drops the row on save
const clearName = "-"

func (p *Prompter) editRow(f *editor.Form, i int) {
	row := f.Rows[i]
	name := p.Ask("  Nazwa (- = wyczyść)", row.Name)
	if name == clearName {
		name = ""
	}
	price := p.AskAmount("  Cena", row.Price)
	if err := f.SetRow(i, name, price); err != nil {
		fmt.Fprintln(p.out, err)
	}
}
