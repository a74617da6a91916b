package dashboard

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zombor/paragon/internal/receipt"
	"github.com/zombor/paragon/internal/upload"
)

// BarWidth is the length of the longest bar in the category chart
const BarWidth = 30

type palette struct {
	accent  lipgloss.Color
	muted   lipgloss.Color
	text    lipgloss.Color
	danger  lipgloss.Color
	success lipgloss.Color
}

var palettes = map[receipt.Theme]palette{
	receipt.ThemeLight: {
		accent:  lipgloss.Color("#3b5bdb"),
		muted:   lipgloss.Color("#868e96"),
		text:    lipgloss.Color("#212529"),
		danger:  lipgloss.Color("#c92a2a"),
		success: lipgloss.Color("#2b8a3e"),
	},
	receipt.ThemeDark: {
		accent:  lipgloss.Color("#91a7ff"),
		muted:   lipgloss.Color("#adb5bd"),
		text:    lipgloss.Color("#f1f3f5"),
		danger:  lipgloss.Color("#ff8787"),
		success: lipgloss.Color("#8ce99a"),
	},
}

// Renderer draws dashboard views for the terminal
type Renderer struct {
	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	amount  lipgloss.Style
	bar     lipgloss.Style
	danger  lipgloss.Style
	success lipgloss.Style
	box     lipgloss.Style
}

// NewRenderer returns a renderer styled for theme. Unknown themes fall back to light.
func NewRenderer(theme receipt.Theme) *Renderer {
	p, ok := palettes[theme]
	if !ok {
		p = palettes[receipt.ThemeLight]
	}
	return &Renderer{
		title:   lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		label:   lipgloss.NewStyle().Foreground(p.text),
		muted:   lipgloss.NewStyle().Foreground(p.muted),
		amount:  lipgloss.NewStyle().Bold(true).Foreground(p.text),
		bar:     lipgloss.NewStyle().Foreground(p.accent),
		danger:  lipgloss.NewStyle().Foreground(p.danger),
		success: lipgloss.NewStyle().Foreground(p.success),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.muted).
			Padding(0, 1),
	}
}

// Dashboard renders the stats, category chart and timeline of v
func (r *Renderer) Dashboard(v View) string {
	if v.Stats.Count == 0 {
		return r.muted.Render("Brak paragonów.")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		r.Stats(v.Stats),
		"",
		r.Categories(v.Categories),
		"",
		r.Timeline(v.Timeline),
	)
}

// Stats renders the headline numbers
func (r *Renderer) Stats(s Stats) string {
	top := s.TopCategory
	if top == "" {
		top = "-"
	}
	lines := []string{
		r.title.Render("Podsumowanie"),
		fmt.Sprintf("%s %s PLN", r.label.Render("Suma:"), r.amount.Render(receipt.FormatAmount(s.GrandTotal))),
		fmt.Sprintf("%s %d", r.label.Render("Paragony:"), s.Count),
		fmt.Sprintf("%s %s", r.label.Render("Top kategoria:"), top),
	}
	return r.box.Render(strings.Join(lines, "\n"))
}

// Categories renders a horizontal bar chart of spend per category
func (r *Renderer) Categories(categories []CategoryTotal) string {
	if len(categories) == 0 {
		return ""
	}
	max := 0.0
	nameWidth := 0
	for _, c := range categories {
		max = math.Max(max, c.Total)
		nameWidth = int(math.Max(float64(nameWidth), float64(lipgloss.Width(c.Category))))
	}

	name := lipgloss.NewStyle().Width(nameWidth)
	lines := []string{r.title.Render("Wydatki wg kategorii")}
	for _, c := range categories {
		lines = append(lines, fmt.Sprintf("%s %s %s",
			name.Render(c.Category),
			r.bar.Render(bar(c.Total, max)),
			r.amount.Render(receipt.FormatAmount(c.Total)),
		))
	}
	return strings.Join(lines, "\n")
}

func bar(value, max float64) string {
	if max <= 0 || value <= 0 {
		return ""
	}
	n := int(math.Round(value / max * BarWidth))
	if n == 0 {
		n = 1
	}
	return strings.Repeat("█", n)
}

// Timeline renders receipts grouped by day, newest first
func (r *Renderer) Timeline(groups []DayGroup) string {
	var lines []string
	for _, g := range groups {
		date := g.Date
		if date == "" {
			date = "brak daty"
		}
		lines = append(lines, fmt.Sprintf("%s %s",
			r.title.Render(date),
			r.muted.Render(receipt.FormatAmount(g.Total)+" PLN"),
		))
		for _, rc := range g.Receipts {
			lines = append(lines, "  "+r.line(rc, ""))
		}
	}
	return strings.Join(lines, "\n")
}

// List renders the receipts one per line. When selecting is true every line
// carries a checkbox reflecting selected.
func (r *Renderer) List(receipts []receipt.Receipt, selecting bool, selected func(id int) bool) string {
	if len(receipts) == 0 {
		return r.muted.Render("Brak paragonów.")
	}
	lines := make([]string, len(receipts))
	for i, rc := range receipts {
		mark := ""
		if selecting {
			mark = "[ ] "
			if selected != nil && selected(rc.ID) {
				mark = r.success.Render("[x]") + " "
			}
		}
		lines[i] = r.line(rc, mark)
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) line(rc receipt.Receipt, prefix string) string {
	date := rc.Date
	if date == "" {
		date = "----------"
	}
	return fmt.Sprintf("%s%s %s %s %s %s",
		prefix,
		r.muted.Render(fmt.Sprintf("#%-4d", rc.ID)),
		date,
		r.label.Render(rc.StoreName),
		r.muted.Render("("+rc.CategoryOrDefault()+")"),
		r.amount.Render(receipt.FormatAmount(rc.TotalAmount)),
	)
}

// Receipt renders the detail view of one receipt, flagging a total that does
// not match its items
func (r *Renderer) Receipt(rc receipt.Receipt) string {
	lines := []string{
		r.title.Render(rc.StoreName),
		fmt.Sprintf("%s %s", r.label.Render("Data:"), rc.Date),
		fmt.Sprintf("%s %s", r.label.Render("Kategoria:"), rc.CategoryOrDefault()),
		"",
	}
	for _, item := range rc.Items {
		lines = append(lines, fmt.Sprintf("  %s %s", item.Name, r.muted.Render(receipt.FormatAmount(item.Price))))
	}
	lines = append(lines, "", fmt.Sprintf("%s %s PLN", r.label.Render("Suma:"), r.amount.Render(receipt.FormatAmount(rc.TotalAmount))))

	sum := receipt.SumPrices(rc.Items)
	if len(rc.Items) > 0 && !receipt.Reconciled(sum, receipt.Money(rc.TotalAmount)) {
		lines = append(lines, r.danger.Render(fmt.Sprintf("Suma produktów %s nie zgadza się z kwotą", sum.StringFixed(2))))
	}
	return r.box.Render(strings.Join(lines, "\n"))
}

// Queue renders the pending uploads with their state and available actions
func (r *Renderer) Queue(items []upload.Item, policy upload.RetryPolicy) string {
	if len(items) == 0 {
		return r.muted.Render("Kolejka jest pusta.")
	}
	lines := []string{r.title.Render(fmt.Sprintf("Kolejka (%d)", len(items)))}
	for i, item := range items {
		state := item.State.String()
		switch item.State {
		case upload.StateFailed:
			state = r.danger.Render(state + ": " + item.Reason)
		case upload.StateDone:
			state = r.success.Render(state)
		default:
			state = r.muted.Render(state)
		}
		line := fmt.Sprintf("%d. %s %s", i+1, item.Filename, state)
		if actions := policy.Actions(item); len(actions) > 0 {
			names := make([]string, len(actions))
			for j, a := range actions {
				names[j] = a.String()
			}
			line += r.muted.Render(" [" + strings.Join(names, " | ") + "]")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
