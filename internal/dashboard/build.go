package dashboard

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/paragon/internal/receipt"
)

// Filter narrows the receipt list. Zero values match everything.
type Filter struct {
	Query string // case-insensitive, matched against store, category and item names
	From  string // inclusive, YYYY-MM-DD
	To    string // inclusive, YYYY-MM-DD
}

// IsZero reports whether the filter matches every receipt
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Query) == "" && f.From == "" && f.To == ""
}

// Matches reports whether r passes the filter.
// Dates are compared as ISO strings, so a receipt without a date fails any range bound.
func (f Filter) Matches(r receipt.Receipt) bool {
	if f.From != "" && r.Date < f.From {
		return false
	}
	if f.To != "" && r.Date > f.To {
		return false
	}

	query := strings.ToLower(strings.TrimSpace(f.Query))
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(r.StoreName), query) ||
		strings.Contains(strings.ToLower(r.CategoryOrDefault()), query) {
		return true
	}
	for _, item := range r.Items {
		if strings.Contains(strings.ToLower(item.Name), query) {
			return true
		}
	}
	return false
}

// DayGroup is one day on the timeline
type DayGroup struct {
	Date     string // empty for receipts without a date
	Receipts []receipt.Receipt
	Total    float64
}

// CategoryTotal is the spend in one category
type CategoryTotal struct {
	Category string
	Total    float64
	Count    int
}

// Stats are the dashboard headline numbers
type Stats struct {
	GrandTotal  float64
	Count       int
	TopCategory string // empty when there are no receipts
}

// View is everything derived from the cached receipt list
type View struct {
	Filter     Filter
	Receipts   []receipt.Receipt
	Timeline   []DayGroup
	Categories []CategoryTotal
	Stats      Stats
}

// IDs returns the ids of the visible receipts in display order
func (v View) IDs() []int {
	ids := make([]int, len(v.Receipts))
	for i, r := range v.Receipts {
		ids[i] = r.ID
	}
	return ids
}

// Build derives the dashboard from receipts. It never modifies its input.
func Build(receipts []receipt.Receipt, filter Filter) View {
	visible := make([]receipt.Receipt, 0, len(receipts))
	for _, r := range receipts {
		if filter.Matches(r) {
			visible = append(visible, r)
		}
	}

	// Categories follow the order in which they first appear in the list as
	// the backend returned it.
	categories := categoryTotals(visible)

	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].Date != visible[j].Date {
			return visible[i].Date > visible[j].Date
		}
		return visible[i].ID > visible[j].ID
	})

	grand := decimal.Zero
	for _, r := range visible {
		grand = grand.Add(receipt.Money(r.TotalAmount))
	}

	return View{
		Filter:     filter,
		Receipts:   visible,
		Timeline:   timeline(visible),
		Categories: categories,
		Stats: Stats{
			GrandTotal:  grand.Round(2).InexactFloat64(),
			Count:       len(visible),
			TopCategory: topCategory(categories),
		},
	}
}

func categoryTotals(receipts []receipt.Receipt) []CategoryTotal {
	index := make(map[string]int)
	sums := make([]decimal.Decimal, 0)
	var out []CategoryTotal
	for _, r := range receipts {
		category := r.CategoryOrDefault()
		i, ok := index[category]
		if !ok {
			i = len(out)
			index[category] = i
			out = append(out, CategoryTotal{Category: category})
			sums = append(sums, decimal.Zero)
		}
		sums[i] = sums[i].Add(receipt.Money(r.TotalAmount))
		out[i].Count++
	}
	for i := range out {
		out[i].Total = sums[i].Round(2).InexactFloat64()
	}
	return out
}

func topCategory(categories []CategoryTotal) string {
	top := ""
	best := -1.0
	for _, c := range categories {
		if c.Total > best {
			top, best = c.Category, c.Total
		}
	}
	return top
}

// timeline groups date-sorted receipts by day
func timeline(sorted []receipt.Receipt) []DayGroup {
	var groups []DayGroup
	var sum decimal.Decimal
	for _, r := range sorted {
		if len(groups) == 0 || groups[len(groups)-1].Date != r.Date {
			if len(groups) > 0 {
				groups[len(groups)-1].Total = sum.Round(2).InexactFloat64()
			}
			groups = append(groups, DayGroup{Date: r.Date})
			sum = decimal.Zero
		}
		g := &groups[len(groups)-1]
		g.Receipts = append(g.Receipts, r)
		sum = sum.Add(receipt.Money(r.TotalAmount))
	}
	if len(groups) > 0 {
		groups[len(groups)-1].Total = sum.Round(2).InexactFloat64()
	}
	return groups
}
