package editor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/zombor/paragon/internal/receipt"
	"github.com/zombor/paragon/internal/upload"
)

var (
	// ErrCancelled is returned when the user dismisses the mismatch prompt
	ErrCancelled = errors.New("save cancelled")
	// ErrNegativeAmount is returned for a negative total or price
	ErrNegativeAmount = errors.New("amounts cannot be negative")
	// ErrNoRow is returned for a row index outside the form
	ErrNoRow = errors.New("no such row")
)

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock is the wall clock
var SystemClock Clock = systemClock{}

// Writer persists receipts
type Writer interface {
	CreateReceipt(ctx context.Context, draft receipt.Draft) error
	UpdateReceipt(ctx context.Context, id int, draft receipt.Draft) error
}

// Resolution is the user's answer to a total/items mismatch
type Resolution int

const (
	// AcceptMismatch saves the total as typed
	AcceptMismatch Resolution = iota
	// UseComputedSum overwrites the total with the sum of the items
	UseComputedSum
	// Cancel aborts the save
	Cancel
)

func (r Resolution) String() string {
	switch r {
	case AcceptMismatch:
		return "accept"
	case UseComputedSum:
		return "use computed sum"
	case Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Mismatch describes a total that disagrees with its items
type Mismatch struct {
	Total    float64
	ItemsSum float64
}

// Options lists the resolutions offered to the user
func (m Mismatch) Options() []Resolution {
	return []Resolution{AcceptMismatch, UseComputedSum}
}

// Difference is Total minus ItemsSum, rounded to 2 decimals
func (m Mismatch) Difference() float64 {
	return receipt.Money(m.Total).Sub(receipt.Money(m.ItemsSum)).Round(2).InexactFloat64()
}

// Resolver asks the user how to handle a mismatch
type Resolver interface {
	Resolve(m Mismatch) Resolution
}

// ResolverFunc adapts a function to Resolver
type ResolverFunc func(m Mismatch) Resolution

func (f ResolverFunc) Resolve(m Mismatch) Resolution {
	return f(m)
}

// Row is one editable line item
type Row struct {
	Name  string
	Price float64
}

// Form is the editable state of one receipt
type Form struct {
	ID        int // receipt.NewID for a new receipt
	StoreName string
	Date      string
	Category  string
	Total     float64
	Rows      []Row
	Source    string // filename of the upload this draft replaces, if any
}

// Result describes a successful save
type Result struct {
	Draft    receipt.Draft
	Created  bool
	Mismatch *Mismatch
	Resolved Resolution
}

// FromReceipt opens an existing receipt for editing
func FromReceipt(r receipt.Receipt) *Form {
	rows := make([]Row, len(r.Items))
	for i, item := range r.Items {
		rows[i] = Row{Name: item.Name, Price: item.Price}
	}
	return &Form{
		ID:        r.ID,
		StoreName: r.StoreName,
		Date:      r.Date,
		Category:  r.CategoryOrDefault(),
		Total:     r.TotalAmount,
		Rows:      rows,
	}
}

// New opens an empty draft dated today
func New(clock Clock) *Form {
	return &Form{
		ID:       receipt.NewID,
		Date:     clock.Now().Format(receipt.DateLayout),
		Category: receipt.DefaultCategory,
	}
}

// FromUpload opens a draft for a file the scanner could not read
func FromUpload(item upload.Item, clock Clock) *Form {
	f := New(clock)
	f.Source = item.Filename
	f.StoreName = strings.TrimSuffix(item.Filename, filepath.Ext(item.Filename))
	return f
}

// IsNew reports whether saving creates a receipt
func (f *Form) IsNew() bool {
	return f.ID == receipt.NewID
}

// AddRow appends an empty row and returns its index
func (f *Form) AddRow() int {
	f.Rows = append(f.Rows, Row{})
	return len(f.Rows) - 1
}

// RemoveRow deletes row i
func (f *Form) RemoveRow(i int) error {
	if i < 0 || i >= len(f.Rows) {
		return fmt.Errorf("%w: %d", ErrNoRow, i)
	}
	f.Rows = append(f.Rows[:i], f.Rows[i+1:]...)
	return nil
}

// SetRow edits row i
func (f *Form) SetRow(i int, name string, price float64) error {
	if i < 0 || i >= len(f.Rows) {
		return fmt.Errorf("%w: %d", ErrNoRow, i)
	}
	f.Rows[i] = Row{Name: name, Price: price}
	return nil
}

// ItemsSum returns the sum of all named rows, rounded to 2 decimals
func (f *Form) ItemsSum() float64 {
	return receipt.SumPrices(f.items()).InexactFloat64()
}

func (f *Form) items() []receipt.LineItem {
	items := make([]receipt.LineItem, 0, len(f.Rows))
	for _, row := range f.Rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			continue
		}
		items = append(items, receipt.LineItem{Name: name, Price: row.Price})
	}
	return items
}

func (f *Form) validate() error {
	if f.Total < 0 {
		return fmt.Errorf("%w: total %s", ErrNegativeAmount, receipt.FormatAmount(f.Total))
	}
	for _, item := range f.items() {
		if item.Price < 0 {
			return fmt.Errorf("%w: %s costs %s", ErrNegativeAmount, item.Name, receipt.FormatAmount(item.Price))
		}
	}
	return nil
}

// Save reconciles the form and writes it. A total that differs from the item
// sum by more than 0.01 is never written without the resolver's answer. On
// error the form keeps the user's input so it can be corrected.
func (f *Form) Save(ctx context.Context, w Writer, resolver Resolver) (Result, error) {
	f.Total = receipt.Round2(f.Total)

	date, err := receipt.NormalizeDate(f.Date)
	if err != nil {
		return Result{}, err
	}
	if err := f.validate(); err != nil {
		return Result{}, err
	}

	result := Result{Created: f.IsNew()}
	sum := receipt.SumPrices(f.items())
	if !receipt.Reconciled(sum, receipt.Money(f.Total)) {
		mismatch := Mismatch{Total: f.Total, ItemsSum: sum.InexactFloat64()}
		result.Mismatch = &mismatch
		result.Resolved = resolver.Resolve(mismatch)
		switch result.Resolved {
		case AcceptMismatch:
		case UseComputedSum:
			f.Total = mismatch.ItemsSum
		default:
			return Result{}, ErrCancelled
		}
	}

	f.Date = date
	category := strings.TrimSpace(f.Category)
	if category == "" {
		category = receipt.DefaultCategory
	}
	result.Draft = receipt.Draft{
		StoreName:   strings.TrimSpace(f.StoreName),
		Date:        date,
		Category:    category,
		TotalAmount: f.Total,
		Items:       f.items(),
	}

	if f.IsNew() {
		err = w.CreateReceipt(ctx, result.Draft)
	} else {
		err = w.UpdateReceipt(ctx, f.ID, result.Draft)
	}
	if err != nil {
		return Result{}, fmt.Errorf("saving receipt: %w", err)
	}
	return result, nil
}
