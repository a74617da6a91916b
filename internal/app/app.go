package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zombor/paragon/internal/chat"
	"github.com/zombor/paragon/internal/dashboard"
	"github.com/zombor/paragon/internal/editor"
	"github.com/zombor/paragon/internal/export"
	"github.com/zombor/paragon/internal/receipt"
	"github.com/zombor/paragon/internal/selection"
	"github.com/zombor/paragon/internal/upload"
)

// Backend is everything the application needs from the receipt API
type Backend interface {
	upload.Scanner
	editor.Writer
	selection.Deleter
	chat.Assistant
	ListReceipts(ctx context.Context) ([]receipt.Receipt, error)
	DeleteReceipt(ctx context.Context, id int) error
}

// App owns the client-side state: the cached receipt list, the active
// filter, pending uploads, the selection and the chat transcript.
type App struct {
	backend    Backend
	prefs      receipt.Preferences
	queue      *upload.Queue
	selection  *selection.Controller
	chat       *chat.Session
	clock      editor.Clock
	timeSource export.TimeSource

	mu       sync.Mutex
	receipts []receipt.Receipt
	filter   dashboard.Filter
	theme    receipt.Theme
}

// New creates an App with the default upload queue and the wall clock
func New(backend Backend, prefs receipt.Preferences) (*App, error) {
	return NewWithDeps(backend, prefs, upload.NewQueue(backend), editor.SystemClock)
}

// NewWithDeps creates an App with custom dependencies for testing
func NewWithDeps(backend Backend, prefs receipt.Preferences, queue *upload.Queue, clock editor.Clock) (*App, error) {
	theme, err := prefs.Theme()
	if err != nil {
		return nil, fmt.Errorf("loading theme: %w", err)
	}
	a := &App{
		backend:    backend,
		prefs:      prefs,
		queue:      queue,
		selection:  selection.NewController(),
		clock:      clock,
		timeSource: clock,
		theme:      theme,
	}
	a.chat = chat.NewSession(backend, markupFor(theme))
	return a, nil
}

func markupFor(theme receipt.Theme) chat.Markup {
	m, err := chat.NewMarkdownMarkup(theme)
	if err != nil {
		slog.Warn("Failed to create markdown renderer, replies will be plain text", "error", err)
		return chat.PlainMarkup{}
	}
	return m
}

// Queue returns the pending uploads
func (a *App) Queue() *upload.Queue {
	return a.queue
}

// Selection returns the selection controller
func (a *App) Selection() *selection.Controller {
	return a.selection
}

// Chat returns the chat session
func (a *App) Chat() *chat.Session {
	return a.chat
}

// Reload replaces the cached list with the backend's. On failure the previous
// list is kept.
func (a *App) Reload(ctx context.Context) error {
	receipts, err := a.backend.ListReceipts(ctx)
	if err != nil {
		slog.Error("Failed to reload receipts", "error", err)
		return fmt.Errorf("reloading receipts: %w", err)
	}
	a.mu.Lock()
	a.receipts = receipts
	a.mu.Unlock()
	slog.Debug("Reloaded receipts", "count", len(receipts))
	return nil
}

// reloadAfter refreshes the cache after a successful write. A failed refresh
// does not undo the write, so it is only logged.
func (a *App) reloadAfter(ctx context.Context, operation string) {
	if err := a.Reload(ctx); err != nil {
		slog.Warn("Receipt list may be stale", "after", operation, "error", err)
	}
}

// Receipts returns a copy of the cached list
func (a *App) Receipts() []receipt.Receipt {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]receipt.Receipt, len(a.receipts))
	copy(out, a.receipts)
	return out
}

// Receipt returns one cached receipt
func (a *App) Receipt(id int) (receipt.Receipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.receipts {
		if r.ID == id {
			return r, nil
		}
	}
	return receipt.Receipt{}, fmt.Errorf("receipt %d: %w", id, receipt.ErrNotFound)
}

// SetFilter changes the filter applied by View
func (a *App) SetFilter(f dashboard.Filter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filter = f
}

// Filter returns the active filter
func (a *App) Filter() dashboard.Filter {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.filter
}

// View derives the dashboard from the cached list and the active filter
func (a *App) View() dashboard.View {
	a.mu.Lock()
	receipts, filter := a.receipts, a.filter
	a.mu.Unlock()
	return dashboard.Build(receipts, filter)
}

// VisibleIDs returns the ids shown under the active filter
func (a *App) VisibleIDs() []int {
	return a.View().IDs()
}

// DeleteReceipt deletes one receipt and drops it from the cache and the selection
func (a *App) DeleteReceipt(ctx context.Context, id int) error {
	err := a.backend.DeleteReceipt(ctx, id)
	if err != nil && !errors.Is(err, receipt.ErrNotFound) {
		slog.Error("Failed to delete receipt", "id", id, "error", err)
		return fmt.Errorf("deleting receipt %d: %w", id, err)
	}
	if err != nil {
		slog.Warn("Receipt was already gone", "id", id)
	}

	a.mu.Lock()
	kept := a.receipts[:0:0]
	for _, r := range a.receipts {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	a.receipts = kept
	a.mu.Unlock()

	a.selection.Remove(id)
	return nil
}

// SubmitUploads sends the queued files and reloads the list when any were saved
func (a *App) SubmitUploads(ctx context.Context) (upload.SubmitReport, error) {
	report, err := a.queue.Submit(ctx)
	if err != nil {
		return report, err
	}
	if len(report.Saved) > 0 {
		a.reloadAfter(ctx, "upload")
	}
	return report, nil
}

// RetryUpload resubmits one failed file and reloads the list when it was saved
func (a *App) RetryUpload(ctx context.Context, token string) (upload.Item, error) {
	item, err := a.queue.Retry(ctx, token)
	if err != nil {
		return item, err
	}
	if item.State == upload.StateDone {
		a.reloadAfter(ctx, "retry")
	}
	return item, nil
}

// ManualEntry takes a failed file out of the queue and opens a draft for it
func (a *App) ManualEntry(token string) (*editor.Form, error) {
	item, err := a.queue.TakeForManualEntry(token)
	if err != nil {
		return nil, err
	}
	return editor.FromUpload(item, a.clock), nil
}

// NewForm opens an empty draft
func (a *App) NewForm() *editor.Form {
	return editor.New(a.clock)
}

// EditForm opens a cached receipt for editing
func (a *App) EditForm(id int) (*editor.Form, error) {
	r, err := a.Receipt(id)
	if err != nil {
		return nil, err
	}
	return editor.FromReceipt(r), nil
}

// SaveForm saves an editor form and reloads the list
func (a *App) SaveForm(ctx context.Context, form *editor.Form, resolver editor.Resolver) (editor.Result, error) {
	result, err := form.Save(ctx, a.backend, resolver)
	if err != nil {
		return result, err
	}
	a.reloadAfter(ctx, "save")
	return result, nil
}

// DeleteSelected batch-deletes the selection and reloads the list
func (a *App) DeleteSelected(ctx context.Context, confirm selection.Confirm) ([]int, error) {
	ids, err := a.selection.DeleteSelected(ctx, a.backend, confirm)
	if err != nil {
		return nil, err
	}

	deleted := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		deleted[id] = struct{}{}
	}
	a.mu.Lock()
	kept := a.receipts[:0:0]
	for _, r := range a.receipts {
		if _, ok := deleted[r.ID]; !ok {
			kept = append(kept, r)
		}
	}
	a.receipts = kept
	a.mu.Unlock()

	a.reloadAfter(ctx, "batch delete")
	return ids, nil
}

// exportSet picks the receipts to export: the selection when selection mode
// is on and something is selected, otherwise the visible list
func (a *App) exportSet() ([]receipt.Receipt, bool) {
	view := a.View()
	if a.selection.Mode() != selection.On || a.selection.Count() == 0 {
		return view.Receipts, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	var out []receipt.Receipt
	for _, r := range a.receipts {
		if a.selection.IsSelected(r.ID) {
			out = append(out, r)
		}
	}
	return dashboard.Build(out, dashboard.Filter{}).Receipts, true
}

// Export writes the selection or the visible list into dir
func (a *App) Export(format export.Format, dir string) (string, error) {
	receipts, selected := a.exportSet()
	if len(receipts) == 0 {
		slog.Warn("Nothing to export")
		return "", export.ErrNothingToExport
	}
	storage, err := export.NewLocalStorage(dir)
	if err != nil {
		return "", err
	}
	return export.NewExporterWithDeps(storage, a.timeSource).Export(receipts, format, selected)
}

// Theme returns the display theme
func (a *App) Theme() receipt.Theme {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.theme
}

// SetTheme stores the display theme and restyles chat replies
func (a *App) SetTheme(theme receipt.Theme) error {
	if err := a.prefs.SetTheme(theme); err != nil {
		return fmt.Errorf("saving theme: %w", err)
	}
	a.mu.Lock()
	a.theme = theme
	a.mu.Unlock()
	a.chat.SetMarkup(markupFor(theme))
	return nil
}

// Renderer returns a dashboard renderer for the current theme
func (a *App) Renderer() *dashboard.Renderer {
	return dashboard.NewRenderer(a.Theme())
}
