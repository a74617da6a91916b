package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/zombor/paragon/internal/receipt"
)

var (
	// ErrEmptyQueue is returned when there is nothing to submit
	ErrEmptyQueue = errors.New("no files queued for upload")
	// ErrBusy is returned while a submission is in flight
	ErrBusy = errors.New("an upload is already in progress")
	// ErrRetryExhausted is returned once the retry policy forbids another attempt
	ErrRetryExhausted = errors.New("retry limit reached, enter the receipt manually")
	// ErrUnknownItem is returned for a token that is not in the queue
	ErrUnknownItem = errors.New("no such upload")
	// ErrNotFailed is returned when retrying an item that has not failed
	ErrNotFailed = errors.New("upload has not failed")
	// ErrResultMismatch is returned when the backend answers with the wrong number of results
	ErrResultMismatch = errors.New("scan results do not match submitted files")
)

// Scanner submits files to the backend scan endpoint
type Scanner interface {
	ScanReceipts(ctx context.Context, files []receipt.UploadFile) ([]receipt.ScanResult, error)
}

// TokenGenerator generates correlation tokens for queued files
type TokenGenerator interface {
	Generate() string
}

// uuidTokenGenerator generates random UUIDs
type uuidTokenGenerator struct{}

func (uuidTokenGenerator) Generate() string {
	return uuid.NewString()
}

// PreviewFunc renders a thumbnail for a queued file
type PreviewFunc func(data []byte, contentType string) ([]byte, error)

// SubmitReport summarizes one submission
type SubmitReport struct {
	Saved  []Item
	Failed []Item
}

// Queue holds files picked for upload until the backend has saved them
type Queue struct {
	mu      sync.Mutex
	scanner Scanner
	tokens  TokenGenerator
	policy  RetryPolicy
	preview PreviewFunc
	items   []*Item
	saved   int
	busy    bool
}

// NewQueue creates a Queue with UUID tokens, the default retry policy and thumbnail previews
func NewQueue(scanner Scanner) *Queue {
	return NewQueueWithDeps(scanner, uuidTokenGenerator{}, DefaultRetryPolicy(), Thumbnail)
}

// NewQueueWithDeps creates a Queue with custom dependencies for testing
func NewQueueWithDeps(scanner Scanner, tokens TokenGenerator, policy RetryPolicy, preview PreviewFunc) *Queue {
	return &Queue{
		scanner: scanner,
		tokens:  tokens,
		policy:  policy,
		preview: preview,
	}
}

// Policy returns the retry policy in use
func (q *Queue) Policy() RetryPolicy {
	return q.policy
}

// Enqueue appends files to the queue and renders their previews
func (q *Queue) Enqueue(files ...File) []Item {
	added := make([]Item, 0, len(files))
	for _, f := range files {
		item := &Item{
			Token:       q.tokens.Generate(),
			Filename:    f.Name,
			ContentType: f.ContentType,
			Data:        f.Data,
			State:       StateQueued,
		}
		if q.preview != nil {
			thumb, err := q.preview(f.Data, f.ContentType)
			if err != nil {
				slog.Warn("Failed to render preview", "filename", f.Name, "content_type", f.ContentType, "error", err)
			} else {
				item.Preview = thumb
			}
		}

		q.mu.Lock()
		q.items = append(q.items, item)
		q.mu.Unlock()
		added = append(added, *item)
	}
	return added
}

// Items returns a snapshot of the queue in insertion order
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	for i, item := range q.items {
		out[i] = *item
	}
	return out
}

// Len returns the number of items still in the queue
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Saved returns how many files the backend has saved since the queue was created
func (q *Queue) Saved() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.saved
}

// Get returns the item with the given token
func (q *Queue) Get(token string) (Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexOf(token)
	if idx < 0 {
		return Item{}, ErrUnknownItem
	}
	return *q.items[idx], nil
}

// Actions lists what the user may do with the item: retry, manual entry or discard
func (q *Queue) Actions(token string) ([]Action, error) {
	item, err := q.Get(token)
	if err != nil {
		return nil, err
	}
	return q.policy.Actions(item), nil
}

// Remove drops a queued or failed item (discard)
func (q *Queue) Remove(token string) error {
	_, err := q.take(token, false)
	return err
}

// TakeForManualEntry removes a failed item so its receipt can be typed in by hand.
// Items that have not failed yet return ErrNotFailed and stay queued.
func (q *Queue) TakeForManualEntry(token string) (Item, error) {
	return q.take(token, true)
}

func (q *Queue) take(token string, failedOnly bool) (Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexOf(token)
	if idx < 0 {
		return Item{}, ErrUnknownItem
	}
	item := q.items[idx]
	if item.State == StateProcessing {
		return Item{}, ErrBusy
	}
	if failedOnly && item.State != StateFailed {
		return *item, ErrNotFailed
	}
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	return *item, nil
}

// Submit sends every queued item to the backend in one request.
// Saved items leave the queue; rejected ones are marked failed with the
// backend's reason. Failed items are not resubmitted, use Retry for those.
func (q *Queue) Submit(ctx context.Context) (SubmitReport, error) {
	q.mu.Lock()
	if q.busy {
		q.mu.Unlock()
		return SubmitReport{}, ErrBusy
	}
	batch := make([]*Item, 0, len(q.items))
	for _, item := range q.items {
		if item.State == StateQueued {
			batch = append(batch, item)
		}
	}
	if len(batch) == 0 {
		q.mu.Unlock()
		return SubmitReport{}, ErrEmptyQueue
	}
	q.busy = true
	files := make([]receipt.UploadFile, len(batch))
	for i, item := range batch {
		item.State = StateProcessing
		files[i] = uploadFile(item)
	}
	q.mu.Unlock()

	slog.Info("Submitting receipts", "count", len(files))
	results, err := q.scanner.ScanReceipts(ctx, files)
	if err == nil {
		results, err = correlate(files, results)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.busy = false

	if err != nil {
		for _, item := range batch {
			item.State = StateQueued
		}
		return SubmitReport{}, fmt.Errorf("submitting %d files: %w", len(batch), err)
	}

	var report SubmitReport
	for i, item := range batch {
		q.apply(item, results[i])
		if item.State == StateDone {
			report.Saved = append(report.Saved, *item)
		} else {
			report.Failed = append(report.Failed, *item)
		}
	}
	slog.Info("Receipts submitted", "saved", len(report.Saved), "failed", len(report.Failed))
	return report, nil
}

// Retry resubmits one failed item. The retry policy decides whether another
// attempt is allowed; a network failure counts as an attempt.
func (q *Queue) Retry(ctx context.Context, token string) (Item, error) {
	q.mu.Lock()
	if q.busy {
		q.mu.Unlock()
		return Item{}, ErrBusy
	}
	idx := q.indexOf(token)
	if idx < 0 {
		q.mu.Unlock()
		return Item{}, ErrUnknownItem
	}
	item := q.items[idx]
	if item.State != StateFailed {
		q.mu.Unlock()
		return *item, ErrNotFailed
	}
	if !q.policy.Allows(item.Retries) {
		q.mu.Unlock()
		return *item, ErrRetryExhausted
	}
	q.busy = true
	item.Retries++
	item.State = StateProcessing
	files := []receipt.UploadFile{uploadFile(item)}
	q.mu.Unlock()

	results, err := q.scanner.ScanReceipts(ctx, files)
	if err == nil {
		results, err = correlate(files, results)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.busy = false

	if err != nil {
		item.State = StateFailed
		item.Reason = err.Error()
		return *item, fmt.Errorf("retrying %s: %w", item.Filename, err)
	}
	q.apply(item, results[0])
	return *item, nil
}

// apply records the backend verdict for item. Callers hold q.mu.
func (q *Queue) apply(item *Item, result receipt.ScanResult) {
	if result.Saved() {
		item.State = StateDone
		item.Reason = ""
		q.saved++
		if idx := q.indexOf(item.Token); idx >= 0 {
			q.items = append(q.items[:idx], q.items[idx+1:]...)
		}
		return
	}
	item.State = StateFailed
	item.Reason = result.Message
	if item.Reason == "" {
		item.Reason = result.Status
	}
	slog.Warn("Receipt rejected", "filename", item.Filename, "status", result.Status, "reason", item.Reason)
}

func (q *Queue) indexOf(token string) int {
	for i, item := range q.items {
		if item.Token == token {
			return i
		}
	}
	return -1
}

func uploadFile(item *Item) receipt.UploadFile {
	return receipt.UploadFile{
		Token:       item.Token,
		Filename:    item.Filename,
		ContentType: item.ContentType,
		Data:        item.Data,
	}
}

// correlate lines results up with files. When the backend echoes tokens the
// results are matched by token, otherwise strictly by position.
func correlate(files []receipt.UploadFile, results []receipt.ScanResult) ([]receipt.ScanResult, error) {
	var byToken map[string]receipt.ScanResult
	if len(results) > 0 {
		byToken = make(map[string]receipt.ScanResult, len(results))
	}
	for _, r := range results {
		if r.Token == "" {
			byToken = nil
			break
		}
		byToken[r.Token] = r
	}

	if byToken == nil {
		if len(results) != len(files) {
			return nil, fmt.Errorf("%w: sent %d, got %d", ErrResultMismatch, len(files), len(results))
		}
		return results, nil
	}

	ordered := make([]receipt.ScanResult, len(files))
	for i, f := range files {
		r, ok := byToken[f.Token]
		if !ok {
			r = receipt.ScanResult{Filename: f.Filename, Token: f.Token, Status: "error", Message: "no result returned for this file"}
		}
		ordered[i] = r
	}
	return ordered, nil
}
