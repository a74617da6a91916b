package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	// ErrEmptySelection is returned when deleting with nothing selected
	ErrEmptySelection = errors.New("no receipts selected")
	// ErrDeclined is returned when the user does not confirm a batch delete
	ErrDeclined = errors.New("batch delete declined")
)

// Mode is the selection mode of the receipt list
type Mode int

const (
	Off Mode = iota
	On
)

func (m Mode) String() string {
	if m == On {
		return "on"
	}
	return "off"
}

// Action tells the caller what a click on a receipt did
type Action int

const (
	// ActionOpen means the receipt should be opened for editing
	ActionOpen Action = iota
	// ActionToggled means the receipt's membership in the selection changed
	ActionToggled
)

// Deleter removes receipts in one request
type Deleter interface {
	BatchDelete(ctx context.Context, ids []int) error
}

// Confirm asks the user a yes/no question
type Confirm func(prompt string) bool

// Controller tracks selection mode and the selected receipt ids
type Controller struct {
	mu       sync.Mutex
	mode     Mode
	selected map[int]struct{}
}

// NewController returns a controller with selection mode off
func NewController() *Controller {
	return &Controller{selected: make(map[int]struct{})}
}

// Mode returns the current mode
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Toggle switches selection mode. Leaving selection mode clears the set.
func (c *Controller) Toggle() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == On {
		c.mode = Off
		c.selected = make(map[int]struct{})
	} else {
		c.mode = On
	}
	return c.mode
}

// Click handles a click on receipt id
func (c *Controller) Click(id int) Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Off {
		return ActionOpen
	}
	if _, ok := c.selected[id]; ok {
		delete(c.selected, id)
	} else {
		c.selected[id] = struct{}{}
	}
	return ActionToggled
}

// SelectAll selects every visible id, or clears them when all are already selected
func (c *Controller) SelectAll(visible []int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := len(visible) > 0
	for _, id := range visible {
		if _, ok := c.selected[id]; !ok {
			all = false
			break
		}
	}
	for _, id := range visible {
		if all {
			delete(c.selected, id)
		} else {
			c.selected[id] = struct{}{}
		}
	}
}

// Remove drops id from the selection
func (c *Controller) Remove(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.selected, id)
}

// IsSelected reports whether id is selected
func (c *Controller) IsSelected(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.selected[id]
	return ok
}

// Selected returns the selected ids in ascending order
func (c *Controller) Selected() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sorted()
}

// Count returns the number of selected ids
func (c *Controller) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.selected)
}

func (c *Controller) sorted() []int {
	ids := make([]int, 0, len(c.selected))
	for id := range c.selected {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ConfirmPrompt is the question asked before deleting count receipts
func ConfirmPrompt(count int) string {
	return fmt.Sprintf("Czy na pewno usunąć %d zaznaczonych paragonów?", count)
}

// DeleteSelected deletes every selected receipt in one request after the user
// confirms. On success selection mode is turned off and the set is cleared;
// on failure the selection is kept so the user can try again.
func (c *Controller) DeleteSelected(ctx context.Context, d Deleter, confirm Confirm) ([]int, error) {
	c.mu.Lock()
	ids := c.sorted()
	c.mu.Unlock()

	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}
	if !confirm(ConfirmPrompt(len(ids))) {
		return nil, ErrDeclined
	}

	if err := d.BatchDelete(ctx, ids); err != nil {
		slog.Error("Failed to delete selected receipts", "count", len(ids), "error", err)
		return nil, fmt.Errorf("deleting %d receipts: %w", len(ids), err)
	}

	c.mu.Lock()
	c.mode = Off
	c.selected = make(map[int]struct{})
	c.mu.Unlock()
	return ids, nil
}
