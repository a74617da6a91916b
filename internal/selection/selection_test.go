package selection

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockDeleter is a mock implementation of Deleter
type mockDeleter struct {
	calls     [][]int
	deleteErr error
}

func (m *mockDeleter) BatchDelete(ctx context.Context, ids []int) error {
	m.calls = append(m.calls, ids)
	return m.deleteErr
}

var _ = Describe("Controller", func() {
	var c *Controller

	BeforeEach(func() {
		c = NewController()
	})

	It("starts with selection mode off", func() {
		Expect(c.Mode()).To(Equal(Off))
	})

	Describe("Click", func() {
		It("opens the receipt when selection mode is off", func() {
			Expect(c.Click(7)).To(Equal(ActionOpen))
			Expect(c.IsSelected(7)).To(BeFalse())
		})

		It("toggles membership when selection mode is on", func() {
			c.Toggle()
			Expect(c.Click(7)).To(Equal(ActionToggled))
			Expect(c.IsSelected(7)).To(BeTrue())
			Expect(c.Click(7)).To(Equal(ActionToggled))
			Expect(c.IsSelected(7)).To(BeFalse())
		})
	})

	Describe("Toggle", func() {
		It("clears the selection when turned off", func() {
			c.Toggle()
			c.Click(1)
			c.Click(2)
			Expect(c.Toggle()).To(Equal(Off))
			Expect(c.Count()).To(BeZero())
		})
	})

	Describe("SelectAll", func() {
		var visible []int

		BeforeEach(func() {
			visible = []int{1, 2, 3, 4, 5}
			c.Toggle()
		})

		It("selects all 5 unselected rows, then clears all 5", func() {
			c.SelectAll(visible)
			Expect(c.Selected()).To(Equal(visible))

			c.SelectAll(visible)
			Expect(c.Selected()).To(BeEmpty())
		})

		It("selects the rest when only some are selected", func() {
			c.Click(3)
			c.SelectAll(visible)
			Expect(c.Count()).To(Equal(5))
		})

		It("leaves hidden selections alone", func() {
			c.Click(99)
			c.SelectAll(visible)
			c.SelectAll(visible)
			Expect(c.Selected()).To(Equal([]int{99}))
		})
	})

	Describe("Remove", func() {
		It("drops exactly that id", func() {
			c.Toggle()
			c.SelectAll([]int{1, 2, 3})
			c.Remove(2)
			Expect(c.Selected()).To(Equal([]int{1, 3}))
		})
	})

	Describe("DeleteSelected", func() {
		var (
			deleter  *mockDeleter
			asked    []string
			answer   bool
			deleted  []int
			err      error
			ctx      context.Context
			confirm  Confirm
			selected []int
		)

		BeforeEach(func() {
			deleter = &mockDeleter{}
			asked = nil
			answer = true
			ctx = context.Background()
			confirm = func(prompt string) bool {
				asked = append(asked, prompt)
				return answer
			}
			selected = []int{4, 2, 9}
		})

		JustBeforeEach(func() {
			c.Toggle()
			for _, id := range selected {
				c.Click(id)
			}
			deleted, err = c.DeleteSelected(ctx, deleter, confirm)
		})

		When("the user confirms", func() {
			It("deletes every id in one request", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(deleter.calls).To(HaveLen(1))
				Expect(deleter.calls[0]).To(Equal([]int{2, 4, 9}))
				Expect(deleted).To(Equal([]int{2, 4, 9}))
			})

			It("states the count in the confirmation", func() {
				Expect(asked).To(HaveLen(1))
				Expect(asked[0]).To(ContainSubstring("3"))
			})

			It("turns selection mode off and clears the set", func() {
				Expect(c.Mode()).To(Equal(Off))
				Expect(c.Count()).To(BeZero())
			})
		})

		When("the user declines", func() {
			BeforeEach(func() {
				answer = false
			})

			It("does not call the backend", func() {
				Expect(err).To(MatchError(ErrDeclined))
				Expect(deleter.calls).To(BeEmpty())
				Expect(c.Count()).To(Equal(3))
			})
		})

		When("nothing is selected", func() {
			BeforeEach(func() {
				selected = nil
			})

			It("returns ErrEmptySelection without asking", func() {
				Expect(err).To(MatchError(ErrEmptySelection))
				Expect(asked).To(BeEmpty())
			})
		})

		When("the backend fails", func() {
			var setupErr error

			BeforeEach(func() {
				setupErr = errors.New("backend down")
				deleter.deleteErr = setupErr
			})

			It("keeps the selection", func() {
				Expect(err).To(MatchError(setupErr))
				Expect(c.Mode()).To(Equal(On))
				Expect(c.Selected()).To(Equal([]int{2, 4, 9}))
			})
		})
	})
})
