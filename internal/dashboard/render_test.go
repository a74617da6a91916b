package dashboard

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/paragon/internal/receipt"
	"github.com/zombor/paragon/internal/upload"
)

var _ = Describe("Renderer", func() {
	var r *Renderer

	BeforeEach(func() {
		r = NewRenderer(receipt.ThemeDark)
	})

	DescribeTable("always shows totals with two decimals",
		func(total float64, want string) {
			out := r.List([]receipt.Receipt{rec(1, "2024-01-01", "Lidl", "", total)}, false, nil)
			Expect(out).To(ContainSubstring(want))
		},
		Entry("integer", 20.0, "20.00"),
		Entry("one decimal", 19.5, "19.50"),
		Entry("three decimals", 10.005, "10.01"),
		Entry("long fraction", 3.14159, "3.14"),
	)

	It("marks selected receipts in selection mode", func() {
		receipts := []receipt.Receipt{rec(1, "2024-01-01", "Lidl", "", 1), rec(2, "2024-01-02", "Żabka", "", 2)}
		out := r.List(receipts, true, func(id int) bool { return id == 2 })
		lines := strings.Split(out, "\n")
		Expect(lines[0]).To(ContainSubstring("[ ]"))
		Expect(lines[1]).To(ContainSubstring("[x]"))
	})

	It("scales category bars to the largest total", func() {
		out := r.Categories([]CategoryTotal{{Category: "Paliwo", Total: 200}, {Category: "Dom", Total: 100}})
		lines := strings.Split(out, "\n")
		Expect(strings.Count(lines[1], "█")).To(Equal(BarWidth))
		Expect(strings.Count(lines[2], "█")).To(Equal(BarWidth / 2))
	})

	It("flags a receipt whose items do not add up", func() {
		out := r.Receipt(receipt.Receipt{StoreName: "Lidl", TotalAmount: 20, Items: []receipt.LineItem{{Name: "Ser", Price: 19.5}}})
		Expect(out).To(ContainSubstring("19.50"))
		Expect(out).To(ContainSubstring("nie zgadza"))
	})

	It("lists failed uploads with their actions", func() {
		out := r.Queue([]upload.Item{{Filename: "blurry.jpg", State: upload.StateFailed, Reason: "Nieczytelne"}}, upload.DefaultRetryPolicy())
		Expect(out).To(ContainSubstring("blurry.jpg"))
		Expect(out).To(ContainSubstring("Nieczytelne"))
		Expect(out).To(ContainSubstring("retry"))
	})

	It("renders an empty dashboard", func() {
		Expect(r.Dashboard(Build(nil, Filter{}))).To(ContainSubstring("Brak"))
	})
})
