package receipt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/sony/gobreaker/v2"
)

var _ = Describe("Client", func() {
	var (
		server *ghttp.Server
		client *Client
		ctx    context.Context
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		client = NewClient(server.URL())
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("ListReceipts", func() {
		var (
			receipts []Receipt
			err      error
		)

		JustBeforeEach(func() {
			receipts, err = client.ListReceipts(ctx)
		})

		When("the backend returns receipts", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodGet, "/api/receipts"),
					ghttp.RespondWith(http.StatusOK, `[
						{"id": 1, "store_name": "Biedronka", "date": "2024-01-15", "category": "Spożywcze", "total_amount": 42.5,
						 "items": [{"name": "Chleb", "price": 4.5}, {"name": "Ser", "price": 38}]},
						{"id": 2, "store_name": "Orlen", "date": null, "category": "Paliwo", "total_amount": 200, "items": []}
					]`),
				))
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should decode every receipt", func() {
				Expect(receipts).To(HaveLen(2))
				Expect(receipts[0].StoreName).To(Equal("Biedronka"))
				Expect(receipts[0].Items).To(ConsistOf(
					LineItem{Name: "Chleb", Price: 4.5},
					LineItem{Name: "Ser", Price: 38},
				))
			})

			It("should treat a null date as empty", func() {
				Expect(receipts[1].Date).To(BeEmpty())
			})
		})

		When("the backend returns null", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `null`))
			})

			It("returns an empty list", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).NotTo(BeNil())
				Expect(receipts).To(BeEmpty())
			})
		})

		When("the backend fails", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "boom"))
			})

			It("returns an HTTPStatusError", func() {
				var statusErr *HTTPStatusError
				Expect(errors.As(err, &statusErr)).To(BeTrue())
				Expect(statusErr.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(statusErr.Body).To(Equal("boom"))
			})
		})

		When("the backend is unreachable", func() {
			BeforeEach(func() {
				server.Close()
			})

			It("returns a TransportError", func() {
				Expect(IsTransport(err)).To(BeTrue())
			})
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			client = NewClient(server.URL(), WithBasicAuth(BasicAuth{Username: "anna", Password: "secret"}))
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyBasicAuth("anna", "secret"),
				ghttp.RespondWith(http.StatusOK, `[]`),
			))
		})

		It("sends the credentials", func() {
			_, err := client.ListReceipts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	Describe("ScanReceipts", func() {
		var (
			files   []UploadFile
			results []ScanResult
			err     error
		)

		BeforeEach(func() {
			files = []UploadFile{
				{Token: "t-1", Filename: "a.jpg", ContentType: "image/jpeg", Data: []byte("first")},
				{Token: "t-2", Filename: "a.jpg", ContentType: "image/png", Data: []byte("second")},
			}
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/scan-receipt"),
				func(w http.ResponseWriter, r *http.Request) {
					defer GinkgoRecover()
					Expect(r.ParseMultipartForm(1 << 20)).To(Succeed())
					parts := r.MultipartForm.File["files"]
					Expect(parts).To(HaveLen(2))
					Expect(parts[0].Filename).To(Equal("a.jpg"))
					Expect(parts[1].Header.Get("Content-Type")).To(Equal("image/png"))
					f, openErr := parts[1].Open()
					Expect(openErr).NotTo(HaveOccurred())
					data, _ := io.ReadAll(f)
					Expect(string(data)).To(Equal("second"))
					Expect(r.MultipartForm.Value["tokens"]).To(Equal([]string{"t-1", "t-2"}))
				},
				ghttp.RespondWith(http.StatusOK, `[
					{"filename": "a.jpg", "status": "saved", "db_id": 7},
					{"filename": "a.jpg", "status": "rejected", "message": "To nie paragon"}
				]`),
			))
		})

		JustBeforeEach(func() {
			results, err = client.ScanReceipts(ctx, files)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should decode the per-file results", func() {
			Expect(results).To(HaveLen(2))
			Expect(results[0].Saved()).To(BeTrue())
			Expect(results[0].DBID).To(Equal(7))
			Expect(results[1].Saved()).To(BeFalse())
			Expect(results[1].Message).To(Equal("To nie paragon"))
		})
	})

	Describe("CreateReceipt", func() {
		It("posts the draft to the manual endpoint", func() {
			draft := Draft{StoreName: "Lidl", Date: "2024-02-01", Category: "Spożywcze", TotalAmount: 12.5,
				Items: []LineItem{{Name: "Jabłka", Price: 12.5}}}
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/receipts/manual"),
				ghttp.VerifyContentType("application/json"),
				ghttp.VerifyJSONRepresenting(draft),
				ghttp.RespondWith(http.StatusOK, `{"status": "created"}`),
			))

			Expect(client.CreateReceipt(ctx, draft)).To(Succeed())
		})
	})

	Describe("UpdateReceipt", func() {
		It("puts the full record without the id", func() {
			draft := Draft{StoreName: "Lidl", Date: "2024-02-01", Category: "Spożywcze", TotalAmount: 3, Items: []LineItem{}}
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPut, "/api/receipts/12"),
				ghttp.VerifyJSONRepresenting(draft),
				ghttp.RespondWith(http.StatusOK, `{"status": "updated"}`),
			))

			Expect(client.UpdateReceipt(ctx, 12, draft)).To(Succeed())
		})

		When("the receipt is gone", func() {
			It("matches ErrNotFound", func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, `{"detail": "Not found"}`))
				err := client.UpdateReceipt(ctx, 12, Draft{})
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			})
		})
	})

	Describe("DeleteReceipt", func() {
		It("issues a DELETE", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodDelete, "/api/receipts/5"),
				ghttp.RespondWith(http.StatusOK, `{"status": "deleted"}`),
			))
			Expect(client.DeleteReceipt(ctx, 5)).To(Succeed())
		})
	})

	Describe("BatchDelete", func() {
		It("sends every id in one request", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/receipts/batch-delete"),
				ghttp.VerifyJSON(`{"ids": [1, 2, 3]}`),
				ghttp.RespondWith(http.StatusOK, `{"status": "deleted"}`),
			))
			Expect(client.BatchDelete(ctx, []int{1, 2, 3})).To(Succeed())
		})
	})

	Describe("Chat", func() {
		It("sends the message with history and returns the reply", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyJSON(`{"message": "Ile wydałem?", "history": [{"role": "user", "content": "Cześć"}, {"role": "assistant", "content": "Hej"}]}`),
				ghttp.RespondWith(http.StatusOK, `{"reply": "**120,00 zł**"}`),
			))

			reply, err := client.Chat(ctx, "Ile wydałem?", []ChatMessage{
				{Role: RoleUser, Content: "Cześć"},
				{Role: RoleAssistant, Content: "Hej"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("**120,00 zł**"))
		})

		It("sends an empty history array rather than null", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyJSON(`{"message": "hej", "history": []}`),
				ghttp.RespondWith(http.StatusOK, `{"reply": "ok"}`),
			))
			_, err := client.Chat(ctx, "hej", nil)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("circuit breaker", func() {
		BeforeEach(func() {
			client = NewClient(server.URL(), WithBreaker(BreakerConfig{
				MinRequests:  2,
				FailureRatio: 0.5,
				OpenTimeout:  time.Minute,
			}))
			server.AllowUnhandledRequests = true
			server.UnhandledRequestStatusCode = http.StatusBadGateway
		})

		It("fails fast after repeated backend failures", func() {
			_, err := client.ListReceipts(ctx)
			Expect(err).To(HaveOccurred())
			_, err = client.ListReceipts(ctx)
			Expect(err).To(HaveOccurred())

			_, err = client.ListReceipts(ctx)
			Expect(errors.Is(err, gobreaker.ErrOpenState)).To(BeTrue())
			Expect(server.ReceivedRequests()).To(HaveLen(2))
		})

		It("does not trip on client errors", func() {
			server.UnhandledRequestStatusCode = http.StatusNotFound
			for i := 0; i < 3; i++ {
				err := client.DeleteReceipt(ctx, 1)
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			}
			Expect(server.ReceivedRequests()).To(HaveLen(3))
		})
	})
})
