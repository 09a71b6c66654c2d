package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// sseHandler writes the given body as an event stream, flushing after
// every write so chunk boundaries land mid-stream.
func sseHandler(chunks ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		flusher, ok := w.(http.Flusher)
		Expect(ok).To(BeTrue())

		for _, chunk := range chunks {
			fmt.Fprint(w, chunk)
			flusher.Flush()
		}
	}
}

var _ = Describe("Client", func() {
	var (
		server *httptest.Server
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterEach(func() {
		if server != nil {
			server.Close()
			server = nil
		}
	})

	Describe("Connect", func() {
		It("delivers events incrementally across arbitrary chunk splits", func() {
			// The same stream split mid-line and mid-CRLF must parse
			// identically to an unsplit stream.
			server = httptest.NewServer(sseHandler(
				"event: ping\ndata: hel",
				"lo\nid: 1\n\ndata: world\n\n",
			))

			var events []Event
			err := Connect(ctx, server.URL, Stream{
				OnEvent: func(ev Event) { events = append(events, ev) },
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(events).To(HaveLen(2))
			Expect(events[0].Type).To(Equal("ping"))
			Expect(events[0].Data).To(Equal("hello"))
			Expect(events[0].ID).To(Equal("1"))
			Expect(events[1].Type).To(BeEmpty())
			Expect(events[1].Data).To(Equal("world"))
			Expect(events[1].ID).To(BeEmpty())
		})

		It("sends Accept: text/event-stream by default", func() {
			var accept string
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				accept = r.Header.Get("Accept")
				w.Header().Set("Content-Type", "text/event-stream")
			}))

			Expect(Connect(ctx, server.URL, Stream{})).To(Succeed())
			Expect(accept).To(Equal("text/event-stream"))
		})

		It("lets per-stream headers override client headers", func() {
			var auth string
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				auth = r.Header.Get("Authorization")
				w.Header().Set("Content-Type", "text/event-stream")
			}))

			c := NewClient(&Options{Headers: map[string]string{"Authorization": "Bearer old"}})
			err := c.Connect(ctx, server.URL, Stream{
				Headers: map[string]string{"Authorization": "Bearer new"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(auth).To(Equal("Bearer new"))
		})

		It("posts the request body when configured", func() {
			var method, body string
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				method = r.Method
				b, _ := io.ReadAll(r.Body)
				body = string(b)
				w.Header().Set("Content-Type", "text/event-stream")
			}))

			err := Connect(ctx, server.URL, Stream{
				Method: http.MethodPost,
				Body:   []byte(`{"stream":true}`),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(method).To(Equal(http.MethodPost))
			Expect(body).To(Equal(`{"stream":true}`))
		})

		It("fails fast on a non-event-stream content type", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"error":"nope"}`)
			}))

			err := Connect(ctx, server.URL, Stream{})

			var ctErr ContentTypeError
			Expect(err).To(BeAssignableToTypeOf(ctErr))
			Expect(err.Error()).To(ContainSubstring("application/json"))
		})

		It("accepts content types with parameters", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
				fmt.Fprint(w, "data: x\n\n")
			}))

			var events []Event
			err := Connect(ctx, server.URL, Stream{
				OnEvent: func(ev Event) { events = append(events, ev) },
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})

		It("treats non-2xx statuses as transport errors", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "down", http.StatusBadGateway)
			}))

			err := Connect(ctx, server.URL, Stream{})

			var statusErr StatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.StatusCode).To(Equal(http.StatusBadGateway))
		})

		It("surfaces retry hints without reconnecting itself", func() {
			server = httptest.NewServer(sseHandler("retry: 1500\ndata: x\n\n"))

			var retries []time.Duration
			err := Connect(ctx, server.URL, Stream{
				OnRetry: func(d time.Duration) { retries = append(retries, d) },
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(retries).To(Equal([]time.Duration{1500 * time.Millisecond}))
		})

		It("rejects promptly when the context is cancelled mid-stream", func() {
			release := make(chan struct{})
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				w.(http.Flusher).Flush()
				<-release
			}))
			defer close(release)

			cancelCtx, cancel := context.WithCancel(ctx)
			errCh := make(chan error, 1)
			go func() {
				errCh <- Connect(cancelCtx, server.URL, Stream{})
			}()

			cancel()
			Eventually(errCh, 5*time.Second).Should(Receive(MatchError(ContainSubstring("context canceled"))))
		})
	})

	Describe("Last-Event-ID tracking", func() {
		It("retains the last non-empty id for the next connect", func() {
			var seenIDs []string
			requests := 0
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenIDs = append(seenIDs, r.Header.Get(LastEventIDHeader))
				requests++

				w.Header().Set("Content-Type", "text/event-stream")
				if requests == 1 {
					// Second message carries no id line; "42" must
					// still stick.
					fmt.Fprint(w, "id: 42\ndata: a\n\ndata: b\n\n")
				}
			}))

			c := NewClient(nil)
			Expect(c.Connect(ctx, server.URL, Stream{})).To(Succeed())
			Expect(c.LastEventID()).To(Equal("42"))

			Expect(c.Connect(ctx, server.URL, Stream{})).To(Succeed())
			Expect(seenIDs).To(Equal([]string{"", "42"}))
		})

		It("clears the header when the stream sends an empty id", func() {
			var seenIDs []string
			requests := 0
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenIDs = append(seenIDs, r.Header.Get(LastEventIDHeader))
				requests++

				w.Header().Set("Content-Type", "text/event-stream")
				if requests == 1 {
					fmt.Fprint(w, "id: 9\ndata: a\n\nid:\ndata: b\n\n")
				}
			}))

			c := NewClient(nil)
			Expect(c.Connect(ctx, server.URL, Stream{})).To(Succeed())
			Expect(c.LastEventID()).To(BeEmpty())

			Expect(c.Connect(ctx, server.URL, Stream{})).To(Succeed())
			Expect(seenIDs).To(Equal([]string{"", ""}))
		})

		It("seeds the resume position from options", func() {
			var seen string
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r.Header.Get(LastEventIDHeader)
				w.Header().Set("Content-Type", "text/event-stream")
			}))

			c := NewClient(&Options{LastEventID: "cursor-7"})
			Expect(c.Connect(ctx, server.URL, Stream{})).To(Succeed())
			Expect(seen).To(Equal("cursor-7"))
		})
	})
})
