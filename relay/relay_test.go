package relay_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/wiretap/pkg/sse"
	"github.com/papercomputeco/wiretap/pkg/store/inmemory"
	"github.com/papercomputeco/wiretap/relay"
)

// tickingUpstream serves an SSE stream that emits a numbered event every
// few milliseconds until the client disconnects.
func tickingUpstream() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)

		seq := 0
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				seq++
				fmt.Fprintf(w, "id: %d\nevent: tick\ndata: tick %d\n\n", seq, seq)
				flusher.Flush()
			}
		}
	}))
}

var _ = Describe("Relay", func() {
	var (
		upstream *httptest.Server
		store    *inmemory.Driver
		r        *relay.Relay
		baseURL  string
	)

	BeforeEach(func() {
		upstream = tickingUpstream()
		store = inmemory.NewDriver()

		var err error
		r, err = relay.New(relay.Config{
			UpstreamURL: upstream.URL,
			Store:       store,
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		baseURL = "http://" + listener.Addr().String()

		go func() {
			defer GinkgoRecover()
			Expect(r.RunWithListener(listener)).To(Succeed())
		}()

		DeferCleanup(func() {
			Expect(r.Close()).To(Succeed())
			upstream.Close()
		})
	})

	It("requires an upstream URL", func() {
		_, err := relay.New(relay.Config{}, zap.NewNop())
		Expect(err).To(MatchError(ContainSubstring("upstream URL")))
	})

	It("relays upstream events to a downstream subscriber", func() {
		events := make(chan sse.Event, 16)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			defer GinkgoRecover()
			_ = sse.Connect(ctx, baseURL+"/stream", sse.Stream{
				OnEvent: func(evt sse.Event) { events <- evt },
			})
		}()

		var evt sse.Event
		Eventually(events, "5s").Should(Receive(&evt))
		Expect(evt.Type).To(Equal("tick"))
		Expect(evt.Data).To(HavePrefix("tick "))
		Expect(evt.ID).NotTo(BeEmpty())
	})

	It("records upstream events as they pass through", func() {
		Eventually(func() int64 {
			n, err := store.Count(context.Background(), upstream.URL)
			Expect(err).NotTo(HaveOccurred())
			return n
		}, "5s").Should(BeNumerically(">", 0))
	})

	It("tracks the upstream resume position", func() {
		Eventually(r.LastEventID, "5s").ShouldNot(BeEmpty())
	})

	It("reports health and subscriber counts", func() {
		resp, err := http.Get(baseURL + "/healthz")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var health struct {
			Status      string `json:"status"`
			Upstream    string `json:"upstream"`
			Subscribers int    `json:"subscribers"`
		}
		Expect(json.NewDecoder(resp.Body).Decode(&health)).To(Succeed())
		Expect(health.Status).To(Equal("ok"))
		Expect(health.Upstream).To(Equal(upstream.URL))
	})
})
