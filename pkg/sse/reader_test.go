package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// errReader fails with err after its contents are drained.
type errReader struct {
	r   io.Reader
	err error
}

func (e *errReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		return n, e.err
	}
	return n, err
}

var _ = Describe("TeeReader", func() {
	var dst *bytes.Buffer

	BeforeEach(func() {
		dst = &bytes.Buffer{}
	})

	Describe("Next", func() {
		Context("with standard SSE events", func() {
			It("parses a single event", func() {
				src := strings.NewReader("data: hello world\n\n")
				r := NewTeeReader(src, dst)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("hello world"))
				Expect(ev.Type).To(BeEmpty())
				Expect(ev.ID).To(BeEmpty())

				ev, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})

			It("parses multiple events", func() {
				src := strings.NewReader("data: first\n\ndata: second\n\n")
				r := NewTeeReader(src, dst)

				ev1, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev1.Data).To(Equal("first"))

				ev2, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev2.Data).To(Equal("second"))

				ev3, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev3).To(BeNil())
			})

			It("parses event type and ID", func() {
				src := strings.NewReader("event: content_block_delta\nid: 42\ndata: {\"type\":\"delta\"}\n\n")
				r := NewTeeReader(src, dst)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Type).To(Equal("content_block_delta"))
				Expect(ev.ID).To(Equal("42"))
				Expect(ev.Data).To(Equal("{\"type\":\"delta\"}"))
			})

			It("yields an in-progress event when the stream ends without a blank line", func() {
				src := strings.NewReader("data: unterminated\n")
				r := NewTeeReader(src, dst)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("unterminated"))

				ev, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})

			It("skips leading blank lines before the first event", func() {
				src := strings.NewReader("\n\ndata: hello\n\n")
				r := NewTeeReader(src, dst)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("hello"))
			})

			It("drops non-empty lines with no colon", func() {
				src := strings.NewReader("data\n\ndata: hello\n\n")
				r := NewTeeReader(src, dst)

				// "data" with no colon names a field without a value;
				// the block contributes nothing and is not an event.
				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("hello"))
			})
		})

		Context("teeing raw bytes", func() {
			It("copies the stream byte-for-byte, CRLF terminators included", func() {
				raw := "event: ping\r\ndata: hello\r\n\r\ndata: partial"
				r := NewTeeReader(strings.NewReader(raw), dst)

				for {
					ev, err := r.Next()
					Expect(err).NotTo(HaveOccurred())
					if ev == nil {
						break
					}
				}

				Expect(dst.String()).To(Equal(raw))
			})

			It("tees comment lines even though they parse to nothing", func() {
				raw := ": keep-alive\n\ndata: x\n\n"
				r := NewTeeReader(strings.NewReader(raw), dst)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("x"))

				Expect(dst.String()).To(Equal(raw))
			})
		})

		Context("on transport errors", func() {
			It("propagates source read errors", func() {
				boom := errors.New("connection reset")
				r := NewTeeReader(&errReader{r: strings.NewReader("data: x"), err: boom}, dst)

				_, err := r.Next()
				Expect(err).To(MatchError(boom))
			})

			It("propagates destination write errors", func() {
				pr, pw := io.Pipe()
				_ = pr.CloseWithError(errors.New("downstream gone"))

				r := NewTeeReader(strings.NewReader("data: x\n\n"), pw)
				_, err := r.Next()
				Expect(err).To(HaveOccurred())
			})
		})
	})
})
