package sse

import (
	"context"
	"io"
)

// readBufferSize is the transport read granularity. Chunk boundaries carry
// no meaning; the LineSplitter is split-point agnostic.
const readBufferSize = 16 * 1024

// readChunks drains r, invoking onChunk for every chunk received, until the
// stream reports io.EOF (returned as nil) or fails. The chunk slice is
// reused between reads. Context cancellation is checked between reads;
// aborting the underlying request is what actually unblocks a pending Read.
func readChunks(ctx context.Context, r io.Reader, onChunk func([]byte) error) error {
	buf := make([]byte, readBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			if cbErr := onChunk(buf[:n]); cbErr != nil {
				return cbErr
			}
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// TeeReader reads SSE events from a source io.Reader while simultaneously
// writing all raw bytes verbatim to a destination io.Writer.
// This effectively enables "tee" shaped reading where TeeReader.Next
// returns the Event for consumption while the destination receives an
// exact byte-for-byte copy of the stream, original line terminators
// included.
type TeeReader struct {
	src  io.Reader
	dest io.Writer

	splitter *LineSplitter
	decoder  *Decoder

	// pending holds events parsed ahead of the caller within one read.
	pending []Event

	buf  []byte
	done bool
}

// NewTeeReader returns a TeeReader that parses SSE events from the src
// io.Reader and writes all raw bytes through to dest.
// The dest writer typically backs an io.Pipe connected to a downstream HTTP
// response.
func NewTeeReader(src io.Reader, dest io.Writer) *TeeReader {
	t := &TeeReader{
		src:  src,
		dest: dest,
		buf:  make([]byte, readBufferSize),
	}

	t.decoder = NewDecoder(DecoderCallbacks{
		OnEvent: func(ev Event) {
			t.pending = append(t.pending, ev)
		},
	})
	t.splitter = NewLineSplitter(t.decoder.Line)

	return t
}

// Next returns the next parsed SSE event. It blocks until a complete event
// is available (terminated by a blank line in the stream) and returns
// nil, nil when the source is exhausted. An event still accumulating when
// the source ends cleanly is yielded as the final event.
func (t *TeeReader) Next() (*Event, error) {
	for {
		if len(t.pending) > 0 {
			ev := t.pending[0]
			t.pending = t.pending[1:]
			return &ev, nil
		}

		if t.done {
			return nil, nil
		}

		n, err := t.src.Read(t.buf)
		if n > 0 {
			if _, werr := t.dest.Write(t.buf[:n]); werr != nil {
				return nil, werr
			}
			t.splitter.Write(t.buf[:n])
		}

		if err == io.EOF {
			t.done = true
			t.decoder.Flush()
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}
