package sse

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// collectedLine records one splitter emission with the line bytes copied out
// of the splitter's carry buffer.
type collectedLine struct {
	line     string
	fieldLen int
}

// splitLines feeds input through a fresh splitter in the given chunk sizes
// and returns every emitted line.
func splitLines(input string, chunkSizes ...int) []collectedLine {
	var got []collectedLine
	s := NewLineSplitter(func(line []byte, fieldLen int) {
		got = append(got, collectedLine{line: string(line), fieldLen: fieldLen})
	})

	if len(chunkSizes) == 0 {
		s.Write([]byte(input))
		return got
	}

	rest := []byte(input)
	for _, size := range chunkSizes {
		if size > len(rest) {
			size = len(rest)
		}
		s.Write(rest[:size])
		rest = rest[size:]
	}
	s.Write(rest)

	return got
}

var _ = Describe("LineSplitter", func() {
	It("emits one line per newline with the terminator stripped", func() {
		got := splitLines("data: one\ndata: two\n")
		Expect(got).To(Equal([]collectedLine{
			{line: "data: one", fieldLen: 4},
			{line: "data: two", fieldLen: 4},
		}))
	})

	It("records only the first colon of a line", func() {
		got := splitLines("data: a:b:c\n")
		Expect(got).To(HaveLen(1))
		Expect(got[0].fieldLen).To(Equal(4))
	})

	It("reports NoColon for a line without any colon", func() {
		got := splitLines("justafieldname\n")
		Expect(got).To(Equal([]collectedLine{
			{line: "justafieldname", fieldLen: NoColon},
		}))
	})

	It("reports fieldLen 0 for comment lines", func() {
		got := splitLines(": keep-alive\n")
		Expect(got).To(Equal([]collectedLine{
			{line: ": keep-alive", fieldLen: 0},
		}))
	})

	It("forwards empty lines as event delimiters", func() {
		got := splitLines("data: x\n\n")
		Expect(got).To(Equal([]collectedLine{
			{line: "data: x", fieldLen: 4},
			{line: "", fieldLen: NoColon},
		}))
	})

	It("treats CR, LF, and CRLF as equivalent terminators", func() {
		lf := splitLines("a: 1\nb: 2\n\n")
		cr := splitLines("a: 1\rb: 2\r\r")
		crlf := splitLines("a: 1\r\nb: 2\r\n\r\n")

		Expect(cr).To(Equal(lf))
		Expect(crlf).To(Equal(lf))
	})

	It("does not fabricate an empty line when CRLF is split across chunks", func() {
		got := splitLines("data: x\r\ndata: y\r\n", 8)
		Expect(got).To(Equal([]collectedLine{
			{line: "data: x", fieldLen: 4},
			{line: "data: y", fieldLen: 4},
		}))
	})

	It("carries a partial line across chunk boundaries", func() {
		got := splitLines("data: hello world\n", 3, 3, 3)
		Expect(got).To(Equal([]collectedLine{
			{line: "data: hello world", fieldLen: 4},
		}))
	})

	It("tracks the colon offset even when the colon arrives in a later chunk", func() {
		got := splitLines("event: ping\n", 4)
		Expect(got).To(Equal([]collectedLine{
			{line: "event: ping", fieldLen: 5},
		}))
	})

	It("never emits an unterminated trailing line", func() {
		got := splitLines("data: done\ndata: partial")
		Expect(got).To(Equal([]collectedLine{
			{line: "data: done", fieldLen: 4},
		}))
	})

	It("is invariant under every possible two-chunk split", func() {
		input := "event: ping\r\ndata: hello\ndata: world\r: comment\nid: 7\n\r\nretry: 100\n\n"
		whole := splitLines(input)

		for cut := 0; cut <= len(input); cut++ {
			Expect(splitLines(input, cut)).To(Equal(whole),
				"split at byte %d diverged", cut)
		}
	})

	It("is invariant when fed one byte at a time", func() {
		input := "id: 42\r\nevent: tick\ndata: a\ndata: b\n\n"
		whole := splitLines(input)

		sizes := make([]int, len(input))
		for i := range sizes {
			sizes[i] = 1
		}
		Expect(splitLines(input, sizes...)).To(Equal(whole))
	})

	It("tolerates empty chunks", func() {
		var got []collectedLine
		s := NewLineSplitter(func(line []byte, fieldLen int) {
			got = append(got, collectedLine{line: string(line), fieldLen: fieldLen})
		})

		s.Write(nil)
		s.Write([]byte("data: x"))
		s.Write([]byte{})
		s.Write([]byte("\n"))

		Expect(got).To(Equal([]collectedLine{
			{line: "data: x", fieldLen: 4},
		}))
	})
})
