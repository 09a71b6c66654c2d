package sse

// NoColon is the field-length value reported for a line that contains no
// colon at all. Downstream distinguishes three cases: a zero-length line is
// an event delimiter, a colon at offset 0 is a comment, and NoColon on a
// non-empty line is a malformed field that is ignored.
const NoColon = -1

// LineFunc receives one logical line with its terminator stripped, plus the
// byte offset of the first colon in the line (or NoColon). The line slice is
// only valid for the duration of the call; callers that retain it must copy.
type LineFunc func(line []byte, fieldLen int)

// LineSplitter reassembles logical lines from arbitrarily-split byte chunks.
// Lines end at "\n", "\r", or "\r\n"; a CRLF split across two chunks is
// absorbed without producing a spurious empty line. The splitter owns a
// growable carry buffer holding at most the current unterminated line, so
// feeding a stream chunk-by-chunk yields exactly the same line sequence as
// feeding it whole.
type LineSplitter struct {
	onLine LineFunc

	// buf carries the unterminated tail line between Write calls.
	// Completed lines are emitted immediately and never retained.
	buf []byte

	// pos is the scan cursor into buf.
	pos int

	// fieldLen is the first-colon offset of the line being scanned,
	// relative to the start of that line, or NoColon.
	fieldLen int

	// discardNewline absorbs the "\n" half of a CRLF terminator after a
	// "\r" has already ended the line, including across a chunk boundary.
	discardNewline bool
}

// NewLineSplitter creates a splitter that invokes onLine for every
// completed line.
func NewLineSplitter(onLine LineFunc) *LineSplitter {
	return &LineSplitter{
		onLine:   onLine,
		fieldLen: NoColon,
	}
}

// Write feeds the next chunk of bytes through the splitter. The chunk may be
// reused by the caller after Write returns.
func (s *LineSplitter) Write(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	s.buf = append(s.buf, chunk...)

	// lineStart tracks the beginning of the line currently being scanned.
	// buf always begins at a line start, so the first line starts at 0.
	lineStart := 0

	for s.pos < len(s.buf) {
		if s.discardNewline {
			if s.buf[s.pos] == '\n' {
				s.pos++
				lineStart = s.pos
			}
			s.discardNewline = false
			continue
		}

		switch s.buf[s.pos] {
		case ':':
			if s.fieldLen == NoColon {
				s.fieldLen = s.pos - lineStart
			}
			s.pos++

		case '\r':
			s.discardNewline = true
			fallthrough

		case '\n':
			s.onLine(s.buf[lineStart:s.pos], s.fieldLen)
			s.pos++
			lineStart = s.pos
			s.fieldLen = NoColon

		default:
			s.pos++
		}
	}

	// Retain only the unterminated tail so buf never holds a complete line.
	switch {
	case lineStart >= len(s.buf):
		s.buf = s.buf[:0]
		s.pos = 0

	case lineStart > 0:
		s.buf = append(s.buf[:0], s.buf[lineStart:]...)
		s.pos = len(s.buf)
	}
}
