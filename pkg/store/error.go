package store

// NotFoundError is returned when a stream has no matching records.
type NotFoundError struct {
	Stream string
}

func (e NotFoundError) Error() string {
	if e.Stream == "" {
		return "stream not found"
	}

	return "stream not found: " + e.Stream
}
