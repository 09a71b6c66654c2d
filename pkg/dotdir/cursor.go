package dotdir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const cursorsDir = "cursors"

// Cursor is the persisted resume position for one stream URL.
type Cursor struct {
	// URL is the stream endpoint this cursor belongs to.
	URL string `json:"url"`

	// LastEventID is the most recent "id:" value received from the stream.
	LastEventID string `json:"last_event_id"`

	// UpdatedAt is when the cursor was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// cursorPath maps a stream URL to its cursor file. URLs are hashed so
// arbitrary characters never leak into filenames.
func cursorPath(dir, url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(dir, cursorsDir, hex.EncodeToString(sum[:8])+".json")
}

// LoadCursor loads the cursor for the given stream URL.
// Returns nil, nil if no cursor exists yet.
// If overrideDir is non-empty, it is used instead of the default ~/.wiretap/ location.
func (m *Manager) LoadCursor(url, overrideDir string) (*Cursor, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(cursorPath(dir, url))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cursor: %w", err)
	}

	cursor := &Cursor{}
	if err := json.Unmarshal(data, cursor); err != nil {
		return nil, fmt.Errorf("parsing cursor: %w", err)
	}

	return cursor, nil
}

// SaveCursor persists the resume position for the given stream URL.
// An empty lastEventID clears the cursor instead, matching the SSE rule
// that an empty "id:" stops Last-Event-ID from being sent on reconnect.
func (m *Manager) SaveCursor(url, lastEventID, overrideDir string) error {
	if lastEventID == "" {
		return m.ClearCursor(url, overrideDir)
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	path := cursorPath(dir, url)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cursors directory: %w", err)
	}

	data, err := json.MarshalIndent(Cursor{
		URL:         url,
		LastEventID: lastEventID,
		UpdatedAt:   time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cursor: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing cursor: %w", err)
	}

	return nil
}

// ClearCursor removes the cursor for the given stream URL.
// Returns nil if no cursor exists (already cleared).
func (m *Manager) ClearCursor(url, overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(cursorPath(dir, url)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing cursor: %w", err)
	}

	return nil
}
