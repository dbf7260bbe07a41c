package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MarkerRecord is the on-disk form of a hard stop. Its mere presence on
// durable storage blocks order submission for the owning pipeline until an
// operator clears it with the reset code.
type MarkerRecord struct {
	TrippedAt time.Time `json:"tripped_at"`
	Pipeline  string    `json:"pipeline"`
	Code      string    `json:"code"`
	Reason    string    `json:"reason"`
	ResetCode string    `json:"reset_code"`
}

// Marker manages one pipeline's hard-stop file.
type Marker struct {
	path string
}

func NewMarker(path string) *Marker {
	return &Marker{path: path}
}

func (m *Marker) Path() string { return m.path }

// Load reads the marker if present. ok is false when no marker exists.
func (m *Marker) Load() (rec MarkerRecord, ok bool, err error) {
	b, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return MarkerRecord{}, false, nil
	}
	if err != nil {
		return MarkerRecord{}, false, fmt.Errorf("read hard-stop marker: %w", err)
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		// An unreadable marker still means a stop happened; refuse to trade
		// rather than guess.
		return MarkerRecord{}, true, fmt.Errorf("parse hard-stop marker %s: %w", m.path, err)
	}
	return rec, true, nil
}

// Write persists the marker atomically: tmp file + fsync + rename, then a
// best-effort fsync of the parent directory. A write failure here must block
// the hard-stop transition from completing.
func (m *Marker) Write(rec MarkerRecord) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal hard-stop marker: %w", err)
	}
	if err := writeFileAtomic(m.path, b, 0o600); err != nil {
		return fmt.Errorf("write hard-stop marker: %w", err)
	}
	return nil
}

// Clear removes the marker. Missing is not an error.
func (m *Marker) Clear() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear hard-stop marker: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".marker-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	// best-effort fsync of the parent dir to harden the rename
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
