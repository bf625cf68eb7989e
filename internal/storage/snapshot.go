package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// SchemaVersion is bumped whenever a persisted state shape changes. Loads
// refuse snapshots written under a different version instead of silently
// decoding into a mismatched shape.
const SchemaVersion = 1

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSchemaVersion    = errors.New("snapshot schema version mismatch")
)

// envelope wraps every persisted blob with its schema version.
type envelope struct {
	SchemaVersion int             `json:"schemaVersion"`
	SavedAt       string          `json:"savedAt"`
	State         json.RawMessage `json:"state"`
}

// SnapshotStore persists named JSON state blobs under a directory. Each
// service owns one named blob; writes are atomic (temp file + rename) and a
// failed save never fails the in-memory operation that triggered it.
type SnapshotStore struct {
	dir     string
	enabled bool
}

// NewSnapshotStore creates a snapshot store rooted at dir. When disabled,
// Save is a no-op and Load reports not found.
func NewSnapshotStore(dir string, enabled bool) (*SnapshotStore, error) {
	if enabled {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("error creating snapshot directory: %w", err)
		}
	}

	slog.Info("Snapshot store initialized", "dir", dir, "enabled", enabled)

	return &SnapshotStore{dir: dir, enabled: enabled}, nil
}

// Save persists state under the given blob name.
func (s *SnapshotStore) Save(name string, state any) error {
	if !s.enabled {
		slog.Debug("JSON persistence disabled, skipping snapshot save", "name", name)
		return nil
	}

	rawState, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("error marshaling snapshot state: %w", err)
	}

	env := envelope{
		SchemaVersion: SchemaVersion,
		SavedAt:       time.Now().UTC().Format(time.RFC3339),
		State:         rawState,
	}

	jsonData, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling snapshot envelope: %w", err)
	}

	filePath := s.filePath(name)
	tempFilePath := filePath + ".tmp"
	if err := os.WriteFile(tempFilePath, jsonData, 0644); err != nil {
		return fmt.Errorf("error writing temp snapshot file: %w", err)
	}

	if err := os.Rename(tempFilePath, filePath); err != nil {
		os.Remove(tempFilePath)
		return fmt.Errorf("error replacing snapshot file: %w", err)
	}

	slog.Debug("Snapshot saved", "name", name, "path", filePath)

	return nil
}

// Load reads the named blob into state. Returns ErrSnapshotNotFound when no
// snapshot exists and ErrSchemaVersion when the stored version differs.
func (s *SnapshotStore) Load(name string, state any) error {
	if !s.enabled {
		return ErrSnapshotNotFound
	}

	data, err := os.ReadFile(s.filePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrSnapshotNotFound
		}
		return fmt.Errorf("error reading snapshot file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("error parsing snapshot envelope: %w", err)
	}

	if env.SchemaVersion != SchemaVersion {
		slog.Warn("Refusing snapshot with mismatched schema version",
			"name", name,
			"stored_version", env.SchemaVersion,
			"expected_version", SchemaVersion)
		return fmt.Errorf("%w: stored %d, expected %d", ErrSchemaVersion, env.SchemaVersion, SchemaVersion)
	}

	if err := json.Unmarshal(env.State, state); err != nil {
		return fmt.Errorf("error parsing snapshot state: %w", err)
	}

	slog.Info("Snapshot loaded", "name", name, "saved_at", env.SavedAt)

	return nil
}

func (s *SnapshotStore) filePath(name string) string {
	return filepath.Join(s.dir, name+".json")
}
