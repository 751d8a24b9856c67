package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
)

const fileExt = ".json"

// Store persists sessions as one JSON file per session under a directory.
// There is no cross-process locking: two processes saving the same id
// race and the last rename wins.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for listing warnings.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used to stamp UpdatedAt.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns a Store rooted at dir. The directory is created on first save.
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{
		dir:    dir,
		logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the session directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path for a session id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+fileExt)
}

// Save writes the full session to <dir>/<id>.json and returns the path.
// UpdatedAt is stamped before encoding. The write goes to a temp file that
// is synced and renamed over the target, so a crash never leaves a
// truncated session behind.
func (s *Store) Save(sess *Session) (string, error) {
	if err := validateID(sess.ID); err != nil {
		return "", err
	}
	sess.UpdatedAt = s.now()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding session %s: %w", sess.ID, err)
	}

	path := s.Path(sess.ID)
	if err := atomicWrite(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return "", fmt.Errorf("saving session to %s: %w", path, err)
	}
	return path, nil
}

// Load reads a session by id. Comments and trailing commas in hand-edited
// files are tolerated.
func (s *Store) Load(id string) (*Session, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	path := s.Path(id)
	sess, err := readFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return sess, nil
}

// ListAll parses every session file in the directory and returns them
// sorted by UpdatedAt, newest first. Files that cannot be read or parsed
// are logged and skipped. A missing directory yields an empty list.
func (s *Store) ListAll() ([]*Session, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session directory %s: %w", s.dir, err)
	}

	var sessions []*Session
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		sess, err := readFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable session file", "path", path, "error", err)
			continue
		}
		sessions = append(sessions, sess)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func readFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", path, err)
	}

	var sess Session
	if err := json.Unmarshal(jsonc.ToJSON(data), &sess); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCorrupt, path, err)
	}
	if sess.ID == "" {
		return nil, fmt.Errorf("%w %s: missing id", ErrCorrupt, path)
	}
	if !sess.Phase.Valid() {
		return nil, fmt.Errorf("%w %s: unknown phase %q", ErrCorrupt, path, sess.Phase)
	}
	if sess.Messages == nil {
		sess.Messages = []Message{}
	}
	return &sess, nil
}

func validateID(id string) error {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func atomicWrite(path string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := writeFunc(tmpFile); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write content: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("sync file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename to final: %w", err)
	}

	success = true
	return nil
}
