package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/raphaelgruber/nutristat/internal/models"
)

const (
	resultExt = ".json"
	// Holds the highest job id handed out, as decimal text.
	lastIDFile = "last_job_id"
)

// FileStore keeps one JSON file per job, named "<id>.json", in a directory.
// The reservation mark lives next to them in "last_job_id".
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created on first Put.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory results are written to.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(id models.JobID) string {
	return filepath.Join(s.dir, strconv.FormatInt(int64(id), 10)+resultExt)
}

// Put writes the payload atomically, so readers never observe a partially
// written result.
func (s *FileStore) Put(_ context.Context, id models.JobID, payload []byte) error {
	if err := s.writeAtomic(s.path(id), payload); err != nil {
		return fmt.Errorf("write result %d: %w", id, err)
	}
	return nil
}

// ReserveID overwrites the reservation mark with id.
func (s *FileStore) ReserveID(_ context.Context, id models.JobID) error {
	mark := []byte(strconv.FormatInt(int64(id), 10))
	if err := s.writeAtomic(filepath.Join(s.dir, lastIDFile), mark); err != nil {
		return fmt.Errorf("reserve job id %d: %w", id, err)
	}
	return nil
}

// writeAtomic writes data to a temp file in the store directory and renames
// it over name. The temp file never outlives a failed write.
func (s *FileStore) writeAtomic(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	tmp := filepath.Join(s.dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, name); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Get reads the result file for id.
func (s *FileStore) Get(_ context.Context, id models.JobID) ([]byte, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read result %d: %w", id, err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}

// Exists checks for a non-empty result file without reading it.
func (s *FileStore) Exists(_ context.Context, id models.JobID) (bool, error) {
	info, err := os.Stat(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat result %d: %w", id, err)
	}
	return info.Size() > 0, nil
}

// MaxID scans the directory for the highest numbered result file and
// compares it with the reservation mark.
func (s *FileStore) MaxID(_ context.Context) (models.JobID, error) {
	ids, err := s.ids()
	if err != nil {
		return 0, err
	}
	maxID, err := s.lastReserved()
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		maxID = max(maxID, id)
	}
	return maxID, nil
}

func (s *FileStore) lastReserved() (models.JobID, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, lastIDFile))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read reservation mark: %w", err)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse reservation mark %q: %w", data, err)
	}
	return models.JobID(n), nil
}

// Wipe deletes result files, the reservation mark and stale temp files.
// Other files in the directory are left alone.
func (s *FileStore) Wipe(_ context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list results dir: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if _, ok := parseResultName(name); !ok && name != lastIDFile && !strings.HasSuffix(name, ".tmp") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close(context.Context) error {
	return nil
}

func (s *FileStore) ids() ([]models.JobID, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list results dir: %w", err)
	}

	ids := make([]models.JobID, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := parseResultName(e.Name()); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func parseResultName(name string) (models.JobID, bool) {
	stem, ok := strings.CutSuffix(name, resultExt)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(stem, 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return models.JobID(n), true
}
