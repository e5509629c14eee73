package sheet

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"examcal/internal/apperr"
	appLog "examcal/internal/log"
	"examcal/internal/model"
)

// Repository owns the server-side exam schedule file. Readers share the
// lock; Replace holds it exclusively while the file is swapped.
type Repository struct {
	mu   sync.RWMutex
	path string
	opts ReadOptions
}

func NewRepository(path string, opts ReadOptions) *Repository {
	return &Repository{path: path, opts: opts}
}

func (r *Repository) Path() string { return r.path }

// Exists reports whether a spreadsheet has been installed.
func (r *Repository) Exists() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, err := os.Stat(r.path)
	return err == nil
}

// Load reads the current spreadsheet into a Table.
func (r *Repository) Load() (*Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.path == "" {
		return nil, apperr.New(apperr.Validation, "考试安排表不存在，请联系管理员")
	}
	t, err := ReadFile(r.path, r.opts)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.Validation, "考试安排表不存在，请联系管理员")
		}
		return nil, err
	}
	return t, nil
}

// Search loads the spreadsheet and runs the extractor over it.
func (r *Repository) Search(ex *Extractor, f Filter) (*Table, []model.ExamRecord, error) {
	t, err := r.Load()
	if err != nil {
		return nil, nil, err
	}
	return t, ex.Search(t, f), nil
}

// Replace validates data as a workbook and installs it as the current
// spreadsheet. The old file stays in place if anything fails.
func (r *Repository) Replace(data []byte) (*Table, error) {
	t, err := ReadWorkbook(data, r.opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(dir, ".examcal-sheet-*.tmp")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return nil, err
	}

	appLog.Info("spreadsheet replaced", "path", r.path, "sheet", t.Sheet, "rows", len(t.Rows), "bytes", len(data))
	return t, nil
}
