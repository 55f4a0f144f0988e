package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const reportMode os.FileMode = 0o644

// WriteError is returned when the JSON report cannot be written.
// It never changes the run's exit code.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write report %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// WriteJSON writes r to path as indented JSON with mode 0644. The file is
// written to a temporary sibling first and renamed into place, so readers
// never see a partial document.
func WriteJSON(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("marshal: %w", err)}
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &WriteError{Path: path, Err: err}
	}
	// CreateTemp creates the file with mode 0600.
	if err := tmp.Chmod(reportMode); err != nil {
		tmp.Close()
		return &WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
