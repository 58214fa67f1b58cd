package review

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	filePrefix = "reviews_"
	fileSuffix = ".csv"

	DefaultMasterFileName = filePrefix + reservedReviewer + fileSuffix
)

// Store owns the reviewer files and the master file inside one data folder.
type Store struct {
	dataFolder     string
	masterFileName string
}

// NewStore creates the data folder when it does not exist yet.
func NewStore(dataFolder, masterFileName string) (*Store, error) {
	if masterFileName == "" {
		masterFileName = DefaultMasterFileName
	}
	if err := os.MkdirAll(dataFolder, 0o755); err != nil {
		return nil, fmt.Errorf("create data folder %s: %w", dataFolder, err)
	}
	return &Store{
		dataFolder:     dataFolder,
		masterFileName: masterFileName,
	}, nil
}

func (s *Store) DataFolder() string {
	return s.dataFolder
}

func (s *Store) ReviewerPath(reviewer string) string {
	return filepath.Join(s.dataFolder, filePrefix+reviewer+fileSuffix)
}

func (s *Store) MasterPath() string {
	return filepath.Join(s.dataFolder, s.masterFileName)
}

// NormalizeReviewerID applies the package rules and also rejects IDs whose
// reviewer file would be the configured master file.
func (s *Store) NormalizeReviewerID(raw string) (string, error) {
	id, err := NormalizeReviewerID(raw)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(filePrefix+id+fileSuffix, s.masterFileName) {
		return "", fmt.Errorf("%w: %q is reserved for the master file", ErrInvalidReviewer, id)
	}
	return id, nil
}

func (s *Store) ReviewerFileExists(reviewer string) bool {
	info, err := os.Stat(s.ReviewerPath(reviewer))
	return err == nil && info.Mode().IsRegular()
}

// LoadReviewer reads the reviewer file. A missing file, an empty file and a
// file without an ImageName column all yield an empty table. A file that
// exists but cannot be parsed yields an error; callers fall back to NewTable.
func (s *Store) LoadReviewer(reviewer string) (*Table, error) {
	t, err := readTableFile(s.ReviewerPath(reviewer))
	if errors.Is(err, os.ErrNotExist) {
		return NewTable(), nil
	}
	if err != nil {
		return nil, err
	}
	if t.Empty() || !t.HasColumn(ColumnImageName) {
		return NewTable(), nil
	}
	return t, nil
}

// SaveReviewer replaces the reviewer file with t.
func (s *Store) SaveReviewer(reviewer string, t *Table) error {
	return writeTableFile(s.ReviewerPath(reviewer), t)
}

// Append adds rec as one row to both the reviewer file and the master file.
func (s *Store) Append(rec Record) error {
	if _, err := s.NormalizeReviewerID(rec.Reviewer); err != nil {
		return err
	}
	if err := appendRecord(s.ReviewerPath(rec.Reviewer), rec); err != nil {
		return fmt.Errorf("append to reviewer file: %w", err)
	}
	if err := appendRecord(s.MasterPath(), rec); err != nil {
		return fmt.Errorf("append to master file: %w", err)
	}
	return nil
}

// AppendNew appends rec like Append unless the reviewer file already holds a
// row for rec.ImageName. The check and the reviewer file append happen under
// the reviewer file lock.
func (s *Store) AppendNew(rec Record) error {
	if _, err := s.NormalizeReviewerID(rec.Reviewer); err != nil {
		return err
	}
	path := s.ReviewerPath(rec.Reviewer)
	err := withFileLock(path, func() error {
		existing, err := s.LoadReviewer(rec.Reviewer)
		if err == nil && existing.IndexOf(rec.ImageName) >= 0 {
			return fmt.Errorf("%w: %s", ErrAlreadyReviewed, rec.ImageName)
		}
		if err := writeRecord(path, rec); err != nil {
			return fmt.Errorf("append to reviewer file: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := appendRecord(s.MasterPath(), rec); err != nil {
		return fmt.Errorf("append to master file: %w", err)
	}
	return nil
}

// ReviewerFiles lists all reviewer files except the master, sorted by name.
func (s *Store) ReviewerFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dataFolder, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, err
	}
	files := matches[:0]
	for _, path := range matches {
		if filepath.Base(path) == s.masterFileName {
			continue
		}
		if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// Reviewers returns the reviewer IDs that own a file in the data folder.
func (s *Store) Reviewers() ([]string, error) {
	files, err := s.ReviewerFiles()
	if err != nil {
		return nil, err
	}
	reviewers := make([]string, 0, len(files))
	for _, path := range files {
		name := filepath.Base(path)
		reviewers = append(reviewers, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
	}
	return reviewers, nil
}

// RebuildMaster regenerates the master file as the concatenation of every
// reviewer file. Unreadable reviewer files are skipped with a warning. It
// returns the number of rows written.
func (s *Store) RebuildMaster() (int, error) {
	files, err := s.ReviewerFiles()
	if err != nil {
		return 0, fmt.Errorf("list reviewer files: %w", err)
	}

	tables := make([]*Table, 0, len(files))
	for _, path := range files {
		t, err := readTableFile(path)
		if err != nil {
			slog.Warn("skipping unreadable reviewer file during master rebuild", "path", path, "error", err)
			continue
		}
		tables = append(tables, t)
	}

	merged := Concat(tables...)
	if err := writeTableFile(s.MasterPath(), merged); err != nil {
		return 0, fmt.Errorf("write master file: %w", err)
	}
	slog.Info("master file rebuilt", "path", s.MasterPath(), "files", len(tables), "rows", merged.Len())
	return merged.Len(), nil
}

// ReadReviewer parses the reviewer file as is, without the fallbacks of LoadReviewer.
func (s *Store) ReadReviewer(reviewer string) (*Table, error) {
	return readTableFile(s.ReviewerPath(reviewer))
}

// ExportReviewer copies the reviewer file to w as a normalized CSV document.
func (s *Store) ExportReviewer(reviewer string, w io.Writer) error {
	t, err := s.ReadReviewer(reviewer)
	if err != nil {
		return err
	}
	return t.Write(w)
}

func readTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	t, err := ReadTable(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return t, nil
}

// writeTableFile replaces path atomically via a temporary file in the same folder.
func writeTableFile(path string, t *Table) error {
	return withFileLock(path, func() error {
		tmp, err := os.CreateTemp(filepath.Dir(path), ".reviews-*.tmp")
		if err != nil {
			return err
		}
		tmpName := tmp.Name()
		defer func() {
			_ = os.Remove(tmpName)
		}()

		if err := t.Write(tmp); err != nil {
			_ = tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		return os.Rename(tmpName, path)
	})
}

// appendRecord writes rec as one line. The header is written first when the
// file is missing or empty; otherwise values follow the file's own header.
func appendRecord(path string, rec Record) error {
	return withFileLock(path, func() error {
		return writeRecord(path, rec)
	})
}

// writeRecord is appendRecord without the lock; the caller holds it.
func writeRecord(path string, rec Record) error {
	header, needsNewline, err := inspectForAppend(path)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if needsNewline {
		if _, err := f.WriteString("\n"); err != nil {
			_ = f.Close()
			return err
		}
	}
	writer := csv.NewWriter(f)
	if header == nil {
		header = Columns
		if err := writer.Write(header); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := writer.Write(rec.valuesFor(header)); err != nil {
		_ = f.Close()
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// inspectForAppend returns the existing header (nil for a missing or empty
// file) and whether the file lacks a trailing newline.
func inspectForAppend(path string) ([]string, bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, false, err
	}
	if info.Size() == 0 {
		return nil, false, nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return nil, false, err
	}
	needsNewline := last[0] != '\n'

	reader := csv.NewReader(bufio.NewReader(f))
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, needsNewline, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read header of %s: %w", path, err)
	}
	header[0] = strings.TrimPrefix(header[0], utf8BOM)

	// Without the canonical columns the header is useless for placing values,
	// so rows go out positionally in canonical order.
	for _, column := range Columns {
		if !containsString(header, column) {
			return Columns, needsNewline, nil
		}
	}
	return header, needsNewline, nil
}
