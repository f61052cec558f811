package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrTruncated means the last record of a log has no line terminator,
// which is what an interrupted append leaves behind.
var ErrTruncated = errors.New("last record is not newline-terminated")

// Log is a line-oriented text log: one record per line, file order is
// record order. Vertex and edge logs only ever grow through Append; the
// frontier snapshot is replaced through Rewrite.
type Log struct {
	name string
	path string
}

// NewLog creates a log handle; the file is not touched until used.
func NewLog(name, path string) *Log {
	return &Log{name: name, path: path}
}

// Name is the human-readable log name used in errors
func (l *Log) Name() string { return l.name }

// Exists reports whether the log file is present
func (l *Log) Exists() (bool, error) {
	_, err := os.Stat(l.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", l.name, err)
}

// ReadAll returns every record in file order.
func (l *Log) ReadAll() ([]string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", l.name, err)
	}
	defer f.Close()

	var records []string
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if errors.Is(err, io.EOF) {
			if line != "" {
				return records, ErrTruncated
			}
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", l.name, err)
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		records = append(records, line)
	}
}

// syncFile is replaced in tests to simulate a failing disk.
var syncFile = func(f *os.File) error { return f.Sync() }

// Append adds records to the end of the log and syncs it to disk. A failed
// append truncates the log back to its previous size, so a retry never
// lands after a partial record.
func (l *Log) Append(records []string) error {
	if err := checkRecords(records); err != nil {
		return fmt.Errorf("refusing to append to %s: %w", l.name, err)
	}
	if len(records) == 0 {
		return nil
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", l.name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat %s: %w", l.name, err)
	}
	size := info.Size()

	if err := writeRecords(f, records); err != nil {
		if terr := f.Truncate(size); terr != nil {
			err = errors.Join(err, fmt.Errorf("roll back to %d bytes: %w", size, terr))
		}
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", l.name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", l.name, err)
	}
	return nil
}

// Rewrite atomically replaces the log's contents with records.
func (l *Log) Rewrite(records []string) error {
	if err := checkRecords(records); err != nil {
		return fmt.Errorf("refusing to rewrite %s: %w", l.name, err)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", l.name, err)
	}
	tmpPath := tmp.Name()

	if err := writeRecords(tmp, records); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", l.name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", l.name, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod %s: %w", l.name, err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", l.name, err)
	}
	if err := syncDir(dir); err != nil {
		return fmt.Errorf("failed to sync directory of %s: %w", l.name, err)
	}
	return nil
}

// syncDir makes a rename inside dir durable
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := syncFile(d); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}

func writeRecords(f *os.File, records []string) error {
	w := bufio.NewWriter(f)
	for _, rec := range records {
		if _, err := w.WriteString(rec); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return syncFile(f)
}

func checkRecords(records []string) error {
	for i, rec := range records {
		if rec == "" {
			return fmt.Errorf("record %d is empty", i)
		}
		if strings.ContainsAny(rec, "\r\n") {
			return fmt.Errorf("record %d contains a line break", i)
		}
	}
	return nil
}
