// Package index persists successful downloads in an append-only CSV table
// that doubles as the dedup source of truth.
package index

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"yanderss/internal/domain"
)

// TimeLayout is the download_time column format.
const TimeLayout = "2006-01-02 15:04:05"

// Header is the fixed column set of the index file.
var Header = []string{"from", "url", "rss", "img_url", "img_name", "download_time"} //nolint:gochecknoglobals // Fixed file format.

// ErrIndexWrite marks a failure to persist a record. It invalidates the
// dedup guarantee, so callers must not swallow it.
var ErrIndexWrite = errors.New("index write failed")

// Index is the in-memory view of the persisted table for one poll cycle.
type Index struct {
	path    string
	records []domain.DownloadRecord
	seen    map[string]struct{}
}

// Open loads the table at path into a new Index.
func Open(path string) (*Index, error) {
	records, err := Load(path)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.EntryURL] = struct{}{}
	}

	return &Index{path: path, records: records, seen: seen}, nil
}

func (i *Index) Path() string {
	return i.path
}

func (i *Index) Records() []domain.DownloadRecord {
	return slices.Clone(i.records)
}

func (i *Index) Len() int {
	return len(i.records)
}

// Contains reports whether entryURL was loaded or appended through this Index.
func (i *Index) Contains(entryURL string) bool {
	_, ok := i.seen[entryURL]
	return ok
}

// Append persists the record and makes it visible to Contains.
func (i *Index) Append(record domain.DownloadRecord) error {
	if err := Append(i.path, record); err != nil {
		return err
	}

	i.records = append(i.records, record)
	i.seen[record.EntryURL] = struct{}{}

	return nil
}

// Load reads every record from path. A missing file yields no records.
func Load(path string) ([]domain.DownloadRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index header: %w", err)
	}
	if !slices.Equal(trimBOM(header), Header) {
		return nil, fmt.Errorf("unexpected index header %q", header)
	}

	var records []domain.DownloadRecord
	for {
		row, readErr := r.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read index row: %w", readErr)
		}

		record, parseErr := parseRow(row)
		if parseErr != nil {
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("parse index row %d: %w", line, parseErr)
		}

		records = append(records, record)
	}

	return records, nil
}

// Contains is a linear membership test over the entry_url column.
func Contains(records []domain.DownloadRecord, entryURL string) bool {
	return slices.ContainsFunc(records, func(r domain.DownloadRecord) bool {
		return r.EntryURL == entryURL
	})
}

// Append writes record as one row, creating the file with a header first
// when it does not exist yet.
func Append(path string, record domain.DownloadRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create index dir: %w", ErrIndexWrite, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open index: %w", ErrIndexWrite, err)
	}

	if err = appendRow(f, record); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", ErrIndexWrite, err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("%w: close index: %w", ErrIndexWrite, err)
	}

	return nil
}

func appendRow(f *os.File, record domain.DownloadRecord) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat index: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err = w.Write(Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	if err = w.Write(formatRow(record)); err != nil {
		return fmt.Errorf("write row: %w", err)
	}

	w.Flush()
	if err = w.Error(); err != nil {
		return fmt.Errorf("flush row: %w", err)
	}

	if err = f.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}

	return nil
}

func formatRow(r domain.DownloadRecord) []string {
	return []string{
		r.Source,
		r.EntryURL,
		r.FeedURL,
		r.AssetURL,
		r.AssetName,
		r.DownloadedAt.Local().Format(TimeLayout),
	}
}

func parseRow(row []string) (domain.DownloadRecord, error) {
	record := domain.DownloadRecord{
		Source:    row[0],
		EntryURL:  row[1],
		FeedURL:   row[2],
		AssetURL:  row[3],
		AssetName: row[4],
	}

	// Rows written before download_time existed leave it empty.
	if row[5] != "" {
		t, err := time.ParseInLocation(TimeLayout, row[5], time.Local)
		if err != nil {
			return domain.DownloadRecord{}, fmt.Errorf("parse download_time: %w", err)
		}
		record.DownloadedAt = t
	}

	return record, nil
}

func trimBOM(header []string) []string {
	if len(header) == 0 {
		return header
	}

	out := slices.Clone(header)
	out[0] = strings.TrimPrefix(out[0], "\ufeff")

	return out
}
