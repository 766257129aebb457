package storage

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/hyperjump/hive/internal/models"
)

// ReadTermFile decodes a zstd-compressed term file. Each line is "term<TAB>conceptURI";
// blank lines are skipped. Entries are returned in file order.
func ReadTermFile(ctx context.Context, path string) ([]models.TermEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open term file: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open term file decoder: %w", err)
	}
	defer dec.Close()

	var entries []models.TermEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		text := sc.Text()
		if text == "" {
			continue
		}
		term, uri, ok := strings.Cut(text, "\t")
		if !ok || term == "" || uri == "" {
			return nil, fmt.Errorf("malformed term file %s at line %d", path, line)
		}
		entries = append(entries, models.TermEntry{Term: term, Concept: models.ParseConceptID(uri)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read term file %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// WriteTermFile writes entries in the format ReadTermFile decodes.
// Terms must not contain tabs or newlines.
func WriteTermFile(path string, entries []models.TermEntry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create term file directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create term file: %w", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to create term file encoder: %w", err)
	}
	w := bufio.NewWriter(enc)
	for _, e := range entries {
		if strings.ContainsAny(e.Term, "\t\n") {
			_ = enc.Close()
			_ = f.Close()
			return fmt.Errorf("term contains tab or newline: %q", e.Term)
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", e.Term, e.Concept.String()); err != nil {
			_ = enc.Close()
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
