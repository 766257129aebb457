package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()

	alpha := filepath.Join(dir, "alphaIndex")
	if err := os.WriteFile(alpha, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := DiskUsageBytes(alpha)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("single file: got %d bytes, want 5", got)
	}

	index := filepath.Join(dir, "index")
	if err := os.MkdirAll(filepath.Join(index, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(index, "a"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(index, "nested", "b"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = DiskUsageBytes(index)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Errorf("dir: got %d bytes, want 3", got)
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"file and dir", []string{alpha, index}, 8},
		{"missing skipped", []string{alpha, filepath.Join(dir, "nonexistent"), index}, 8},
		{"empty skipped", []string{"", alpha}, 5},
		{"duplicates counted once", []string{alpha, alpha + string(filepath.Separator) + ".", index, index}, 8},
		{"file inside listed dir counted once", []string{filepath.Join(index, "a"), index}, 3},
		{"nested dir counted once", []string{index, filepath.Join(index, "nested")}, 3},
		{"parent covers everything", []string{alpha, index, dir}, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d bytes, want %d", got, tt.want)
			}
		})
	}
}

func TestWithin(t *testing.T) {
	tests := []struct {
		p, dir string
		want   bool
	}{
		{"/data/index/a", "/data/index", true},
		{"/data/index/nested/b", "/data/index", true},
		{"/data/index", "/data/index", false},
		{"/data/index2", "/data/index", false},
		{"/data", "/data/index", false},
		{"/data/index", "/", true},
	}
	for _, tt := range tests {
		if got := within(tt.p, tt.dir); got != tt.want {
			t.Errorf("within(%q, %q) = %v, want %v", tt.p, tt.dir, got, tt.want)
		}
	}
}
