package termindex

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/hyperjump/hive/internal/models"
)

func entry(term, local string) models.TermEntry {
	return models.TermEntry{Term: term, Concept: models.NewConceptID("http://example.org/c#", local)}
}

func fruit(t *testing.T) *Index {
	t.Helper()
	idx, err := Build([]models.TermEntry{
		entry("banana", "C3"),
		entry("apple", "C2"),
		entry("Apricot", "C5"),
		entry("aardvark", "C1"),
		entry("app", "C4"),
		entry("cherry", "C6"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestBuild_SortsOrdinally(t *testing.T) {
	idx := fruit(t)
	want := []string{"Apricot", "aardvark", "app", "apple", "banana", "cherry"}
	if got := idx.Terms(); !reflect.DeepEqual(got, want) {
		t.Errorf("Terms() = %v, want %v", got, want)
	}
	if idx.Len() != 6 {
		t.Errorf("Len() = %d, want 6", idx.Len())
	}
}

func TestBuild_DoesNotAliasInput(t *testing.T) {
	in := []models.TermEntry{entry("b", "1"), entry("a", "2")}
	idx, err := Build(in)
	if err != nil {
		t.Fatal(err)
	}
	in[0].Term = "zzz"
	if got := idx.Terms(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Terms() = %v after mutating input", got)
	}
}

func TestBuild_DuplicateTerm(t *testing.T) {
	_, err := Build([]models.TermEntry{entry("apple", "C1"), entry("pear", "C2"), entry("apple", "C3")})
	if !errors.Is(err, ErrDuplicateTerm) {
		t.Fatalf("expected ErrDuplicateTerm, got %v", err)
	}
	var dup *DuplicateTermError
	if !errors.As(err, &dup) || dup.Term != "apple" {
		t.Errorf("unexpected error detail: %v", err)
	}
}

func TestBuild_CaseVariantsAreDistinct(t *testing.T) {
	idx, err := Build([]models.TermEntry{entry("Apple", "C1"), entry("apple", "C2")})
	if err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 2 {
		t.Errorf("Len() = %d, want 2", idx.Len())
	}
}

func TestBuild_Empty(t *testing.T) {
	idx, err := Build(nil)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 0 || idx.SubIndex("a").Len() != 0 {
		t.Errorf("empty index has entries: %v", idx.Terms())
	}
}

func TestSubIndex(t *testing.T) {
	idx := fruit(t)
	tests := []struct {
		prefix string
		want   []string
	}{
		{"a", []string{"aardvark", "app", "apple"}},
		{"app", []string{"app", "apple"}},
		{"apple", []string{"apple"}},
		{"apples", []string{}},
		{"A", []string{"Apricot"}},
		{"b", []string{"banana"}},
		{"c", []string{"cherry"}},
		{"d", []string{}},
		{"0", []string{}},
		{"~", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			if got := idx.SubIndex(tt.prefix).Terms(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SubIndex(%q) = %v, want %v", tt.prefix, got, tt.want)
			}
		})
	}
}

func TestSubIndex_EmptyPrefixReturnsWhole(t *testing.T) {
	idx := fruit(t)
	if idx.SubIndex("") != idx {
		t.Error("SubIndex(\"\") should return the receiver")
	}
	if idx.Full() != idx {
		t.Error("Full() should return the receiver")
	}
}

func TestSubIndex_OfSubIndex(t *testing.T) {
	idx := fruit(t)
	sub := idx.SubIndex("a").SubIndex("ap")
	if got := sub.Terms(); !reflect.DeepEqual(got, []string{"app", "apple"}) {
		t.Errorf("Terms() = %v", got)
	}
	c, ok := sub.Get("apple")
	if !ok || c.LocalName != "C2" {
		t.Errorf("Get(apple) = %v, %v", c, ok)
	}
	if _, ok := sub.Get("banana"); ok {
		t.Error("sub-index must not see entries outside its range")
	}
}

func TestSubIndex_NoNormalization(t *testing.T) {
	idx, err := Build([]models.TermEntry{entry(" apple", "1"), entry("éclair", "2"), entry("eclair", "3")})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		prefix string
		want   []string
	}{
		{"e", []string{"eclair"}},
		{"é", []string{"éclair"}},
		{" ", []string{" apple"}},
		{"a", []string{}},
	}
	for _, tt := range tests {
		if got := idx.SubIndex(tt.prefix).Terms(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SubIndex(%q) = %v, want %v", tt.prefix, got, tt.want)
		}
	}
}

func TestGet(t *testing.T) {
	idx := fruit(t)
	c, ok := idx.Get("banana")
	if !ok || c != models.NewConceptID("http://example.org/c#", "C3") {
		t.Errorf("Get(banana) = %v, %v", c, ok)
	}
	for _, term := range []string{"ban", "zebra", ""} {
		if _, ok := idx.Get(term); ok {
			t.Errorf("Get(%q) should miss", term)
		}
	}
}

func TestNilIndex(t *testing.T) {
	var idx *Index
	if idx.Len() != 0 || idx.SubIndex("a").Len() != 0 || idx.Full().Len() != 0 {
		t.Error("nil index should be empty")
	}
	if len(idx.Entries()) != 0 {
		t.Errorf("Entries() = %v", idx.Entries())
	}
	if _, ok := idx.Get("a"); ok {
		t.Error("Get on nil index should miss")
	}
	for range idx.All() {
		t.Fatal("nil index should not yield")
	}
}

func TestEntries_ReturnsCopy(t *testing.T) {
	idx := fruit(t)
	es := idx.Entries()
	es[0].Term = "mutated"
	if got := idx.Terms()[0]; got != "Apricot" {
		t.Errorf("first term = %q after mutating Entries()", got)
	}
}

func TestAll_StopsEarly(t *testing.T) {
	idx := fruit(t)
	var seen []string
	for term := range idx.All() {
		seen = append(seen, term)
		if len(seen) == 2 {
			break
		}
	}
	if !reflect.DeepEqual(seen, []string{"Apricot", "aardvark"}) {
		t.Errorf("seen = %v", seen)
	}
}

// Soundness and completeness of SubIndex against a linear scan over random data.
func TestSubIndex_MatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []byte("abAB")
	seen := make(map[string]struct{})
	var entries []models.TermEntry
	for len(entries) < 500 {
		n := 1 + rng.Intn(5)
		b := make([]byte, n)
		for i := range b {
			b[i] = alphabet[rng.Intn(len(alphabet))]
		}
		term := string(b)
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		entries = append(entries, entry(term, fmt.Sprint(len(entries))))
	}
	idx, err := Build(entries)
	if err != nil {
		t.Fatal(err)
	}

	terms := idx.Terms()
	if !sort.StringsAreSorted(terms) {
		t.Fatal("terms are not sorted")
	}
	for i := 1; i < len(terms); i++ {
		if terms[i-1] >= terms[i] {
			t.Fatalf("terms must be strictly ascending: %q >= %q", terms[i-1], terms[i])
		}
	}

	for _, prefix := range []string{"a", "b", "A", "ab", "aB", "BA", "bbb", "abab", "c", "aaaaaa"} {
		want := []string{}
		for _, term := range terms {
			if strings.HasPrefix(term, prefix) {
				want = append(want, term)
			}
		}
		if got := idx.SubIndex(prefix).Terms(); !reflect.DeepEqual(got, want) {
			t.Errorf("prefix %q: got %v, want %v", prefix, got, want)
		}
	}
}

func BenchmarkSubIndex(b *testing.B) {
	entries := make([]models.TermEntry, 0, 50000)
	for i := 0; i < 50000; i++ {
		entries = append(entries, entry(fmt.Sprintf("term%06d", i), fmt.Sprint(i)))
	}
	idx, err := Build(entries)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = idx.SubIndex("term0123")
	}
}
