package segment

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/index"
)

func sampleEntries() ([]index.TermEntry, []index.DocEntry) {
	entries := []index.TermEntry{
		{Term: "brown", Postings: index.PostingList{{DocID: 0, Frequency: 1, Positions: []int{1}}}},
		{Term: "fox", Postings: index.PostingList{
			{DocID: 0, Frequency: 1, Positions: []int{2}},
			{DocID: 1, Frequency: 2, Positions: []int{0, 4}},
		}},
		{Term: "quick", Postings: index.PostingList{{DocID: 1, Frequency: 1}}},
	}
	docs := []index.DocEntry{{ID: 0, Name: "doc-a", Length: 3}, {ID: 1, Name: "doc-b", Length: 5}}
	return entries, docs
}

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	entries, docs := sampleEntries()

	name, err := NewWriter(dir).Write(entries, docs)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasSuffix(name, FileExt) {
		t.Errorf("segment name %q lacks %s", name, FileExt)
	}

	r, err := OpenReader(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	if r.Terms() != 3 || r.DocCount() != 2 {
		t.Errorf("terms=%d docs=%d", r.Terms(), r.DocCount())
	}
	if !reflect.DeepEqual(r.Docs(), docs) {
		t.Errorf("Docs = %+v, want %+v", r.Docs(), docs)
	}

	fox, err := r.Search("fox")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !reflect.DeepEqual(fox, entries[1].Postings) {
		t.Errorf("fox postings = %+v", fox)
	}

	quick, err := r.Search("quick")
	if err != nil {
		t.Fatal(err)
	}
	if quick[0].Positions != nil {
		t.Errorf("absent positions must stay nil, got %v", quick[0].Positions)
	}

	missing, err := r.Search("zebra")
	if err != nil || missing != nil {
		t.Errorf("Search(zebra) = %v, %v", missing, err)
	}
}

func TestWriteEmptySegment(t *testing.T) {
	if _, err := NewWriter(t.TempDir()).Write(nil, nil); err == nil {
		t.Fatal("expected an error for an empty segment")
	}
}

func TestOpenReaderRejectsCorruptFiles(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage"+FileExt)
	if err := os.WriteFile(garbage, make([]byte, HeaderSize), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(garbage); err == nil {
		t.Error("expected bad magic error")
	}

	entries, docs := sampleEntries()
	name, err := NewWriter(dir).Write(entries, docs)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	r, err := OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	// flip a byte inside the dictionary
	data[r.header.DictOffset+2] ^= 0xff
	r.Close()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(path); err == nil {
		t.Error("expected checksum error")
	}
}
