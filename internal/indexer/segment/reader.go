package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/index"
)

// Reader serves postings from one segment file. The dictionary and document
// table are held in memory; postings are read on demand.
type Reader struct {
	file   *os.File
	path   string
	header Header
	dict   []DictEntry
	docs   []index.DocEntry
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("segment %s: %w", path, err)
	}
	r.path = path
	return r, nil
}

func load(f *os.File) (*Reader, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DocsOffset+header.DocsSize); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, fmt.Errorf("dictionary checksum mismatch")
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}

	docsBytes := make([]byte, header.DocsSize)
	if _, err := f.ReadAt(docsBytes, header.DocsOffset); err != nil {
		return nil, fmt.Errorf("reading document table: %w", err)
	}
	if crc32.ChecksumIEEE(docsBytes) != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, fmt.Errorf("document table checksum mismatch")
	}
	var docs []index.DocEntry
	if err := json.Unmarshal(docsBytes, &docs); err != nil {
		return nil, fmt.Errorf("parsing document table: %w", err)
	}

	return &Reader{file: f, header: header, dict: dict, docs: docs}, nil
}

// Search returns the postings of term, or nil when the segment lacks it.
func (r *Reader) Search(term string) (index.PostingList, error) {
	i := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if i >= len(r.dict) || r.dict[i].Term != term {
		return nil, nil
	}
	entry := r.dict[i]
	data := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(data, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings of %q: %w", term, err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(data, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings of %q: %w", term, err)
	}
	return postings, nil
}

// Docs is the document table of the segment.
func (r *Reader) Docs() []index.DocEntry {
	return r.docs
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() int {
	return int(r.header.DocCount)
}

func (r *Reader) Path() string {
	return r.path
}

func (r *Reader) Close() error {
	return r.file.Close()
}
