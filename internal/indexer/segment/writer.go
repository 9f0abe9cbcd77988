// Package segment reads and writes immutable on-disk index segments.
//
// Layout: a 64-byte little-endian header, the JSON posting lists of every
// term back to back, the JSON term dictionary, the JSON document table and a
// 32-byte footer holding a CRC of the dictionary.
package segment

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/index"
)

const (
	MagicBytes    uint32 = 0x50534958
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 32
	FileExt              = ".psix"
)

// Header is written at the start of every segment.
type Header struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
	DocsOffset int64
	DocsSize   int64
}

func (h Header) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.DocsOffset))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.DocsSize))
	return b
}

func decodeHeader(b []byte) Header {
	return Header{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		DictOffset: int64(binary.LittleEndian.Uint64(b[16:24])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[24:32])),
		PostOffset: int64(binary.LittleEndian.Uint64(b[32:40])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[40:48])),
		DocsOffset: int64(binary.LittleEndian.Uint64(b[48:56])),
		DocsSize:   int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}

// DictEntry locates a term's postings relative to Header.PostOffset.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

type Writer struct {
	dataDir string
}

func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// offsetWriter tracks how many bytes went through it.
type offsetWriter struct {
	w   io.Writer
	off int64
}

func (o *offsetWriter) Write(p []byte) (int, error) {
	n, err := o.w.Write(p)
	o.off += int64(n)
	return n, err
}

// Write creates a new segment holding entries and docs and returns its file
// name. The file is written under a .tmp name and renamed once synced.
func (w *Writer) Write(entries []index.TermEntry, docs []index.DocEntry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	name := fmt.Sprintf("seg_%020d%s", time.Now().UnixNano(), FileExt)
	finalPath := filepath.Join(w.dataDir, name)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()
	if err := writeSegment(f, entries, docs); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return name, nil
}

func writeSegment(f *os.File, entries []index.TermEntry, docs []index.DocEntry) error {
	header := Header{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(len(entries)),
		DocCount:  uint32(len(docs)),
	}
	buf := bufio.NewWriter(f)
	out := &offsetWriter{w: buf}
	// placeholder, rewritten once the offsets are known
	if _, err := out.Write(make([]byte, HeaderSize)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	header.PostOffset = out.off
	dict := make([]DictEntry, 0, len(entries))
	for _, entry := range entries {
		data, err := json.Marshal(entry.Postings)
		if err != nil {
			return fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: out.off - header.PostOffset,
			PostLen:    len(data),
			DocFreq:    len(entry.Postings),
		})
		if _, err := out.Write(data); err != nil {
			return fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
	}
	header.PostSize = out.off - header.PostOffset

	dictData, err := json.Marshal(dict)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	header.DictOffset, header.DictSize = out.off, int64(len(dictData))
	if _, err := out.Write(dictData); err != nil {
		return fmt.Errorf("writing dictionary: %w", err)
	}

	docsData, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshaling document table: %w", err)
	}
	header.DocsOffset, header.DocsSize = out.off, int64(len(docsData))
	if _, err := out.Write(docsData); err != nil {
		return fmt.Errorf("writing document table: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], crc32.ChecksumIEEE(docsData))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(header.DictOffset))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(header.DocsOffset))
	if _, err := out.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flushing segment: %w", err)
	}
	if _, err := f.WriteAt(header.encode(), 0); err != nil {
		return fmt.Errorf("updating header: %w", err)
	}
	return nil
}
