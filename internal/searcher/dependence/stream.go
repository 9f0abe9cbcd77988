package dependence

import (
	"errors"
	"fmt"
	"math"
	"slices"

	apperrors "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/errors"
)

// EOL is the document ID reported by a stream with no further entries.
const EOL = math.MaxInt

// PostingStream walks one term's postings in ascending document order. A
// freshly opened stream sits before its first entry; the first call to Next
// loads it. Streams never move backwards.
type PostingStream interface {
	// DocID is the current document, or EOL once the stream is exhausted.
	DocID() int
	// Next moves to the following document and returns its ID, or EOL.
	Next() (int, error)
	// Positions are the 0-based token offsets of the term in the current
	// document, ascending. Fails with ErrMissingPositions when the index was
	// built without positions.
	Positions() ([]int, error)
	// DocLength is the token length of the current document.
	DocLength() int
	Close() error
}

// Entry is one posting of a SliceStream. A nil Positions slice means the
// index did not record positions for it.
type Entry struct {
	DocID     int
	Positions []int
	DocLength int
}

// SliceStream is a PostingStream over postings already held in memory.
// Entries must be sorted by DocID.
type SliceStream struct {
	entries []Entry
	pos     int
	closed  bool
}

func NewSliceStream(entries []Entry) *SliceStream {
	return &SliceStream{entries: entries, pos: -1}
}

func (s *SliceStream) DocID() int {
	switch {
	case s.pos < 0:
		return -1
	case s.pos >= len(s.entries):
		return EOL
	default:
		return s.entries[s.pos].DocID
	}
}

func (s *SliceStream) Next() (int, error) {
	if s.closed {
		return EOL, errors.New("posting stream is closed")
	}
	if s.pos < len(s.entries) {
		s.pos++
	}
	return s.DocID(), nil
}

func (s *SliceStream) Positions() ([]int, error) {
	if s.pos < 0 || s.pos >= len(s.entries) {
		return nil, fmt.Errorf("posting stream not positioned on a document")
	}
	p := s.entries[s.pos].Positions
	if p == nil {
		return nil, fmt.Errorf("document %d: %w", s.entries[s.pos].DocID, apperrors.ErrMissingPositions)
	}
	return p, nil
}

func (s *SliceStream) DocLength() int {
	if s.pos < 0 || s.pos >= len(s.entries) {
		return 0
	}
	return s.entries[s.pos].DocLength
}

func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *SliceStream) Closed() bool {
	return s.closed
}

// UnionStream presents several streams as one: it visits every document any
// child holds, and its positions are the merged positions of the children on
// that document. Used for synonym groups that share one phrase slot.
type UnionStream struct {
	children []PostingStream
	primed   bool
	doc      int
}

func NewUnionStream(children ...PostingStream) *UnionStream {
	return &UnionStream{children: children, doc: -1}
}

func (u *UnionStream) DocID() int {
	return u.doc
}

func (u *UnionStream) Next() (int, error) {
	if u.doc == EOL {
		return EOL, nil
	}
	for _, c := range u.children {
		if !u.primed || c.DocID() == u.doc {
			if _, err := c.Next(); err != nil {
				return u.doc, err
			}
		}
	}
	u.primed = true
	u.doc = EOL
	for _, c := range u.children {
		if id := c.DocID(); id < u.doc {
			u.doc = id
		}
	}
	return u.doc, nil
}

func (u *UnionStream) Positions() ([]int, error) {
	var merged []int
	for _, c := range u.children {
		if c.DocID() != u.doc {
			continue
		}
		p, err := c.Positions()
		if err != nil {
			return nil, err
		}
		merged = append(merged, p...)
	}
	slices.Sort(merged)
	return slices.Compact(merged), nil
}

func (u *UnionStream) DocLength() int {
	for _, c := range u.children {
		if c.DocID() == u.doc {
			return c.DocLength()
		}
	}
	return 0
}

func (u *UnionStream) Close() error {
	var errs []error
	for _, c := range u.children {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
