package index

import "sort"

// Posting is one document's entry in a term's posting list. Positions is nil
// when the index was built without positions.
type Posting struct {
	DocID     int   `json:"d"`
	Frequency int   `json:"f"`
	Positions []int `json:"p,omitempty"`
}

// PostingList is sorted by DocID.
type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

// DocEntry describes an indexed document. ID is the dense internal ID the
// engine assigned, Length its token count.
type DocEntry struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Length int    `json:"len"`
}

// MergePostings concatenates lists from several sources into one list sorted
// by DocID. When a document appears twice the posting with the higher
// frequency wins.
func MergePostings(lists ...PostingList) PostingList {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	if total == 0 {
		return nil
	}
	merged := make(PostingList, 0, total)
	for _, l := range lists {
		merged = append(merged, l...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].DocID < merged[j].DocID
	})
	out := merged[:1]
	for _, p := range merged[1:] {
		last := &out[len(out)-1]
		if p.DocID == last.DocID {
			if p.Frequency > last.Frequency {
				*last = p
			}
			continue
		}
		out = append(out, p)
	}
	return out
}
