package asr

import (
	"sort"
	"strings"
)

// fragment is one piece of recognized text keyed by the recognizer's
// sequence number. A replace-mode fragment supersedes every sequence
// number in [RangeStart, RangeEnd], letting the recognizer rewrite earlier
// segments as more context arrives.
type fragment struct {
	SN         int
	Text       string
	Replace    bool
	RangeStart int
	RangeEnd   int
}

// transcript reassembles fragments into the current best text. Fragments
// may arrive out of sequence order for older segments, so they are kept in
// an sn-keyed map and concatenated in ascending key order rather than
// arrival order.
type transcript struct {
	parts map[int]string
}

func newTranscript() *transcript {
	return &transcript{parts: make(map[int]string)}
}

// apply records one fragment and returns the updated transcript.
// Replace mode stores the new text at the range start and removes every
// key strictly inside (start, end]; an empty-text replacement is a
// legitimate delete correction. Append mode overwrites at the fragment's
// own sequence number, so re-applying the same envelope is idempotent.
func (t *transcript) apply(f fragment) string {
	if f.Replace && f.RangeEnd >= f.RangeStart {
		t.parts[f.RangeStart] = f.Text
		for sn := f.RangeStart + 1; sn <= f.RangeEnd; sn++ {
			delete(t.parts, sn)
		}
	} else {
		t.parts[f.SN] = f.Text
	}
	return t.String()
}

// String concatenates fragment texts in ascending sequence order.
func (t *transcript) String() string {
	if len(t.parts) == 0 {
		return ""
	}
	keys := make([]int, 0, len(t.parts))
	for k := range t.parts {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(t.parts[k])
	}
	return b.String()
}
