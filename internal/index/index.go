// Package index builds document-frequency tables over tokenised documents.
// A TermIndex is a derived value: rebuild it whenever the corpus changes.
package index

import (
	"errors"
	"fmt"
)

// TotalKey is the reserved key that carries the corpus size in the flattened
// form of a TermIndex. Space-split tokens of natural text never contain NUL.
const TotalKey = "\x00__total_docs__"

// ErrInvalidIndex is returned when a flattened index cannot be restored.
var ErrInvalidIndex = errors.New("invalid term index")

// TermIndex maps each token to the number of distinct documents containing it.
// It is read-only after Build and safe for concurrent use.
type TermIndex struct {
	df    map[string]int
	total int
}

// Build counts, for every token, the number of documents in which it appears
// at least once. Repeated tokens inside one document count once.
func Build(documents [][]string) *TermIndex {
	idx := &TermIndex{
		df:    make(map[string]int),
		total: len(documents),
	}

	seen := make(map[string]struct{})
	for _, doc := range documents {
		clear(seen)
		for _, tok := range doc {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			idx.df[tok]++
		}
	}
	return idx
}

// DocumentFrequency returns how many documents contain tok (0 if none).
func (x *TermIndex) DocumentFrequency(tok string) int {
	if x == nil {
		return 0
	}
	return x.df[tok]
}

// Total returns the number of documents the index was built from.
func (x *TermIndex) Total() int {
	if x == nil {
		return 0
	}
	return x.total
}

// Len returns the number of distinct tokens.
func (x *TermIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.df)
}

// Flatten returns the index as a single map with the corpus size stored under
// TotalKey.
func (x *TermIndex) Flatten() map[string]int {
	out := make(map[string]int, x.Len()+1)
	if x != nil {
		for tok, n := range x.df {
			out[tok] = n
		}
	}
	out[TotalKey] = x.Total()
	return out
}

// FromMap restores an index produced by Flatten.
func FromMap(m map[string]int) (*TermIndex, error) {
	total, ok := m[TotalKey]
	if !ok {
		return nil, fmt.Errorf("%w: missing total document count", ErrInvalidIndex)
	}
	if total < 0 {
		return nil, fmt.Errorf("%w: negative total %d", ErrInvalidIndex, total)
	}

	idx := &TermIndex{
		df:    make(map[string]int, len(m)-1),
		total: total,
	}
	for tok, n := range m {
		if tok == TotalKey {
			continue
		}
		if n < 0 || n > total {
			return nil, fmt.Errorf("%w: frequency %d for %q outside [0, %d]", ErrInvalidIndex, n, tok, total)
		}
		idx.df[tok] = n
	}
	return idx, nil
}
