// Package relevance scores how well a document's tokens answer a query.
//
// Two strategies exist. MatchRatio is the default and is what both rankers
// use unless configured otherwise. TFIDF reproduces the inverse-norm
// weighting of an earlier ranking revision and is kept selectable.
package relevance

import (
	"fmt"
	"strings"

	"github.com/onnwee/eventchat/internal/index"
)

// Field identifies the event attribute a token list came from, so a
// corpus-aware scorer can pick the matching document-frequency table.
type Field int

const (
	FieldTitle Field = iota
	FieldDescription
	FieldLocation
	FieldTags
	FieldMembers
)

// String returns the field name used in config, logs and cache keys.
func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldDescription:
		return "description"
	case FieldLocation:
		return "location"
	case FieldTags:
		return "tags"
	case FieldMembers:
		return "members"
	default:
		return "unknown"
	}
}

// Fields lists every field in a stable order.
var Fields = []Field{FieldTitle, FieldDescription, FieldLocation, FieldTags, FieldMembers}

// Strategy names accepted by ParseStrategy.
const (
	StrategyMatchRatio = "match_ratio"
	StrategyTFIDF      = "tfidf"
)

// ParseStrategy normalises a configured strategy name. Empty means match_ratio.
func ParseStrategy(name string) (string, error) {
	switch s := strings.ToLower(strings.TrimSpace(name)); s {
	case "", StrategyMatchRatio:
		return StrategyMatchRatio, nil
	case StrategyTFIDF:
		return StrategyTFIDF, nil
	default:
		return "", fmt.Errorf("unknown relevance strategy %q", name)
	}
}

// Scorer computes a relevance score for query tokens against document tokens.
// Implementations must be safe for concurrent use.
type Scorer interface {
	Score(field Field, doc, query []string) float64
}

// IndexSet supplies a document-frequency table per field.
type IndexSet interface {
	Index(field Field) *index.TermIndex
}

// MatchRatioScorer scores with MatchRatio and ignores the field.
type MatchRatioScorer struct{}

// Score implements Scorer.
func (MatchRatioScorer) Score(_ Field, doc, query []string) float64 {
	return MatchRatio(doc, query)
}

// TFIDFScorer scores with TFIDF using the field's table from Indexes.
type TFIDFScorer struct {
	Indexes IndexSet
}

// Score implements Scorer.
func (s TFIDFScorer) Score(field Field, doc, query []string) float64 {
	var idx *index.TermIndex
	if s.Indexes != nil {
		idx = s.Indexes.Index(field)
	}
	return TFIDF(doc, query, idx)
}
