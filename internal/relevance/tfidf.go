package relevance

import (
	"math"

	"github.com/onnwee/eventchat/internal/index"
)

// TFIDF returns 1/sqrt(sum((logTf*idf)^2)) over the query tokens, where
// logTf = 1 + ln(tf) for tokens present in doc and idf = ln(total/df).
//
// The inverse norm means weaker term weights produce larger scores. That is
// the historical behaviour and is preserved as-is. A query with no weighted
// term (empty query, no overlap, or tokens unknown to idx) scores 0 instead
// of +Inf.
func TFIDF(doc, query []string, idx *index.TermIndex) float64 {
	if len(query) == 0 {
		return 0
	}

	tf := make(map[string]int, len(doc))
	for _, tok := range doc {
		tf[tok]++
	}

	total := float64(idx.Total())
	var sumSquares float64
	for _, tok := range query {
		n := tf[tok]
		if n == 0 {
			continue
		}
		logTf := 1 + math.Log(float64(n))

		var idf float64
		if df := idx.DocumentFrequency(tok); df > 0 {
			idf = math.Log(total / float64(df))
		}

		w := logTf * idf
		sumSquares += w * w
	}

	if sumSquares == 0 {
		return 0
	}
	return 1 / math.Sqrt(sumSquares)
}
