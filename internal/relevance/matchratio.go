package relevance

// MatchRatio returns the fraction of query tokens present anywhere in doc.
// It is 0 for an empty query and always within [0, 1]. Duplicate query
// tokens are counted each time they occur.
func MatchRatio(doc, query []string) float64 {
	if len(query) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(doc))
	for _, tok := range doc {
		set[tok] = struct{}{}
	}

	found := 0
	for _, tok := range query {
		if _, ok := set[tok]; ok {
			found++
		}
	}
	return float64(found) / float64(len(query))
}
