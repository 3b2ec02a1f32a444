// Package ranking orders candidate events for the recommended feed and for
// free-text search.
//
// Both rankers are pure: they never mutate their input, perform no I/O and
// are safe to call concurrently.
//
//	// Recommended for you: events the user has not joined, ranked by overlap
//	// with the members and tags of events they have joined.
//	feed := ranking.Recommend(events, userID, coord)
//
//	// Search: only events with a positive text score are returned.
//	hits := ranking.Search(events, "beach cleanup", coord)
//
// The coordinate is optional; pass nil to rank without proximity.
//
// Calibration:
//
// Weights come from DefaultWeights, optionally overridden by a JSON file
// loaded at startup with LoadCalibration (see configs/ranking.calibration.json).
// Zero values in the file keep the default.
//
// Relevance strategy:
//
// Text and overlap scores use relevance.MatchRatioScorer unless WithScorer
// supplies another strategy, typically relevance.TFIDFScorer backed by a
// corpus snapshot.
package ranking
