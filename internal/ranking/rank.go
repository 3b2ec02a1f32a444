package ranking

import (
	"sort"

	"github.com/onnwee/eventchat/internal/event"
	"github.com/onnwee/eventchat/internal/geo"
	"github.com/onnwee/eventchat/internal/relevance"
	"github.com/onnwee/eventchat/internal/text"
)

// Scored pairs an event with its ranking score. Scores are only meaningful
// relative to other scores from the same call.
type Scored struct {
	Event event.Event
	Score float64
}

// Recommend returns the events userID has not joined, best first.
func Recommend(events []event.Event, userID string, coord *geo.Coordinate, opts ...Option) []event.Event {
	return unwrap(RecommendScored(events, userID, coord, opts...))
}

// RecommendScored is Recommend with scores attached.
//
// Events the user has joined supply the prior contacts (every member of every
// joined event, duplicates kept) and prior tags. Each remaining event scores
//
//	members*W.members + tags*W.tags [+ proximity]
//
// where members is the relevance of the event's member list against the prior
// contacts and tags the relevance of its tags against the prior tags.
func RecommendScored(events []event.Event, userID string, coord *geo.Coordinate, opts ...Option) []Scored {
	o := buildOptions(opts)
	w := o.weights.Recommend

	var (
		priorContacts []string
		priorTags     []string
		candidates    []event.Event
	)
	for _, e := range events {
		if e.IsMember(userID) {
			priorContacts = append(priorContacts, e.Members...)
			priorTags = append(priorTags, e.Tags...)
			continue
		}
		candidates = append(candidates, e)
	}

	scored := make([]Scored, 0, len(candidates))
	for _, e := range candidates {
		membersScore := o.scorer.Score(relevance.FieldMembers, priorContacts, e.Members)
		tagsScore := o.scorer.Score(relevance.FieldTags, priorTags, e.Tags)

		score := membersScore*w.Members + tagsScore*w.Tags
		score += o.proximity(e.Location.Coordinate, coord)

		scored = append(scored, Scored{Event: e, Score: score})
	}

	sortDescending(scored)
	return scored
}

// Search returns the events matching query, best first.
func Search(events []event.Event, query string, coord *geo.Coordinate, opts ...Option) []event.Event {
	return unwrap(SearchScored(events, query, coord, opts...))
}

// SearchScored is Search with scores attached.
//
// The query is tokenised with stopwords removed. Title, description and
// location description are tokenised the same way; tags are compared as-is.
// An event is kept only when its weighted text score is positive, so
// proximity alone never qualifies a result. Kept events score
//
//	title*0.30 + description*0.25 + location*0.25 + tags*0.20 [+ proximity]
//
// with the weights taken from the options. An empty query returns nothing.
func SearchScored(events []event.Event, query string, coord *geo.Coordinate, opts ...Option) []Scored {
	o := buildOptions(opts)
	w := o.weights.Search

	queryTokens := text.Terms(query)
	if len(queryTokens) == 0 {
		return []Scored{}
	}

	scored := make([]Scored, 0, len(events))
	for _, e := range events {
		titleScore := o.scorer.Score(relevance.FieldTitle, text.Terms(e.Title), queryTokens)
		descScore := o.scorer.Score(relevance.FieldDescription, text.Terms(e.Description), queryTokens)
		locnScore := o.scorer.Score(relevance.FieldLocation, text.Terms(e.Location.Description), queryTokens)
		tagsScore := o.scorer.Score(relevance.FieldTags, e.Tags, queryTokens)

		textScore := titleScore*w.Title + descScore*w.Description + locnScore*w.Location + tagsScore*w.Tags
		if textScore <= 0 {
			continue
		}

		scored = append(scored, Scored{
			Event: e,
			Score: textScore + o.proximity(e.Location.Coordinate, coord),
		})
	}

	sortDescending(scored)
	return scored
}

// sortDescending orders by score, highest first, keeping input order for ties.
func sortDescending(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
}

func unwrap(scored []Scored) []event.Event {
	out := make([]event.Event, len(scored))
	for i := range scored {
		out[i] = scored[i].Event
	}
	return out
}
