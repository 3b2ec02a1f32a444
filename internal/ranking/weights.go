package ranking

import (
	"github.com/onnwee/eventchat/internal/geo"
	"github.com/onnwee/eventchat/internal/relevance"
)

// RecommendWeights weights the social signals of the recommended feed.
type RecommendWeights struct {
	Members float64 `json:"members"` // shared members with joined events (default: 0.5)
	Tags    float64 `json:"tags"`    // shared tags with joined events (default: 0.5)
}

// SearchWeights weights per-field text relevance. The defaults sum to 1.
type SearchWeights struct {
	Title       float64 `json:"title"`       // default: 0.30
	Description float64 `json:"description"` // default: 0.25
	Location    float64 `json:"location"`    // default: 0.25
	Tags        float64 `json:"tags"`        // default: 0.20
}

// Weights holds every ranking weight.
type Weights struct {
	Recommend RecommendWeights `json:"recommend"`
	Search    SearchWeights    `json:"search"`

	// ProximityRadiusKm is where the proximity term crosses zero (default: 50).
	ProximityRadiusKm float64 `json:"proximity_radius_km"`
}

// DefaultWeights returns the built-in weights.
//
// Recommend: social = members*0.5 + tags*0.5, plus proximity when a
// coordinate is known.
//
// Search: text = title*0.30 + description*0.25 + location*0.25 + tags*0.20,
// plus proximity when a coordinate is known.
func DefaultWeights() *Weights {
	return &Weights{
		Recommend: RecommendWeights{
			Members: 0.5,
			Tags:    0.5,
		},
		Search: SearchWeights{
			Title:       0.30,
			Description: 0.25,
			Location:    0.25,
			Tags:        0.20,
		},
		ProximityRadiusKm: geo.DefaultProximityRadiusKm,
	}
}

// options collects per-call settings.
type options struct {
	weights *Weights
	scorer  relevance.Scorer
}

// Option customises a ranking call.
type Option func(*options)

// WithWeights ranks with w instead of DefaultWeights. A nil w is ignored.
func WithWeights(w *Weights) Option {
	return func(o *options) {
		if w != nil {
			o.weights = w
		}
	}
}

// WithScorer ranks with s instead of relevance.MatchRatioScorer. A nil s is ignored.
func WithScorer(s relevance.Scorer) Option {
	return func(o *options) {
		if s != nil {
			o.scorer = s
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		weights: DefaultWeights(),
		scorer:  relevance.MatchRatioScorer{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// proximity returns the distance term, or 0 when the caller has no coordinate.
func (o options) proximity(eventLoc geo.Coordinate, curr *geo.Coordinate) float64 {
	if curr == nil {
		return 0
	}
	return geo.DistanceScore(eventLoc, *curr, o.weights.ProximityRadiusKm)
}
