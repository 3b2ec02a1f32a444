package discover

import (
	"math"

	"github.com/onnwee/eventchat/internal/event"
	"github.com/onnwee/eventchat/internal/geo"
	"github.com/onnwee/eventchat/internal/ranking"
)

// Result is one ranked event as returned to clients.
type Result struct {
	Event      event.Event `json:"event"`
	Score      float64     `json:"score"`
	DistanceKm *float64    `json:"distance_km,omitempty"`
	Geohash    string      `json:"geohash"`
}

// Page converts the first limit scored events into Results. A non-positive
// limit keeps everything. Non-finite scores are reported as 0 so the page
// always encodes as JSON.
func Page(scored []ranking.Scored, coord *geo.Coordinate, limit int) []Result {
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	out := make([]Result, len(scored))
	for i, s := range scored {
		r := Result{
			Event:   s.Event,
			Score:   finite(s.Score),
			Geohash: geo.Cell(s.Event.Location.Coordinate),
		}
		if coord != nil {
			if d := geo.DistanceKm(s.Event.Location.Coordinate, *coord); !math.IsNaN(d) {
				r.DistanceKm = &d
			}
		}
		out[i] = r
	}
	return out
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
