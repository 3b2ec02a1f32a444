package ranking

import (
	"fmt"
	"testing"

	"github.com/onnwee/eventchat/internal/event"
	"github.com/onnwee/eventchat/internal/geo"
)

func benchmarkEvents(n int) []event.Event {
	tags := []string{"music", "art", "food", "sport", "study", "beach", "tech"}
	events := make([]event.Event, n)
	for i := range events {
		events[i] = event.Event{
			ID:          fmt.Sprintf("evt-%d", i),
			Title:       fmt.Sprintf("Community %s meetup %d", tags[i%len(tags)], i),
			Description: "bring a friend and meet people from the neighbourhood",
			Tags:        []string{tags[i%len(tags)], tags[(i+3)%len(tags)]},
			Members:     []string{fmt.Sprintf("u%d", i%50), fmt.Sprintf("u%d", (i+7)%50)},
			Location: event.Location{
				Description: "Community Hall",
				Coordinate:  geo.Coordinate{Lat: 1.3 + float64(i%100)/1000, Lng: 103.8 + float64(i%100)/1000},
			},
		}
	}
	return events
}

func BenchmarkSearch(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		events := benchmarkEvents(n)
		here := geo.Coordinate{Lat: 1.35, Lng: 103.85}
		b.Run(fmt.Sprintf("events=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = Search(events, "music meetup near the beach", &here)
			}
		})
	}
}

func BenchmarkRecommend(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		events := benchmarkEvents(n)
		here := geo.Coordinate{Lat: 1.35, Lng: 103.85}
		b.Run(fmt.Sprintf("events=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = Recommend(events, "u3", &here)
			}
		})
	}
}
