package discover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onnwee/eventchat/internal/corpus"
	"github.com/onnwee/eventchat/internal/event"
	"github.com/onnwee/eventchat/internal/geo"
	"github.com/onnwee/eventchat/internal/ranking"
	"github.com/onnwee/eventchat/internal/relevance"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func seedStore(t *testing.T) *event.InMemoryStore {
	t.Helper()

	events := []*event.Event{
		{
			ID:        "history",
			Title:     "Jazz Jam",
			Tags:      []string{"music"},
			Members:   []string{"u1", "u2", "u3"},
			IsPublic:  true,
			StartDate: testNow.Add(-72 * time.Hour),
		},
		{
			ID:        "C",
			Title:     "Live Music Night",
			Tags:      []string{"music", "live"},
			Members:   []string{"u2", "u4"},
			IsPublic:  true,
			StartDate: testNow.Add(48 * time.Hour),
		},
		{
			ID:        "D",
			Title:     "Art Walk",
			Tags:      []string{"art"},
			Members:   []string{"u9"},
			IsPublic:  true,
			StartDate: testNow.Add(24 * time.Hour),
		},
		{
			ID:        "private",
			Title:     "Music Rehearsal",
			Tags:      []string{"music"},
			Members:   []string{"u2"},
			StartDate: testNow.Add(24 * time.Hour),
		},
		{
			ID:        "mine",
			Title:     "Music Picnic",
			Members:   []string{"u1"},
			IsPublic:  true,
			StartDate: testNow.Add(96 * time.Hour),
		},
	}

	store := event.NewInMemoryStore()
	for _, e := range events {
		if err := store.Put(context.Background(), e); err != nil {
			t.Fatalf("Put(%s): %v", e.ID, err)
		}
	}
	return store
}

func resultIDs(scored []ranking.Scored) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Event.ID
	}
	return out
}

func equalIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func newTestService(t *testing.T, store event.Store, strategy string, metrics *Metrics) *Service {
	t.Helper()

	svc, err := NewService(store, corpus.NewCache(nil, nil), Config{Strategy: strategy, Now: fixedNow}, metrics, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestService_Recommend(t *testing.T) {
	svc := newTestService(t, seedStore(t), "", nil)

	got, err := svc.Recommend(context.Background(), "u1", nil)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	// history and mine are joined, private is hidden
	if !equalIDs(resultIDs(got), []string{"C", "D"}) {
		t.Fatalf("Recommend = %v, want [C D]", resultIDs(got))
	}
	if got[0].Score != 0.5 {
		t.Errorf("C score = %v, want 0.5", got[0].Score)
	}
}

func TestService_RecommendWithCoordinate(t *testing.T) {
	store := seedStore(t)
	far := &event.Event{
		ID:        "far",
		Title:     "Music Far Away",
		Tags:      []string{"music", "live"},
		Members:   []string{"u2", "u4"},
		IsPublic:  true,
		StartDate: testNow.Add(time.Hour),
		Location:  event.Location{Coordinate: geo.Coordinate{Lat: 3.139, Lng: 101.6869}},
	}
	if err := store.Put(context.Background(), far); err != nil {
		t.Fatal(err)
	}

	here := geo.Coordinate{Lat: 0, Lng: 0}
	svc := newTestService(t, store, "", nil)
	got, err := svc.Recommend(context.Background(), "u1", &here)
	if err != nil {
		t.Fatal(err)
	}
	if got[len(got)-1].Event.ID != "far" {
		t.Errorf("Recommend = %v, want far last", resultIDs(got))
	}
}

func TestService_Search(t *testing.T) {
	svc := newTestService(t, seedStore(t), relevance.StrategyMatchRatio, nil)

	tests := []struct {
		query string
		want  []string
	}{
		{"music", []string{"C", "mine"}},
		{"art", []string{"D"}},
		{"jazz", []string{}},
		{"", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := svc.Search(context.Background(), tt.query, nil)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if !equalIDs(resultIDs(got), tt.want) {
				t.Errorf("Search(%q) = %v, want %v", tt.query, resultIDs(got), tt.want)
			}
		})
	}
}

func TestService_TFIDFUsesCache(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatal(err)
	}

	svc := newTestService(t, seedStore(t), relevance.StrategyTFIDF, metrics)
	if svc.Strategy() != relevance.StrategyTFIDF {
		t.Fatalf("Strategy = %s", svc.Strategy())
	}

	ctx := context.Background()
	for range 2 {
		got, err := svc.Search(ctx, "music", nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Errorf("Search returned %v, want 2 results", resultIDs(got))
		}
	}

	if v := counterValue(t, metrics.indexCache, string(corpus.SourceBuilt)); v != 1 {
		t.Errorf("built = %v, want 1", v)
	}
	if v := counterValue(t, metrics.indexCache, string(corpus.SourceMemory)); v != 1 {
		t.Errorf("memory = %v, want 1", v)
	}
	if v := counterValue(t, metrics.results, OpSearch); v != 4 {
		t.Errorf("results = %v, want 4", v)
	}
}

func TestNewService_Defaults(t *testing.T) {
	svc, err := NewService(event.NewInMemoryStore(), nil, Config{Strategy: "TFIDF"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if svc.cache == nil {
		t.Error("tfidf service without a cache")
	}
	if *svc.weights != *ranking.DefaultWeights() {
		t.Errorf("weights = %+v, want defaults", svc.weights)
	}
}

func TestNewService_UnknownStrategy(t *testing.T) {
	if _, err := NewService(event.NewInMemoryStore(), nil, Config{Strategy: "bm25"}, nil, nil); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

var errBoom = errors.New("boom")

type failingStore struct {
	event.Store
	failList   bool
	failMember bool
}

func (s failingStore) ListDiscoverable(ctx context.Context, now time.Time) ([]event.Event, error) {
	if s.failList {
		return nil, errBoom
	}
	return s.Store.ListDiscoverable(ctx, now)
}

func (s failingStore) ListByMember(ctx context.Context, userID string) ([]event.Event, error) {
	if s.failMember {
		return nil, errBoom
	}
	return s.Store.ListByMember(ctx, userID)
}

func TestService_StoreErrors(t *testing.T) {
	base := seedStore(t)

	tests := []struct {
		name  string
		store failingStore
		call  func(*Service) error
	}{
		{
			name:  "recommend list",
			store: failingStore{Store: base, failList: true},
			call: func(s *Service) error {
				_, err := s.Recommend(context.Background(), "u1", nil)
				return err
			},
		},
		{
			name:  "recommend members",
			store: failingStore{Store: base, failMember: true},
			call: func(s *Service) error {
				_, err := s.Recommend(context.Background(), "u1", nil)
				return err
			},
		},
		{
			name:  "search",
			store: failingStore{Store: base, failList: true},
			call: func(s *Service) error {
				_, err := s.Search(context.Background(), "music", nil)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(newTestService(t, tt.store, "", nil))
			if !errors.Is(err, errBoom) {
				t.Errorf("error = %v, want wrapped errBoom", err)
			}
		})
	}
}
