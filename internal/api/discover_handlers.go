package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/onnwee/eventchat/internal/discover"
	"github.com/onnwee/eventchat/internal/geo"
	"github.com/onnwee/eventchat/internal/middleware"
	"github.com/onnwee/eventchat/internal/ranking"
)

// Page size limits for discovery endpoints.
const (
	MaxResultLimit     = 50 // Max results per page
	DefaultResultLimit = 20 // Default results if not specified
)

// Discoverer ranks events. Implemented by *discover.Service.
type Discoverer interface {
	Recommend(ctx context.Context, userID string, coord *geo.Coordinate) ([]ranking.Scored, error)
	Search(ctx context.Context, query string, coord *geo.Coordinate) ([]ranking.Scored, error)
}

// DiscoverHandlers serves the recommended feed and event search.
type DiscoverHandlers struct {
	discoverer Discoverer
}

// NewDiscoverHandlers creates a new DiscoverHandlers instance.
func NewDiscoverHandlers(discoverer Discoverer) *DiscoverHandlers {
	return &DiscoverHandlers{discoverer: discoverer}
}

// EventListResponse is the body of both discovery endpoints.
type EventListResponse struct {
	Events []discover.Result `json:"events"`
	Count  int               `json:"count"`
	Query  string            `json:"query,omitempty"`
}

// errInvalidParam wraps every query parameter problem.
var errInvalidParam = errors.New("invalid query parameter")

// discoverParams are the query parameters shared by both endpoints.
type discoverParams struct {
	coord *geo.Coordinate
	limit int
}

// parseDiscoverParams reads lat, lng and limit. lat and lng must be given
// together; limit defaults to DefaultResultLimit and is capped at
// MaxResultLimit.
func parseDiscoverParams(q url.Values) (discoverParams, error) {
	p := discoverParams{limit: DefaultResultLimit}

	latStr, lngStr := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lng"))
	switch {
	case latStr == "" && lngStr == "":
	case latStr == "" || lngStr == "":
		return p, fmt.Errorf("%w: lat and lng must be provided together", errInvalidParam)
	default:
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return p, fmt.Errorf("%w: lat must be a number", errInvalidParam)
		}
		lng, err := strconv.ParseFloat(lngStr, 64)
		if err != nil {
			return p, fmt.Errorf("%w: lng must be a number", errInvalidParam)
		}
		c := geo.Coordinate{Lat: lat, Lng: lng}
		if !c.Valid() {
			return p, fmt.Errorf("%w: lat must be within [-90, 90] and lng within [-180, 180]", errInvalidParam)
		}
		p.coord = &c
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return p, fmt.Errorf("%w: limit must be a positive integer", errInvalidParam)
		}
		p.limit = min(limit, MaxResultLimit)
	}

	return p, nil
}

// validationMessage strips the sentinel prefix for clients.
func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), errInvalidParam.Error()+": ")
}

// Recommended handles GET /events/recommended - the authenticated user's
// feed, ranked by shared members, shared tags and proximity.
func (h *DiscoverHandlers) Recommended(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	params, err := parseDiscoverParams(r.URL.Query())
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, validationMessage(err))
		return
	}

	scored, err := h.discoverer.Recommend(ctx, userID, params.coord)
	if err != nil {
		h.writeRankError(w, ctx, "recommend", err)
		return
	}

	results := discover.Page(scored, params.coord, params.limit)
	writeJSON(w, ctx, http.StatusOK, EventListResponse{Events: results, Count: len(results)})
}

// Search handles GET /events/search - free-text search over discoverable
// events. An empty q returns an empty list.
func (h *DiscoverHandlers) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	params, err := parseDiscoverParams(q)
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, validationMessage(err))
		return
	}

	query := strings.TrimSpace(q.Get("q"))
	results := []discover.Result{}
	if query != "" {
		scored, err := h.discoverer.Search(ctx, query, params.coord)
		if err != nil {
			h.writeRankError(w, ctx, "search", err)
			return
		}
		results = discover.Page(scored, params.coord, params.limit)
	}

	writeJSON(w, ctx, http.StatusOK, EventListResponse{Events: results, Count: len(results), Query: query})
}

func (h *DiscoverHandlers) writeRankError(w http.ResponseWriter, ctx context.Context, op string, err error) {
	if errors.Is(err, context.Canceled) {
		return // client went away
	}
	slog.ErrorContext(ctx, "failed to rank events", "op", op, "error", err)
	WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
}
