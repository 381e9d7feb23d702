package facade

import (
	"context"
	"encoding/gob"
	"time"
)

const routeCacheTTL = 60 * time.Second

// RouteResult is what Route returns.
type RouteResult struct {
	Query           string
	SelectedServers []string
	Confidence      float64
}

func init() {
	// The disk cache tier gob-encodes cached values through an any, so any
	// concrete type stored that way must be registered or gob silently
	// fails to round-trip it and Route would panic its v.(RouteResult)
	// assertion the day disk decode starts succeeding.
	gob.Register(RouteResult{})
}

// Route implements spec.md §4.8's route operation: cache lookup under
// "route:{query}", delegating to the Intelligent Router on a miss.
func (f *Facade) Route(ctx context.Context, query string) (RouteResult, error) {
	key := "route:" + query
	ttl := routeCacheTTL

	v, err := f.Cache.Cached(key, func() (any, error) {
		result, err := f.Router.SelectServers(ctx, query)
		if err != nil {
			return nil, err
		}
		return RouteResult{Query: query, SelectedServers: result.ServerIDs, Confidence: result.Confidence}, nil
	}, &ttl, []string{"route"})
	if err != nil {
		return RouteResult{Query: query}, err
	}
	return v.(RouteResult), nil
}

// RouteQuery adapts Route to the narrow shape plugin.RouterHandle expects,
// satisfying that interface structurally without this package importing it.
func (f *Facade) RouteQuery(ctx context.Context, query string) ([]string, float64, error) {
	result, err := f.Route(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	return result.SelectedServers, result.Confidence, nil
}
