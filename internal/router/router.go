// Package router implements the Intelligent Router (spec.md §4.6): given a
// free-text query, it produces a ranked list of candidate server ids and a
// confidence score. Installed Router Extension and Routing Strategy plugins
// are consulted first; otherwise it tries LLM-assisted analysis, falls back
// to keyword matching, then capability lookups, a text search over the
// Metadata Store, and finally every online server.
package router

import (
	"context"
	"strings"

	"mcprouter/internal/metadata"
	"mcprouter/internal/plugin"
	"mcprouter/internal/registry"
	"mcprouter/pkg/logging"
)

// minKeywordTokenLength mirrors spec.md §4.6's keyword-fallback tokenizer:
// only tokens longer than 3 characters are considered.
const minKeywordTokenLength = 3

// defaultLLMConfidence is used when an LLM analysis succeeds but the
// response omits a confidence value.
const defaultLLMConfidence = 0.7

// keywordMatchConfidence/keywordNoMatchConfidence are the two outcomes of
// the keyword fallback strategy.
const (
	keywordMatchConfidence   = 0.5
	keywordNoMatchConfidence = 0.0
)

// Analysis is what an LLMAnalyzer returns for a query.
type Analysis struct {
	RequiredCapabilities []string
	Confidence           float64
	Reasoning            string
}

// LLMAnalyzer is the injected LLM capability spec.md treats as an external
// collaborator: given a query and the full set of known capability names,
// return the subset the query requires. Construction without an analyzer
// (a nil Router.llm) falls straight through to the keyword strategy.
type LLMAnalyzer interface {
	Analyze(ctx context.Context, query string, knownCapabilities []string) (Analysis, error)
}

// Result is what SelectServers returns.
type Result struct {
	ServerIDs  []string
	Confidence float64
}

// Router selects candidate servers for a query.
type Router struct {
	registry *registry.Registry
	metadata *metadata.Store
	llm      LLMAnalyzer
	plugins  *plugin.Manager
}

// Option configures a Router.
type Option func(*Router)

// WithLLMAnalyzer injects the LLM-assisted analysis capability.
func WithLLMAnalyzer(a LLMAnalyzer) Option { return func(r *Router) { r.llm = a } }

// WithPlugins wires in the Plugin Manager so an installed Routing Strategy
// plugin can override server selection entirely (spec.md §4.6).
func WithPlugins(m *plugin.Manager) Option { return func(r *Router) { r.plugins = m } }

// SetPlugins wires in the Plugin Manager after construction. The Plugin
// Manager's RouterHandle is the façade itself, which can only be built once
// the Router already exists, so the caller (cmd/routerd) resolves that
// cycle by constructing the Router first and calling SetPlugins once the
// façade and its Plugin Manager are assembled.
func (r *Router) SetPlugins(m *plugin.Manager) { r.plugins = m }

// New constructs a Router over reg and store.
func New(reg *registry.Registry, store *metadata.Store, opts ...Option) *Router {
	r := &Router{registry: reg, metadata: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SelectServers implements the ordered strategy chain from spec.md §4.6.
func (r *Router) SelectServers(ctx context.Context, query string) (Result, error) {
	if intercepted, ok := r.extensionIntercept(ctx, query); ok {
		return intercepted, nil
	}

	if override, ok := r.pluginOverride(ctx, query); ok {
		return override, nil
	}

	caps, confidence := r.analyzeCapabilities(ctx, query)

	if len(caps) > 0 {
		if servers := r.registry.ByCapabilities(caps, true); len(servers) > 0 {
			return Result{ServerIDs: serverIDs(servers), Confidence: confidence}, nil
		}
		if servers := r.registry.ByCapabilities(caps, false); len(servers) > 0 {
			return Result{ServerIDs: serverIDs(servers), Confidence: confidence}, nil
		}
	}

	if r.metadata != nil {
		ids, err := r.metadata.FindServersForTask(ctx, query)
		if err != nil {
			logging.Warn("Router", "find_servers_for_task failed: %v", err)
		} else if len(ids) > 0 {
			return Result{ServerIDs: ids, Confidence: confidence}, nil
		}
	}

	return Result{ServerIDs: r.registry.OnlineIDs(), Confidence: confidence}, nil
}

// extensionIntercept gives every installed Router Extension a chance to
// short-circuit request processing before C6 runs at all (spec.md §4.7).
// The first extension (in name order) that returns a result wins.
func (r *Router) extensionIntercept(ctx context.Context, query string) (Result, bool) {
	if r.plugins == nil {
		return Result{}, false
	}
	for _, ext := range r.plugins.RouterExtensions() {
		result, ok := ext.Intercept(ctx, query)
		if ok && result != nil {
			return Result{ServerIDs: result.ServerIDs, Confidence: result.Confidence}, true
		}
	}
	return Result{}, false
}

// pluginOverride applies spec.md §4.6's Routing-Strategy override: when one
// or more Routing Strategy plugins are installed, the highest-confidence
// result wins (ties broken by plugin name, lexicographically), and it
// short-circuits the rest of this method entirely.
func (r *Router) pluginOverride(ctx context.Context, query string) (Result, bool) {
	if r.plugins == nil {
		return Result{}, false
	}
	strategies := r.plugins.RoutingStrategies()
	if len(strategies) == 0 {
		return Result{}, false
	}

	var (
		best       Result
		bestName   string
		haveResult bool
	)
	for _, strat := range strategies {
		ids, confidence, err := strat.SelectServers(ctx, query)
		if err != nil {
			logging.Warn("Router", "routing strategy plugin %q failed: %v", strat.Name(), err)
			continue
		}
		if !haveResult ||
			confidence > best.Confidence ||
			(confidence == best.Confidence && strat.Name() < bestName) {
			best = Result{ServerIDs: ids, Confidence: confidence}
			bestName = strat.Name()
			haveResult = true
		}
	}
	return best, haveResult
}

// AnalyzeQuery exposes the capability-analysis step on its own, without
// running the rest of the selection chain, for introspection (spec.md
// §4.8's analyze_query).
func (r *Router) AnalyzeQuery(ctx context.Context, query string) Analysis {
	caps, confidence := r.analyzeCapabilities(ctx, query)
	return Analysis{RequiredCapabilities: caps, Confidence: confidence}
}

// analyzeCapabilities runs LLM-assisted analysis if an analyzer was
// injected, falling back to keyword matching on any error, malformed
// result, or absence of an analyzer.
func (r *Router) analyzeCapabilities(ctx context.Context, query string) ([]string, float64) {
	known := r.registry.AllCapabilities()

	if r.llm != nil {
		analysis, err := r.llm.Analyze(ctx, query, known)
		if err != nil {
			logging.Warn("Router", "LLM analysis failed, falling back to keyword matching: %v", err)
		} else {
			caps := filterKnown(analysis.RequiredCapabilities, known)
			confidence := analysis.Confidence
			if confidence == 0 {
				confidence = defaultLLMConfidence
			}
			return caps, confidence
		}
	}

	return keywordMatch(query, known)
}

// keywordMatch tokenizes query, retains tokens longer than
// minKeywordTokenLength, and matches each known capability by case-
// insensitive substring containment against any token.
func keywordMatch(query string, known []string) ([]string, float64) {
	tokens := tokenize(query)

	var matched []string
	for _, cap := range known {
		lc := strings.ToLower(cap)
		for _, tok := range tokens {
			if strings.Contains(lc, tok) {
				matched = append(matched, cap)
				break
			}
		}
	}

	if len(matched) > 0 {
		return matched, keywordMatchConfidence
	}
	return nil, keywordNoMatchConfidence
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > minKeywordTokenLength {
			out = append(out, f)
		}
	}
	return out
}

func filterKnown(reported, known []string) []string {
	knownSet := make(map[string]struct{}, len(known))
	for _, k := range known {
		knownSet[k] = struct{}{}
	}
	var out []string
	for _, c := range reported {
		if _, ok := knownSet[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

func serverIDs(servers []registry.Server) []string {
	out := make([]string, len(servers))
	for i, s := range servers {
		out[i] = s.ID
	}
	return out
}
