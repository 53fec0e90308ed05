package router

import (
	"fmt"
	"sort"

	"github.com/vyrodovalexey/avaform/internal/config"
	"github.com/vyrodovalexey/avaform/internal/observability"
	"github.com/vyrodovalexey/avaform/internal/transformation"
)

// DefaultRouteName labels requests served by the default policy.
const DefaultRouteName = "default"

// Route binds a transformation policy to a path prefix.
type Route struct {
	Name       string
	PathPrefix string
	Policy     *transformation.Policy
}

// MatchResult is the policy selected for a request.
type MatchResult struct {
	// Route is the matched route name, or DefaultRouteName.
	Route string

	// Policy is nil when nothing matched and there is no default policy.
	Policy *transformation.Policy
}

type compiledRoute struct {
	Route
	matcher *PrefixMatcher
}

// Table selects the transformation policy for a request path. A Table is
// immutable once built; reloads build a new one.
type Table struct {
	routes        []*compiledRoute
	defaultPolicy *transformation.Policy
	metrics       *routerMetrics
}

// NewTable builds a table. Routes are tried longest prefix first; a path
// no route matches gets defaultPolicy, which may be nil.
func NewTable(defaultPolicy *transformation.Policy, routes ...Route) (*Table, error) {
	seen := make(map[string]bool, len(routes))
	compiled := make([]*compiledRoute, 0, len(routes))

	for _, r := range routes {
		if r.Name == "" {
			return nil, fmt.Errorf("route with prefix %q has no name", r.PathPrefix)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate route name: %s", r.Name)
		}
		seen[r.Name] = true
		compiled = append(compiled, &compiledRoute{Route: r, matcher: NewPrefixMatcher(r.PathPrefix)})
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return len(compiled[i].PathPrefix) > len(compiled[j].PathPrefix)
	})

	t := &Table{
		routes:        compiled,
		defaultPolicy: defaultPolicy,
		metrics:       getRouterMetrics(),
	}
	t.metrics.routes.Set(float64(len(compiled)))
	return t, nil
}

// FromConfig compiles the default and per-route policies of cfg. Every
// policy shares one function library.
func FromConfig(cfg *config.GatewayConfig, logger observability.Logger) (*Table, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	lib := transformation.NewLibrary()

	compile := func(name string, pc *transformation.Config) (*transformation.Policy, error) {
		if pc == nil {
			return nil, nil
		}
		return transformation.NewPolicy(pc,
			transformation.WithName(name),
			transformation.WithLibrary(lib),
			transformation.WithLogger(logger),
		)
	}

	defaultPolicy, err := compile(DefaultRouteName, cfg.Spec.Transformation)
	if err != nil {
		return nil, err
	}

	routes := make([]Route, 0, len(cfg.Spec.Routes))
	for _, rc := range cfg.Spec.Routes {
		policy, err := compile(rc.Name, rc.Transformation)
		if err != nil {
			return nil, err
		}
		routes = append(routes, Route{Name: rc.Name, PathPrefix: rc.PathPrefix, Policy: policy})
	}

	return NewTable(defaultPolicy, routes...)
}

// Match returns the policy for path.
func (t *Table) Match(path string) MatchResult {
	for _, r := range t.routes {
		if r.matcher.Match(path) {
			t.metrics.matchesTotal.WithLabelValues(r.Name).Inc()
			return MatchResult{Route: r.Name, Policy: r.Policy}
		}
	}
	t.metrics.matchesTotal.WithLabelValues(DefaultRouteName).Inc()
	return MatchResult{Route: DefaultRouteName, Policy: t.defaultPolicy}
}

// Routes returns the routes in match order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	for i, r := range t.routes {
		out[i] = r.Route
	}
	return out
}

// Default returns the default policy, which may be nil.
func (t *Table) Default() *transformation.Policy {
	return t.defaultPolicy
}
