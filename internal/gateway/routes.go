// Package gateway implements the API gateway: request routing to backend
// services, the dashboard fan-out aggregator and the health fan-out probe.
package gateway

import (
	"net/http"

	"github.com/kasirpos/platform/internal/config"
)

// Service names in the route table.
const (
	ServiceAuth      = "auth"
	ServiceProduct   = "product"
	ServiceOrder     = "order"
	ServicePayment   = "payment"
	ServiceReporting = "reporting"
)

// Routes resolves a logical service name to its base address. It is built
// once at process start from configuration and passed in explicitly; it is
// read-only at runtime.
type Routes struct {
	backends map[string]string
}

// NewRoutes builds the route table from the services configuration.
func NewRoutes(cfg config.ServicesConfig) *Routes {
	return &Routes{
		backends: map[string]string{
			ServiceAuth:      cfg.Auth,
			ServiceProduct:   cfg.Product,
			ServiceOrder:     cfg.Order,
			ServicePayment:   cfg.Payment,
			ServiceReporting: cfg.Reporting,
		},
	}
}

// Lookup returns the base address for service and whether it is known.
func (rt *Routes) Lookup(service string) (string, bool) {
	base, ok := rt.backends[service]
	return base, ok
}

// Names returns every known service name. Used by the health fan-out.
func (rt *Routes) Names() []string {
	names := make([]string, 0, len(rt.backends))
	for name := range rt.backends {
		names = append(names, name)
	}
	return names
}

// allowedMethods is the closed set of HTTP verbs the proxy forwards.
// Anything else is rejected before a backend call is attempted.
var allowedMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// MethodAllowed reports whether the proxy forwards the given verb.
func MethodAllowed(method string) bool {
	_, ok := allowedMethods[method]
	return ok
}
