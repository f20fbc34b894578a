// Package provider builds the payment provider gateways named in configuration.
package provider

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"fee-engine/config"
	"fee-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// Provider kinds.
const (
	KindHTTP    = "http"
	KindSandbox = "sandbox"
)

// ErrMissingCredentials is returned when an HTTP provider has no secret or base URL.
var ErrMissingCredentials = errors.New("provider credentials missing")

// Registry implements ports.GatewayRegistry.
type Registry struct {
	gateways map[string]ports.ProviderGateway
}

// NewRegistry builds one gateway per configured provider. It fails on the first
// provider it cannot construct, so a bad deployment never starts.
func NewRegistry(cfgs []config.ProviderConfig, log zerolog.Logger) (*Registry, error) {
	r := &Registry{gateways: make(map[string]ports.ProviderGateway, len(cfgs))}
	for _, c := range cfgs {
		if c.Name == "" {
			return nil, errors.New("provider name is required")
		}
		if _, dup := r.gateways[c.Name]; dup {
			return nil, fmt.Errorf("provider %q configured twice", c.Name)
		}

		switch c.Kind {
		case KindHTTP:
			if c.SecretKey == "" || c.BaseURL == "" {
				return nil, fmt.Errorf("provider %q: %w", c.Name, ErrMissingCredentials)
			}
			timeout := c.Timeout
			if timeout <= 0 {
				timeout = 30 * time.Second
			}
			r.gateways[c.Name] = NewHTTPGateway(c.Name, c.BaseURL, c.SecretKey, &http.Client{Timeout: timeout}, log)
		case KindSandbox:
			r.gateways[c.Name] = NewSandbox(c.Name)
		default:
			return nil, fmt.Errorf("provider %q: unknown kind %q", c.Name, c.Kind)
		}

		log.Info().Str("provider", c.Name).Str("kind", c.Kind).Msg("provider gateway registered")
	}
	return r, nil
}

// Register adds or replaces a gateway.
func (r *Registry) Register(gw ports.ProviderGateway) {
	r.gateways[gw.Name()] = gw
}

func (r *Registry) Gateway(name string) (ports.ProviderGateway, bool) {
	gw, ok := r.gateways[name]
	return gw, ok
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for n := range r.gateways {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
