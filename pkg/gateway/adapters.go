package gateway

import (
	"fmt"

	"mercator-hq/switchboard/pkg/backends"
	"mercator-hq/switchboard/pkg/backends/httpjson"
	"mercator-hq/switchboard/pkg/config"
)

// buildAdapters creates one adapter per configured backend, resolving each
// credential reference once at startup.
func buildAdapters(cfg *config.Config) ([]backends.Adapter, error) {
	adapters := make([]backends.Adapter, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		a, err := buildAdapter(b)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

func buildAdapter(b config.BackendConfig) (backends.Adapter, error) {
	switch b.Type {
	case "http", "":
		key, err := config.ResolveCredential(b.CredentialRef)
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", b.ID, err)
		}
		a, err := httpjson.New(httpjson.Config{
			Name:    b.ID,
			BaseURL: b.URL,
			APIKey:  key,
			Timeout: b.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", b.ID, err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("backend %q: unsupported type %q", b.ID, b.Type)
	}
}
