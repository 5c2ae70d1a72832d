package transport

import (
	"context"
	"errors"
	"time"

	"forwarder/internal/models"
	"forwarder/internal/providers"
	"forwarder/internal/structures"
)

var (
	ErrNoSources      = errors.New("no monitored feed could be resolved")
	ErrNoDestinations = errors.New("no destination feed could be resolved")
)

const defaultResolveTimeout = 30 * time.Second

// NewTopology resolves the configured feeds once at startup. A run without a
// resolvable source or destination is a configuration failure.
func NewTopology(conf *structures.Config, resolver *Resolver, logger providers.Logger) (*models.Topology, error) {
	timeout := conf.Transport.Timeout * time.Duration(max(len(conf.Relay.Sources)+len(conf.Relay.Destinations), 1))
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sources := resolver.ResolveAll(ctx, conf.Relay.Sources)
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	destinations := resolver.ResolveAll(ctx, conf.Relay.Destinations)
	if len(destinations) == 0 {
		return nil, ErrNoDestinations
	}

	topology := models.NewTopology(sources, destinations)
	for _, d := range destinations {
		if topology.IsSource(d) {
			logger.Warnf(providers.TypeApp, "Feed %d is both monitored and a destination; copies relayed into it are skipped, other posts there are relayed", d)
		}
	}
	logger.Infof(providers.TypeApp, "Relaying %d monitored feed(s) to %d destination(s)", len(sources), len(destinations))
	return topology, nil
}
