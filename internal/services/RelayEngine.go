package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/atomic"

	"forwarder/internal/dispatch"
	"forwarder/internal/models"
	"forwarder/internal/persistence/interfaces"
	"forwarder/internal/providers"
	"forwarder/internal/structures"
)

var ErrNoDestinations = errors.New("no destinations configured")

const (
	outcomeRelayed    = "relayed"
	outcomeDuplicate  = "duplicate"
	outcomeFiltered   = "filtered"
	outcomeFailed     = "failed"
	outcomeIgnored    = "ignored"
	outcomeUnmapped   = "unmapped"
	outcomePropagated = "propagated"
	outcomeRetracted  = "retracted"
)

type RelayEngineInterface interface {
	Run(ctx context.Context, events <-chan models.Event) error
	Handle(ctx context.Context, evt models.Event)
	Lookup(key models.RelayKey) ([]models.Copy, bool)
	Stats() Stats
}

// Stats are cumulative counters since start.
type Stats struct {
	Received    int64 `json:"received"`
	Ignored     int64 `json:"ignored"`
	Duplicates  int64 `json:"duplicates"`
	Filtered    int64 `json:"filtered"`
	Relayed     int64 `json:"relayed"`
	Undelivered int64 `json:"undelivered"`
	Edited      int64 `json:"edited"`
	Retracted   int64 `json:"retracted"`
	Deleted     int64 `json:"deleted"`
	CopyErrors  int64 `json:"copy_errors"`
}

// RelayEngine applies lifecycle events to the fingerprint store and the relay
// map. Events are handled one at a time; fan-out is sequential.
type RelayEngine struct {
	topology     *models.Topology
	filter       models.FilterConfig
	fingerprints *models.FingerprintStore
	relays       *models.RelayMap
	policy       dispatch.PolicyInterface
	checkpoint   interfaces.Checkpointer
	logger       providers.Logger
	metrics      providers.MetricsProviderInterface

	received    atomic.Int64
	ignored     atomic.Int64
	duplicates  atomic.Int64
	filtered    atomic.Int64
	relayed     atomic.Int64
	undelivered atomic.Int64
	edited      atomic.Int64
	retracted   atomic.Int64
	deleted     atomic.Int64
	copyErrors  atomic.Int64
}

func NewFilterConfig(conf *structures.Config) models.FilterConfig {
	return models.NewFilterConfig(models.FilterOptions{
		Keywords:       conf.Relay.Keywords,
		CaseSensitive:  conf.Relay.CaseSensitive,
		IgnoreMedia:    conf.Relay.IgnoreMedia,
		IgnoreForwards: conf.Relay.IgnoreForwards,
		IgnoreBots:     conf.Relay.IgnoreBots,
	})
}

func NewRelayEngine(
	filter models.FilterConfig,
	topology *models.Topology,
	fingerprints *models.FingerprintStore,
	relays *models.RelayMap,
	policy dispatch.PolicyInterface,
	checkpoint interfaces.Checkpointer,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
) (RelayEngineInterface, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if len(topology.Destinations) == 0 {
		return nil, ErrNoDestinations
	}
	return &RelayEngine{
		topology:     topology,
		filter:       filter,
		fingerprints: fingerprints,
		relays:       relays,
		policy:       policy,
		checkpoint:   checkpoint,
		logger:       logger,
		metrics:      metrics,
	}, nil
}

// Run consumes events until ctx is cancelled or the channel is closed. The
// event being handled when ctx is cancelled still completes its fan-out.
func (e *RelayEngine) Run(ctx context.Context, events <-chan models.Event) error {
	work := context.WithoutCancel(ctx)
	e.logger.Infof(providers.TypeRelay, "Relay engine started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Infof(providers.TypeRelay, "Relay engine stopped")
			return nil
		case evt, ok := <-events:
			if !ok {
				e.logger.Warnf(providers.TypeRelay, "Event stream closed")
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			e.Handle(work, evt)
		}
	}
}

func (e *RelayEngine) Handle(ctx context.Context, evt models.Event) {
	e.received.Inc()
	if !e.topology.IsSource(evt.Key.Feed) {
		e.ignored.Inc()
		e.metrics.IncEvents(string(evt.Kind), outcomeIgnored)
		return
	}

	switch evt.Kind {
	case models.EventNew:
		if evt.Message == nil {
			e.logger.Warnf(providers.TypeRelay, "New event %s without message", evt.Key)
			return
		}
		e.handleNew(ctx, evt.Message)
	case models.EventEdited:
		if evt.Message == nil {
			e.logger.Warnf(providers.TypeRelay, "Edit event %s without message", evt.Key)
			return
		}
		e.handleEdit(ctx, evt.Message)
	case models.EventDeleted:
		e.handleDelete(ctx, evt.Key)
	default:
		e.logger.Warnf(providers.TypeRelay, "Unknown event kind %q for %s", evt.Kind, evt.Key)
	}
}

func (e *RelayEngine) handleNew(ctx context.Context, msg *models.Message) {
	key := msg.Key()
	if src, ok := e.relays.SourceOf(models.Copy{Feed: key.Feed, Message: key.Message}); ok {
		e.ignored.Inc()
		e.metrics.IncEvents(string(models.EventNew), outcomeIgnored)
		e.logger.Debugf(providers.TypeRelay, "Message %s is a relayed copy of %s, skipped", key, src)
		return
	}
	fp := models.ComputeFingerprint(msg)
	if e.fingerprints.Contains(fp) {
		e.duplicates.Inc()
		e.metrics.IncEvents(string(models.EventNew), outcomeDuplicate)
		e.logger.Debugf(providers.TypeRelay, "Duplicate content in %s, skipped", key)
		return
	}
	e.fingerprints.Add(fp)

	if decision := e.filter.Evaluate(msg); decision != models.FilterPass {
		e.filtered.Inc()
		e.metrics.IncEvents(string(models.EventNew), outcomeFiltered)
		e.logger.Debugf(providers.TypeRelay, "Message %s filtered: %s", key, decision)
		e.checkpoint.Checkpoint()
		return
	}

	start := time.Now()
	copies := make([]models.Copy, 0, len(e.topology.Destinations))
	for _, dest := range e.topology.Destinations {
		c, err := e.policy.Send(ctx, dest, msg)
		if err != nil {
			e.copyErrors.Inc()
			e.logger.Warnf(providers.TypeRelay, "Message %s not relayed to %d: %s", key, dest, err)
			continue
		}
		copies = append(copies, c)
	}
	e.metrics.ObserveFanOutDuration(time.Since(start))

	if len(copies) == 0 {
		e.undelivered.Inc()
		e.metrics.IncEvents(string(models.EventNew), outcomeFailed)
		e.logger.Errorf(providers.TypeRelay, "Message %s was not delivered to any destination", key)
		e.checkpoint.Checkpoint()
		return
	}

	e.relays.Put(key, copies)
	e.relayed.Inc()
	e.metrics.IncEvents(string(models.EventNew), outcomeRelayed)
	e.logger.Infof(providers.TypeRelay, "Relayed %s to %d/%d destinations", key, len(copies), len(e.topology.Destinations))
	e.checkpoint.Checkpoint()
}

func (e *RelayEngine) handleEdit(ctx context.Context, msg *models.Message) {
	key := msg.Key()
	copies, ok := e.relays.Get(key)
	if !ok {
		e.metrics.IncEvents(string(models.EventEdited), outcomeUnmapped)
		return
	}

	if decision := e.filter.Evaluate(msg); decision != models.FilterPass {
		e.logger.Infof(providers.TypeRelay, "Edited %s no longer matches (%s), retracting %d copies", key, decision, len(copies))
		e.retract(ctx, key, copies)
		e.retracted.Inc()
		e.metrics.IncEvents(string(models.EventEdited), outcomeRetracted)
		return
	}

	failed := 0
	for _, c := range copies {
		if err := e.policy.Edit(ctx, c, msg); err != nil {
			failed++
			e.copyErrors.Inc()
			e.logger.Warnf(providers.TypeRelay, "Edit of %s copy %d/%d failed: %s", key, c.Feed, c.Message, err)
		}
	}
	e.edited.Inc()
	e.metrics.IncEvents(string(models.EventEdited), outcomePropagated)
	e.logger.Infof(providers.TypeRelay, "Propagated edit of %s to %d/%d copies", key, len(copies)-failed, len(copies))
}

func (e *RelayEngine) handleDelete(ctx context.Context, key models.RelayKey) {
	copies, ok := e.relays.Get(key)
	if !ok {
		e.metrics.IncEvents(string(models.EventDeleted), outcomeUnmapped)
		return
	}
	e.logger.Infof(providers.TypeRelay, "Source %s deleted, removing %d copies", key, len(copies))
	e.retract(ctx, key, copies)
	e.deleted.Inc()
	e.metrics.IncEvents(string(models.EventDeleted), outcomeRetracted)
}

// retract deletes every copy and retires the entry even when some deletes fail.
func (e *RelayEngine) retract(ctx context.Context, key models.RelayKey, copies []models.Copy) {
	for _, c := range copies {
		if err := e.policy.Delete(ctx, c); err != nil {
			e.copyErrors.Inc()
			e.logger.Warnf(providers.TypeRelay, "Delete of %s copy %d/%d failed: %s", key, c.Feed, c.Message, err)
		}
	}
	e.relays.Remove(key)
	e.checkpoint.Checkpoint()
}

func (e *RelayEngine) Lookup(key models.RelayKey) ([]models.Copy, bool) {
	return e.relays.Get(key)
}

func (e *RelayEngine) Stats() Stats {
	return Stats{
		Received:    e.received.Load(),
		Ignored:     e.ignored.Load(),
		Duplicates:  e.duplicates.Load(),
		Filtered:    e.filtered.Load(),
		Relayed:     e.relayed.Load(),
		Undelivered: e.undelivered.Load(),
		Edited:      e.edited.Load(),
		Retracted:   e.retracted.Load(),
		Deleted:     e.deleted.Load(),
		CopyErrors:  e.copyErrors.Load(),
	}
}
