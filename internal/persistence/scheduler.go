package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roylee0704/gron"

	"forwarder/internal/models"
	"forwarder/internal/persistence/interfaces"
	"forwarder/internal/providers"
	"forwarder/internal/structures"
)

const persistTimeout = 30 * time.Second

type Scheduler struct {
	config       *structures.Config
	logger       providers.Logger
	gateway      Gateway
	fingerprints *models.FingerprintStore
	relays       *models.RelayMap
	metrics      providers.MetricsProviderInterface
	cron         *gron.Cron
	opsMu        sync.Mutex
}

func (s *Scheduler) Init() {
	s.cron = gron.New()
	interval := s.config.Persistence.SaveInterval

	s.cron.AddFunc(gron.Every(interval), func() {
		if err := s.persistDirty(); err != nil {
			s.logger.Errorf(providers.TypeStore, "Error while persisting state: %s", err)
		}
	})

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Restore loads both records. A record that fails to load leaves its store
// empty; the other is still applied.
func (s *Scheduler) Restore() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var errs []error
	fps, err := s.gateway.LoadFingerprints(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("fingerprints: %w", err))
	} else {
		s.fingerprints.Replace(fps)
		s.logger.Infof(providers.TypeStore, "Restored %d fingerprints", s.fingerprints.Len())
	}

	entries, err := s.gateway.LoadRelayMap(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("relay map: %w", err))
	} else {
		s.relays.Replace(entries)
		s.logger.Infof(providers.TypeStore, "Restored %d relay entries", s.relays.Len())
	}
	return errors.Join(errs...)
}

// Persist writes both records regardless of the dirty flags.
func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.logger.Infof(providers.TypeStore, "Persisting state...")
	s.fingerprints.TakeDirty()
	s.relays.TakeDirty()
	err := s.save(true, true)
	if err != nil {
		s.logger.Errorf(providers.TypeStore, "Error while persisting state: %s", err)
	}
	return err
}

// Checkpoint saves whatever changed when per-mutation saving is on.
// Otherwise the periodic job picks the change up.
func (s *Scheduler) Checkpoint() {
	if !s.config.Persistence.SaveOnMutation {
		return
	}
	if err := s.persistDirty(); err != nil {
		s.logger.Errorf(providers.TypeStore, "Error while checkpointing state: %s", err)
	}
}

func (s *Scheduler) persistDirty() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	fpDirty := s.fingerprints.TakeDirty()
	relayDirty := s.relays.TakeDirty()
	if !fpDirty && !relayDirty {
		return nil
	}
	return s.save(fpDirty, relayDirty)
}

func (s *Scheduler) save(fingerprints, relays bool) error {
	start := time.Now()
	defer func() { s.metrics.ObservePersistenceDuration(time.Since(start)) }()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var errs []error
	if fingerprints {
		if err := s.gateway.SaveFingerprints(ctx, s.fingerprints.Snapshot()); err != nil {
			s.fingerprints.MarkDirty()
			errs = append(errs, fmt.Errorf("fingerprints: %w", err))
		}
	}
	if relays {
		if err := s.gateway.SaveRelayMap(ctx, s.relays.Snapshot()); err != nil {
			s.relays.MarkDirty()
			errs = append(errs, fmt.Errorf("relay map: %w", err))
		}
	}
	if len(errs) == 0 {
		s.logger.Debugf(providers.TypeStore, "Persisted state (fingerprints=%t, relays=%t)", fingerprints, relays)
	}
	return errors.Join(errs...)
}

func NewScheduler(config *structures.Config, logger providers.Logger, gateway Gateway, fingerprints *models.FingerprintStore, relays *models.RelayMap, metrics providers.MetricsProviderInterface) interfaces.SchedulerInterface {
	return &Scheduler{
		config:       config,
		logger:       logger,
		gateway:      gateway,
		fingerprints: fingerprints,
		relays:       relays,
		metrics:      metrics,
	}
}
