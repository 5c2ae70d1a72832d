package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"forwarder/internal/dispatch"
	"forwarder/internal/models"
	"forwarder/internal/persistence"
	"forwarder/internal/structures"
	"forwarder/internal/testutil"
	"forwarder/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	srcFeed models.FeedID = -1001
	dstA    models.FeedID = -2001
	dstB    models.FeedID = -2002
)

var baseDate = time.Date(2024, 5, 1, 12, 30, 10, 0, time.UTC)

type engineFixture struct {
	engine       *RelayEngine
	transport    *testutil.FakeTransport
	fingerprints *models.FingerprintStore
	relays       *models.RelayMap
	checkpoints  *testutil.MockCheckpointer
	metrics      *testutil.MockMetrics
}

func engineConfig() *structures.Config {
	return &structures.Config{
		Relay: structures.RelayConfig{
			Keywords: []string{"btc", "eth"},
		},
		Dispatch: structures.DispatchConfig{
			MaxRateLimitWait: time.Minute,
		},
	}
}

func newFixture(t *testing.T) *engineFixture {
	return newFixtureWithStores(t, models.NewFingerprintStore(0, 0), models.NewRelayMap())
}

func newFixtureWithStores(t *testing.T, fps *models.FingerprintStore, relays *models.RelayMap) *engineFixture {
	conf := engineConfig()
	fake := testutil.NewFakeTransport()
	logger := &testutil.MockLogger{}
	metrics := testutil.NewMockMetrics()
	checkpoints := &testutil.MockCheckpointer{}
	policy := dispatch.NewPolicy(conf, fake, logger, metrics)
	topo := models.NewTopology([]models.FeedID{srcFeed}, []models.FeedID{dstA, dstB})

	engine, err := NewRelayEngine(NewFilterConfig(conf), topo, fps, relays, policy, checkpoints, logger, metrics)
	require.NoError(t, err)
	return &engineFixture{
		engine:       engine.(*RelayEngine),
		transport:    fake,
		fingerprints: fps,
		relays:       relays,
		checkpoints:  checkpoints,
		metrics:      metrics,
	}
}

func message(id models.MessageID, text string) *models.Message {
	return &models.Message{Feed: srcFeed, ID: id, Text: &text, Date: baseDate}
}

func key(id models.MessageID) models.RelayKey {
	return models.RelayKey{Feed: srcFeed, Message: id}
}

func TestNewRelayEngine_NoKeywords(t *testing.T) {
	conf := engineConfig()
	conf.Relay.Keywords = []string{""}
	topo := models.NewTopology([]models.FeedID{srcFeed}, []models.FeedID{dstA})

	_, err := NewRelayEngine(NewFilterConfig(conf), topo, models.NewFingerprintStore(0, 0), models.NewRelayMap(), nil, nil, &testutil.MockLogger{}, testutil.NewMockMetrics())
	assert.ErrorIs(t, err, models.ErrNoKeywords)
}

func TestNewRelayEngine_NoDestinations(t *testing.T) {
	conf := engineConfig()
	topo := models.NewTopology([]models.FeedID{srcFeed}, nil)

	_, err := NewRelayEngine(NewFilterConfig(conf), topo, models.NewFingerprintStore(0, 0), models.NewRelayMap(), nil, nil, &testutil.MockLogger{}, testutil.NewMockMetrics())
	assert.ErrorIs(t, err, ErrNoDestinations)
}

func TestRelayEngine_NewMessageFansOut(t *testing.T) {
	f := newFixture(t)
	f.engine.Handle(context.Background(), models.NewMessageEvent(message(1, "BTC to the moon")))

	require.Equal(t, 2, f.transport.SendCount())
	assert.Equal(t, dstA, f.transport.Sends[0].Dest)
	assert.Equal(t, dstB, f.transport.Sends[1].Dest)

	copies, ok := f.relays.Get(key(1))
	require.True(t, ok)
	assert.Len(t, copies, 2)
	assert.Equal(t, int64(1), f.engine.Stats().Relayed)
	assert.Equal(t, 1, f.metrics.Event("new", outcomeRelayed))
	assert.Equal(t, 1, f.checkpoints.Count())
}

func TestRelayEngine_Idempotence(t *testing.T) {
	f := newFixture(t)
	msg := message(1, "BTC news")

	f.engine.Handle(context.Background(), models.NewMessageEvent(msg))
	f.engine.Handle(context.Background(), models.NewMessageEvent(msg))

	assert.Equal(t, 2, f.transport.SendCount())
	assert.Equal(t, 1, f.relays.Len())
	assert.Equal(t, int64(1), f.engine.Stats().Duplicates)
}

func TestRelayEngine_SameContentSameMinuteIsDuplicate(t *testing.T) {
	f := newFixture(t)
	first := message(1, "BTC news")
	second := message(2, "BTC news")
	second.Date = baseDate.Add(20 * time.Second)

	f.engine.Handle(context.Background(), models.NewMessageEvent(first))
	f.engine.Handle(context.Background(), models.NewMessageEvent(second))

	assert.Equal(t, 2, f.transport.SendCount())
	_, ok := f.relays.Get(key(2))
	assert.False(t, ok)
}

func TestRelayEngine_FilteredMessageStillFingerprinted(t *testing.T) {
	f := newFixture(t)
	msg := message(1, "weather report")

	f.engine.Handle(context.Background(), models.NewMessageEvent(msg))

	assert.Equal(t, 0, f.transport.SendCount())
	assert.Equal(t, 0, f.relays.Len())
	assert.True(t, f.fingerprints.Contains(models.ComputeFingerprint(msg)))
	assert.Equal(t, int64(1), f.engine.Stats().Filtered)
}

func TestRelayEngine_IgnoresUnmonitoredFeed(t *testing.T) {
	f := newFixture(t)
	msg := message(1, "BTC")
	msg.Feed = 777

	f.engine.Handle(context.Background(), models.NewMessageEvent(msg))

	assert.Equal(t, 0, f.transport.SendCount())
	assert.Equal(t, 0, f.fingerprints.Len())
	assert.Equal(t, int64(1), f.engine.Stats().Ignored)
}

func TestRelayEngine_SkipsCopiesInMonitoredDestination(t *testing.T) {
	conf := engineConfig()
	fake := testutil.NewFakeTransport()
	logger := &testutil.MockLogger{}
	metrics := testutil.NewMockMetrics()
	relays := models.NewRelayMap()
	policy := dispatch.NewPolicy(conf, fake, logger, metrics)
	topo := models.NewTopology([]models.FeedID{srcFeed, dstA}, []models.FeedID{dstA, dstB})
	engine, err := NewRelayEngine(NewFilterConfig(conf), topo, models.NewFingerprintStore(0, 0), relays, policy, &testutil.MockCheckpointer{}, logger, metrics)
	require.NoError(t, err)

	engine.Handle(context.Background(), models.NewMessageEvent(message(1, "BTC breakout")))
	require.Equal(t, 2, fake.SendCount())
	copies, ok := relays.Get(key(1))
	require.True(t, ok)

	text := "BTC breakout"
	echo := &models.Message{Feed: copies[0].Feed, ID: copies[0].Message, Text: &text, Date: baseDate.Add(3 * time.Minute)}
	engine.Handle(context.Background(), models.NewMessageEvent(echo))

	assert.Equal(t, 2, fake.SendCount())
	assert.Equal(t, 1, relays.Len())
	assert.Equal(t, int64(1), engine.Stats().Ignored)

	native := &models.Message{Feed: dstA, ID: 5, Text: &text, Date: baseDate.Add(3 * time.Minute)}
	engine.Handle(context.Background(), models.NewMessageEvent(native))
	assert.Equal(t, 4, fake.SendCount())
}

func TestRelayEngine_PartialFanOutKeepsSuccessfulCopies(t *testing.T) {
	f := newFixture(t)
	f.transport.SendFn = func(dest models.FeedID, _ *models.Message) (models.MessageID, error) {
		if dest == dstA {
			return 0, &transport.PermanentError{Op: "send", Err: errors.New("chat write forbidden")}
		}
		return 55, nil
	}

	f.engine.Handle(context.Background(), models.NewMessageEvent(message(1, "ETH")))

	copies, ok := f.relays.Get(key(1))
	require.True(t, ok)
	assert.Equal(t, []models.Copy{{Feed: dstB, Message: 55}}, copies)
	assert.Equal(t, int64(1), f.engine.Stats().CopyErrors)
}

func TestRelayEngine_AllDestinationsFail(t *testing.T) {
	f := newFixture(t)
	f.transport.SendFn = func(models.FeedID, *models.Message) (models.MessageID, error) {
		return 0, &transport.PermanentError{Op: "send", Err: errors.New("down")}
	}

	f.engine.Handle(context.Background(), models.NewMessageEvent(message(1, "BTC")))

	assert.Equal(t, 0, f.relays.Len())
	assert.Equal(t, int64(1), f.engine.Stats().Undelivered)
	assert.Equal(t, 1, f.fingerprints.Len())
}

func TestRelayEngine_EditPropagation(t *testing.T) {
	f := newFixture(t)
	f.engine.Handle(context.Background(), models.NewMessageEvent(message(1, "BTC up")))

	f.engine.Handle(context.Background(), models.EditedMessageEvent(message(1, "BTC up 5%")))

	require.Equal(t, 2, f.transport.EditCount())
	assert.Equal(t, "BTC up 5%", f.transport.Edits[0].Text)
	assert.Equal(t, 0, f.transport.DeleteCount())
	_, ok := f.relays.Get(key(1))
	assert.True(t, ok)
	assert.Equal(t, int64(1), f.engine.Stats().Edited)
}

func TestRelayEngine_EditFailureKeepsCopy(t *testing.T) {
	f := newFixture(t)
	f.engine.Handle(context.Background(), models.NewMessageEvent(message(1, "BTC up")))
	f.transport.EditFn = func(c models.Copy, _ *models.Message) error {
		if c.Feed == dstA {
			return &transport.PermanentError{Op: "edit", Err: errors.New("message not modified")}
		}
		return nil
	}

	f.engine.Handle(context.Background(), models.EditedMessageEvent(message(1, "BTC down")))

	copies, ok := f.relays.Get(key(1))
	require.True(t, ok)
	assert.Len(t, copies, 2)
}

func TestRelayEngine_EditOfUnmappedMessageIsNoop(t *testing.T) {
	f := newFixture(t)
	f.engine.Handle(context.Background(), models.EditedMessageEvent(message(9, "BTC")))

	assert.Equal(t, 0, f.transport.EditCount())
	assert.Equal(t, 0, f.transport.SendCount())
	assert.Equal(t, 1, f.metrics.Event("edited", outcomeUnmapped))
}

func TestRelayEngine_CascadeRetraction(t *testing.T) {
	f := newFixture(t)
	f.engine.Handle(context.Background(), models.NewMessageEvent(message(1, "BTC pump")))

	f.engine.Handle(context.Background(), models.EditedMessageEvent(message(1, "nothing to see")))

	assert.Equal(t, 0, f.transport.EditCount())
	assert.Equal(t, 2, f.transport.DeleteCount())
	_, ok := f.relays.Get(key(1))
	assert.False(t, ok)
	assert.Equal(t, int64(1), f.engine.Stats().Retracted)
}

func TestRelayEngine_DeletePropagation(t *testing.T) {
	f := newFixture(t)
	f.engine.Handle(context.Background(), models.NewMessageEvent(message(1, "BTC")))
	f.transport.DeleteFn = func(c models.Copy) error {
		if c.Feed == dstB {
			return &transport.PermanentError{Op: "delete", Err: errors.New("message to delete not found")}
		}
		return nil
	}

	f.engine.Handle(context.Background(), models.DeletedMessageEvent(srcFeed, 1))

	assert.Equal(t, 2, f.transport.DeleteCount())
	_, ok := f.relays.Get(key(1))
	assert.False(t, ok)
	assert.Equal(t, int64(1), f.engine.Stats().Deleted)
}

func TestRelayEngine_DeleteOfUnmappedMessageIsNoop(t *testing.T) {
	f := newFixture(t)
	f.engine.Handle(context.Background(), models.DeletedMessageEvent(srcFeed, 42))

	assert.Equal(t, 0, f.transport.DeleteCount())
	assert.Equal(t, 0, f.checkpoints.Count())
}

func TestRelayEngine_EventsAfterRetireAreNoops(t *testing.T) {
	f := newFixture(t)
	f.engine.Handle(context.Background(), models.NewMessageEvent(message(1, "BTC")))
	f.engine.Handle(context.Background(), models.DeletedMessageEvent(srcFeed, 1))

	f.engine.Handle(context.Background(), models.EditedMessageEvent(message(1, "BTC again")))
	f.engine.Handle(context.Background(), models.DeletedMessageEvent(srcFeed, 1))

	assert.Equal(t, 0, f.transport.EditCount())
	assert.Equal(t, 2, f.transport.DeleteCount())
}

func TestRelayEngine_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	events := make(chan models.Event, 4)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.engine.Run(ctx, events) }()

	events <- models.NewMessageEvent(message(1, "BTC"))
	require.Eventually(t, func() bool { return f.engine.Stats().Received == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
	assert.Equal(t, 1, f.relays.Len())
}

func TestRelayEngine_RunStopsOnClosedStream(t *testing.T) {
	f := newFixture(t)
	events := make(chan models.Event)
	close(events)
	assert.NoError(t, f.engine.Run(context.Background(), events))
}

func TestRelayEngine_RestartDurability(t *testing.T) {
	dir := t.TempDir()
	comp, err := persistence.NewZstdCompressor()
	require.NoError(t, err)
	defer comp.Close()

	conf := engineConfig()
	conf.Persistence = structures.Persistence{Driver: persistence.DriverFile, Dir: dir, SaveInterval: time.Minute}
	logger := &testutil.MockLogger{}

	gw, err := persistence.NewFileGateway(dir, comp, logger)
	require.NoError(t, err)
	f := newFixture(t)
	scheduler := persistence.NewScheduler(conf, logger, gw, f.fingerprints, f.relays, testutil.NewMockMetrics())

	msg := message(1, "BTC breakout")
	f.engine.Handle(context.Background(), models.NewMessageEvent(msg))
	require.NoError(t, scheduler.Persist())

	// new process
	fps := models.NewFingerprintStore(0, 0)
	relays := models.NewRelayMap()
	gw2, err := persistence.NewFileGateway(dir, comp, logger)
	require.NoError(t, err)
	require.NoError(t, persistence.NewScheduler(conf, logger, gw2, fps, relays, testutil.NewMockMetrics()).Restore())
	restarted := newFixtureWithStores(t, fps, relays)

	assert.True(t, fps.Contains(models.ComputeFingerprint(msg)))

	restarted.engine.Handle(context.Background(), models.NewMessageEvent(msg))
	assert.Equal(t, 0, restarted.transport.SendCount())

	restarted.engine.Handle(context.Background(), models.EditedMessageEvent(message(1, "BTC breakout confirmed")))
	assert.Equal(t, 2, restarted.transport.EditCount())

	restarted.engine.Handle(context.Background(), models.DeletedMessageEvent(srcFeed, 1))
	assert.Equal(t, 2, restarted.transport.DeleteCount())
	assert.Equal(t, 0, relays.Len())
}
