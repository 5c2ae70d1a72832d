package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"forwarder/internal/models"
	"forwarder/internal/persistence/interfaces"
	"forwarder/internal/providers"
	"forwarder/internal/structures"
)

const defaultRedisPrefix = "forwarder"

// RedisGateway stores each record as one compressed JSON value under
// <prefix>:fingerprints and <prefix>:relay_map.
type RedisGateway struct {
	client     *redis.Client
	prefix     string
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewRedisGateway(conf structures.RedisConfig, compressor interfaces.CompressorInterface, logger providers.Logger) *RedisGateway {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	return NewRedisGatewayWithClient(client, conf.Prefix, compressor, logger)
}

func NewRedisGatewayWithClient(client *redis.Client, prefix string, compressor interfaces.CompressorInterface, logger providers.Logger) *RedisGateway {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisGateway{
		client:     client,
		prefix:     prefix,
		compressor: compressor,
		logger:     logger,
	}
}

func (r *RedisGateway) key(name string) string {
	return r.prefix + ":" + name
}

func (r *RedisGateway) LoadFingerprints(ctx context.Context) ([]models.Fingerprint, error) {
	data, err := r.get(ctx, "fingerprints")
	if err != nil || data == nil {
		return nil, err
	}
	return decodeFingerprints(r.compressor, data, r.logger)
}

func (r *RedisGateway) SaveFingerprints(ctx context.Context, fps []models.Fingerprint) error {
	data, err := encodeSnapshot(r.compressor, models.FingerprintSnapshot{
		Version:      models.SnapshotVersion,
		Fingerprints: fps,
	})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key("fingerprints"), data, 0).Err()
}

func (r *RedisGateway) LoadRelayMap(ctx context.Context) (map[models.RelayKey][]models.Copy, error) {
	data, err := r.get(ctx, "relay_map")
	if err != nil || data == nil {
		return map[models.RelayKey][]models.Copy{}, err
	}
	return decodeRelayMap(r.compressor, data)
}

func (r *RedisGateway) SaveRelayMap(ctx context.Context, entries map[models.RelayKey][]models.Copy) error {
	data, err := encodeSnapshot(r.compressor, models.NewRelayMapSnapshot(entries))
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key("relay_map"), data, 0).Err()
}

func (r *RedisGateway) get(ctx context.Context, name string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (r *RedisGateway) Close() error {
	return r.client.Close()
}
