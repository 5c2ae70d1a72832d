package persistence

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"forwarder/internal/models"
	"forwarder/internal/persistence/interfaces"
	"forwarder/internal/providers"
	"forwarder/internal/structures"
)

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Gateway stores the fingerprint set and the relay map as two independent
// records. Loading a record that was never saved yields an empty value.
type Gateway interface {
	LoadFingerprints(ctx context.Context) ([]models.Fingerprint, error)
	SaveFingerprints(ctx context.Context, fps []models.Fingerprint) error
	LoadRelayMap(ctx context.Context) (map[models.RelayKey][]models.Copy, error)
	SaveRelayMap(ctx context.Context, entries map[models.RelayKey][]models.Copy) error
	Close() error
}

func NewGateway(conf *structures.Config, compressor interfaces.CompressorInterface, logger providers.Logger) (Gateway, error) {
	switch conf.Persistence.Driver {
	case DriverFile, "":
		return NewFileGateway(conf.Persistence.Dir, compressor, logger)
	case DriverSQLite:
		return NewSQLiteGateway(conf.Persistence.SQLitePath, logger)
	case DriverRedis:
		return NewRedisGateway(conf.Persistence.Redis, compressor, logger), nil
	default:
		return nil, fmt.Errorf("unknown persistence driver %q", conf.Persistence.Driver)
	}
}

func encodeSnapshot(compressor interfaces.CompressorInterface, v any) ([]byte, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return compressor.Compress(jsonData)
}

func decodeFingerprints(compressor interfaces.CompressorInterface, data []byte, logger providers.Logger) ([]models.Fingerprint, error) {
	raw, err := compressor.Decompress(data)
	if err != nil {
		return nil, err
	}

	var snap models.FingerprintSnapshot
	if err := json.Unmarshal(raw, &snap); err == nil && snap.Version > 0 {
		if snap.Version > models.SnapshotVersion {
			return nil, fmt.Errorf("fingerprint snapshot version %d is newer than supported %d", snap.Version, models.SnapshotVersion)
		}
		return snap.Fingerprints, nil
	}

	// unversioned list of digests
	var list []models.Fingerprint
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode fingerprints: %w", err)
	}
	logger.Warnf(providers.TypeStore, "Loaded unversioned fingerprint snapshot with %d entries", len(list))
	return list, nil
}

func decodeRelayMap(compressor interfaces.CompressorInterface, data []byte) (map[models.RelayKey][]models.Copy, error) {
	raw, err := compressor.Decompress(data)
	if err != nil {
		return nil, err
	}
	var snap models.RelayMapSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode relay map: %w", err)
	}
	if snap.Version > models.SnapshotVersion {
		return nil, fmt.Errorf("relay map snapshot version %d is newer than supported %d", snap.Version, models.SnapshotVersion)
	}
	return snap.ToMap(), nil
}
