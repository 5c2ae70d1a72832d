package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"forwarder/internal/models"
	"forwarder/internal/persistence/interfaces"
	"forwarder/internal/providers"
)

const (
	FingerprintsFile = "fingerprints.json.zst"
	RelayMapFile     = "relay_map.json.zst"
)

// FileManager keeps each record in its own compressed file under dir and
// replaces it with a write-to-temp, fsync, rename sequence.
type FileManager struct {
	dir        string
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileGateway(dir string, compressor interfaces.CompressorInterface, logger providers.Logger) (*FileManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create persistence dir: %w", err)
	}
	return &FileManager{
		dir:        dir,
		compressor: compressor,
		logger:     logger,
	}, nil
}

func (f *FileManager) path(name string) string {
	return filepath.Join(f.dir, name)
}

func (f *FileManager) LoadFingerprints(_ context.Context) ([]models.Fingerprint, error) {
	data, err := f.read(FingerprintsFile)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeFingerprints(f.compressor, data, f.logger)
}

func (f *FileManager) SaveFingerprints(_ context.Context, fps []models.Fingerprint) error {
	data, err := encodeSnapshot(f.compressor, models.FingerprintSnapshot{
		Version:      models.SnapshotVersion,
		Fingerprints: fps,
	})
	if err != nil {
		return err
	}
	return f.SaveToFile(f.path(FingerprintsFile), data)
}

func (f *FileManager) LoadRelayMap(_ context.Context) (map[models.RelayKey][]models.Copy, error) {
	data, err := f.read(RelayMapFile)
	if err != nil || data == nil {
		return map[models.RelayKey][]models.Copy{}, err
	}
	return decodeRelayMap(f.compressor, data)
}

func (f *FileManager) SaveRelayMap(_ context.Context, entries map[models.RelayKey][]models.Copy) error {
	data, err := encodeSnapshot(f.compressor, models.NewRelayMapSnapshot(entries))
	if err != nil {
		return err
	}
	return f.SaveToFile(f.path(RelayMapFile), data)
}

// SaveToFile atomically replaces fileName with data.
func (f *FileManager) SaveToFile(fileName string, data []byte) error {
	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

func (f *FileManager) read(name string) ([]byte, error) {
	data, err := os.ReadFile(f.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Close is a no-op; the compressor belongs to the caller.
func (f *FileManager) Close() error {
	return nil
}
