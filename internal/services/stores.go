package services

import (
	"forwarder/internal/models"
	"forwarder/internal/structures"
)

func NewFingerprintStore(conf *structures.Config) *models.FingerprintStore {
	return models.NewFingerprintStore(conf.Store.FingerprintCapacity, conf.Store.FingerprintTrimTo)
}

func NewRelayMap() *models.RelayMap {
	return models.NewRelayMap()
}
