package providers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"forwarder/internal/models"
	"forwarder/internal/structures"

	"github.com/spf13/viper"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	v := viper.New()
	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")

	v.SetDefault("dispatch.forwardDelay", time.Second)
	v.SetDefault("dispatch.maxRateLimitWait", 5*time.Minute)
	v.SetDefault("dispatch.callTimeout", 30*time.Second)
	v.SetDefault("store.fingerprintCapacity", models.DefaultFingerprintCapacity)
	v.SetDefault("store.fingerprintTrimTo", models.DefaultFingerprintTrimTo)
	v.SetDefault("persistence.driver", "file")
	v.SetDefault("persistence.saveInterval", 30*time.Second)
	v.SetDefault("persistence.redis.prefix", "forwarder")
	v.SetDefault("transport.timeout", 15*time.Second)
	v.SetDefault("transport.queueSize", 256)
	v.SetDefault("cache.ttl", 10*time.Minute)

	v.BindEnv("logger.level", "FWD_LOG_LEVEL")
	v.BindEnv("transport.baseURL", "FWD_TRANSPORT_URL")
	v.BindEnv("transport.token", "FWD_TRANSPORT_TOKEN")
	v.BindEnv("persistence.driver", "FWD_PERSISTENCE_DRIVER")
	v.BindEnv("persistence.saveInterval", "FWD_SAVE_INTERVAL")
	v.BindEnv("persistence.redis.addr", "FWD_REDIS_ADDR")
	v.BindEnv("persistence.redis.password", "FWD_REDIS_PASSWORD")
	v.BindEnv("dispatch.forwardDelay", "FWD_FORWARD_DELAY")

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "Forwarder"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
