package providers

import (
	"errors"
	"fmt"

	"forwarder/internal/structures"

	"github.com/gookit/validate"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

// Validate checks struct tags first, then the rules that span fields.
func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %w", v.Errors)
	}

	c := cv.conf
	switch c.Persistence.Driver {
	case "file":
		if c.Persistence.Dir == "" {
			return errors.New("invalid config: persistence.dir is required for the file driver")
		}
	case "sqlite":
		if c.Persistence.SQLitePath == "" {
			return errors.New("invalid config: persistence.sqlitePath is required for the sqlite driver")
		}
	case "redis":
		if c.Persistence.Redis.Addr == "" {
			return errors.New("invalid config: persistence.redis.addr is required for the redis driver")
		}
	}

	if c.Store.FingerprintCapacity < 0 || c.Store.FingerprintTrimTo < 0 {
		return errors.New("invalid config: store sizes must not be negative")
	}
	if c.Store.FingerprintCapacity > 0 && c.Store.FingerprintTrimTo >= c.Store.FingerprintCapacity {
		return errors.New("invalid config: store.fingerprintTrimTo must be below store.fingerprintCapacity")
	}
	if c.Dispatch.ForwardDelay < 0 || c.Dispatch.MaxRateLimitWait < 0 || c.Dispatch.CallTimeout < 0 {
		return errors.New("invalid config: dispatch durations must not be negative")
	}
	return nil
}
