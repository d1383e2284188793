package utils

import (
	"fmt"

	"coursehub/logger"

	"github.com/robfig/cron/v3"
)

// StalePurger is a cache that can drop its expired entries.
type StalePurger interface {
	PurgeStale() int
	Len() int
}

// StartCacheSweep registers a job on c that purges expired entries of
// target on the given cron spec.
func StartCacheSweep(c *cron.Cron, spec, name string, target StalePurger) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		removed := target.PurgeStale()
		logger.Debug().
			Str("cache", name).
			Int("removed", removed).
			Int("remaining", target.Len()).
			Msg("[CACHE-SCHEDULER] swept stale entries")
	})
	if err != nil {
		return 0, fmt.Errorf("schedule %s sweep %q: %w", name, spec, err)
	}
	logger.Info().Str("cache", name).Str("spec", spec).Msg("[CACHE-SCHEDULER] sweep scheduled")
	return id, nil
}

// InitializeCacheScheduler starts the purchases cache sweep. It returns nil
// when spec is empty.
func InitializeCacheScheduler(spec string, purchasesCache StalePurger) (*cron.Cron, error) {
	if spec == "" {
		logger.Info().Msg("[CACHE-SCHEDULER] sweep disabled, expired entries are dropped on access")
		return nil, nil
	}

	c := cron.New()
	if _, err := StartCacheSweep(c, spec, "purchases", purchasesCache); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
