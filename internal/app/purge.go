package app

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/cache"
)

// PurgeScheduler removes file cache entries older than MaxAge on a cron
// schedule while the server runs.
type PurgeScheduler struct {
	Dir    string
	MaxAge time.Duration
	// Spec is a cron expression or descriptor such as "@hourly".
	Spec string

	cron *cron.Cron
}

// Start purges once and then schedules recurring purges.
func (s *PurgeScheduler) Start() error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(s.Spec, s.purge); err != nil {
		return fmt.Errorf("schedule cache purge %q: %w", s.Spec, err)
	}
	s.cron = c
	s.purge()
	c.Start()
	return nil
}

// Stop waits for a running purge to finish.
func (s *PurgeScheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *PurgeScheduler) purge() {
	removed, err := cache.PurgeByAge(s.Dir, s.MaxAge)
	if err != nil {
		log.Warn().Err(err).Str("dir", s.Dir).Msg("cache purge failed")
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Dur("max_age", s.MaxAge).Msg("cache purged")
	}
}
