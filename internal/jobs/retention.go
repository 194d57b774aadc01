package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/services"
)

// Heroes older than this are swept away together with their provider
// images.
const retentionAge = 30 * 24 * time.Hour

type RetentionSweep struct {
	cron   *cron.Cron
	heroes *services.HeroService
	images *services.AIImageService
	log    zerolog.Logger
}

func NewRetentionSweep(heroes *services.HeroService, images *services.AIImageService, logger zerolog.Logger) *RetentionSweep {
	return &RetentionSweep{
		cron:   cron.New(),
		heroes: heroes,
		images: images,
		log:    logger,
	}
}

func (s *RetentionSweep) Start() error {
	if _, err := s.cron.AddFunc("@daily", s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *RetentionSweep) Stop() {
	s.cron.Stop()
}

func (s *RetentionSweep) sweep() {
	cutoff := time.Now().Add(-retentionAge)

	expired, err := s.heroes.ListOlderThan(cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("retention sweep could not list heroes")
		return
	}
	if len(expired) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	removed := 0
	for _, hero := range expired {
		// Image deletion is best-effort; the row goes regardless.
		if !s.images.DeleteImage(ctx, hero.ImageID, services.ImageKindGenerated, 3) {
			s.log.Warn().Str("image", hero.ImageID).Msg("provider image not removed during sweep")
		}
		if _, err := s.heroes.Delete(hero.ID); err != nil {
			s.log.Error().Err(err).Uint("hero", hero.ID).Msg("retention sweep delete failed")
			continue
		}
		removed++
	}

	s.log.Info().Int("removed", removed).Time("cutoff", cutoff).Msg("retention sweep finished")
}
