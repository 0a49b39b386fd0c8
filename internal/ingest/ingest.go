// Package ingest periodically pulls code feeds and persists new codes.
package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"shift-code-redeemer/internal/feed"
	"shift-code-redeemer/internal/model"
)

type codeStore interface {
	Upsert(ctx context.Context, c *model.Code) (bool, error)
}

type archiveSource interface {
	Fetch(ctx context.Context) ([]feed.ArchiveEntry, error)
}

// Timeline yields the raw text of recent social posts, newest first. A nil
// Timeline disables the social source.
type Timeline interface {
	FetchPosts(ctx context.Context) ([]string, error)
}

// Service runs the ingestion loop. Malformed feed units are logged and
// dropped; they never fail a sweep.
type Service struct {
	codes    codeStore
	archive  archiveSource
	timeline Timeline
	now      func() time.Time
}

// NewService creates a new ingestion Service. archive may not be nil;
// timeline may be.
func NewService(codes codeStore, archive archiveSource, timeline Timeline) *Service {
	return &Service{
		codes:    codes,
		archive:  archive,
		timeline: timeline,
		now:      time.Now,
	}
}

// RunOnce performs one sweep over all configured sources and returns the
// number of newly stored codes.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	added, err := s.ingestArchive(ctx)
	if err != nil {
		return added, err
	}

	if s.timeline != nil {
		n, err := s.ingestTimeline(ctx)
		added += n
		if err != nil {
			return added, err
		}
	}

	return added, nil
}

// Start sweeps immediately and then on every tick until ctx is cancelled.
// Source failures are logged; only cancellation stops the loop.
func (s *Service) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		added, err := s.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("ingestion sweep failed")
		} else if added > 0 {
			log.Info().Int("added", added).Msg("new codes ingested")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) ingestArchive(ctx context.Context) (int, error) {
	entries, err := s.archive.Fetch(ctx)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, entry := range entries {
		code, ok := entry.Parse(s.now())
		if !ok {
			log.Debug().Str("code", entry.Code).Str("game", entry.Game).Msg("dropped malformed archive entry")
			continue
		}
		created, err := s.store(ctx, code)
		if err != nil {
			return added, err
		}
		if created {
			added++
		}
	}
	return added, nil
}

func (s *Service) ingestTimeline(ctx context.Context) (int, error) {
	posts, err := s.timeline.FetchPosts(ctx)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, post := range posts {
		code, ok := feed.ParsePost(post, s.now())
		if !ok {
			// Posts without a code token are routine, not errors.
			continue
		}
		created, err := s.store(ctx, code)
		if err != nil {
			return added, err
		}
		if created {
			added++
		}
	}
	return added, nil
}

func (s *Service) store(ctx context.Context, code *model.Code) (bool, error) {
	created, err := s.codes.Upsert(ctx, code)
	if err != nil {
		return false, err
	}
	if created {
		log.Info().
			Str("game", code.Game).
			Str("code", code.Code).
			Str("reward", code.Reward).
			Msg("code stored")
	}
	return created, nil
}
