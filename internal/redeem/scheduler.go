package redeem

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"shift-code-redeemer/internal/model"
)

type schedulerUserStore interface {
	List(ctx context.Context) ([]*model.User, error)
}

type credentialDecrypter interface {
	Decrypt(ciphertext []byte) ([]byte, error)
}

// SessionFactory opens a fresh portal session with its own browser context.
type SessionFactory func(ctx context.Context) (Session, error)

// Scheduler sweeps all registered users, running each user's redemption in
// its own portal session with bounded concurrency.
type Scheduler struct {
	users         schedulerUserStore
	orchestrator  *Orchestrator
	newSession    SessionFactory
	secrets       credentialDecrypter
	maxConcurrent int
}

// NewScheduler creates a new Scheduler instance. maxConcurrent bounds the
// number of simultaneously open portal sessions.
func NewScheduler(users schedulerUserStore, orchestrator *Orchestrator, newSession SessionFactory, secrets credentialDecrypter, maxConcurrent int) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		users:         users,
		orchestrator:  orchestrator,
		newSession:    newSession,
		secrets:       secrets,
		maxConcurrent: maxConcurrent,
	}
}

// RunAll performs one sweep over all users. One user's failure never blocks
// the others; only context cancellation stops the sweep.
func (s *Scheduler) RunAll(ctx context.Context) error {
	users, err := s.users.List(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for _, user := range users {
		g.Go(func() error {
			if err := s.runUser(ctx, user); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Error().Err(err).Int64("user_id", user.ID).Msg("redemption run failed")
			}
			return nil
		})
	}

	return g.Wait()
}

// Start sweeps immediately and then on every tick until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.RunAll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("redemption sweep failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runUser(ctx context.Context, user *model.User) error {
	hasWork, err := s.orchestrator.HasEligibleCodes(ctx, user.ID)
	if err != nil {
		return err
	}
	if !hasWork {
		// No point opening a browser session for an idle user.
		log.Debug().Int64("user_id", user.ID).Msg("no eligible codes")
		return nil
	}

	password, err := s.secrets.Decrypt(user.PortalPassword)
	if err != nil {
		return err
	}

	sess, err := s.newSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		// Release the browser context even when the sweep was cancelled.
		if err := sess.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to close portal session")
		}
	}()

	_, err = s.orchestrator.Run(ctx, sess, user, string(password))
	return err
}
