// Package redeem drives the per-user redemption workflow against the reward
// portal and records the outcomes.
package redeem

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shift-code-redeemer/internal/model"
	"shift-code-redeemer/internal/notify"
	"shift-code-redeemer/internal/portal"
)

// Store interfaces are kept narrow so the orchestrator can be exercised with
// in-memory fakes.

type codeStore interface {
	EligibleForUser(ctx context.Context, userID int64) ([]*model.Code, error)
	Invalidate(ctx context.Context, id int64) error
	IncrementAttempts(ctx context.Context, id int64) error
}

type attemptStore interface {
	Record(ctx context.Context, userID, codeID int64, game, platform string, success bool) (bool, error)
	Exists(ctx context.Context, userID, codeID int64, game, platform string) (bool, error)
}

type preferenceStore interface {
	ListByUser(ctx context.Context, userID int64) ([]*model.GamePreference, error)
}

type userStore interface {
	SetNotifyMustLaunchGame(ctx context.Context, id int64) (bool, error)
}

// Session is the portal interaction surface the orchestrator drives. One
// session belongs to one user and must not be shared.
type Session interface {
	Login(ctx context.Context, email, password string) error
	SubmitCode(ctx context.Context, code string) (portal.Outcome, error)
	DiscoverEligibleGames(ctx context.Context) ([]string, error)
	RedeemFor(ctx context.Context, platform string) (portal.Outcome, error)
	Close(ctx context.Context) error
}

// RunResult summarises one user's redemption run.
type RunResult struct {
	RunID       string
	Submitted   int
	Recorded    int
	Invalidated int
	Aborted     bool
}

// Orchestrator executes redemption runs. It is stateless between runs; all
// durable state lives in the stores.
type Orchestrator struct {
	codes    codeStore
	attempts attemptStore
	prefs    preferenceStore
	users    userStore
	notifier notify.Notifier
}

// NewOrchestrator creates a new Orchestrator instance.
func NewOrchestrator(codes codeStore, attempts attemptStore, prefs preferenceStore, users userStore, notifier notify.Notifier) *Orchestrator {
	return &Orchestrator{
		codes:    codes,
		attempts: attempts,
		prefs:    prefs,
		users:    users,
		notifier: notifier,
	}
}

// HasEligibleCodes reports whether a run would have any work for the user.
// Callers can skip opening a portal session when it returns false.
func (o *Orchestrator) HasEligibleCodes(ctx context.Context, userID int64) (bool, error) {
	codes, err := o.codes.EligibleForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load eligible codes: %w", err)
	}
	return len(codes) > 0, nil
}

// Run walks the user's eligible codes. When nothing is eligible the run ends
// before touching the portal at all. A login failure aborts before any code
// is submitted. The run stops early on outcomes that poison the whole
// session; per-code problems only skip that code.
func (o *Orchestrator) Run(ctx context.Context, sess Session, user *model.User, password string) (*RunResult, error) {
	res := &RunResult{RunID: uuid.NewString()}
	logger := log.With().
		Str("run_id", res.RunID).
		Int64("user_id", user.ID).
		Logger()

	codes, err := o.codes.EligibleForUser(ctx, user.ID)
	if err != nil {
		return res, fmt.Errorf("failed to load eligible codes: %w", err)
	}
	if len(codes) == 0 {
		logger.Debug().Msg("no eligible codes, skipping login")
		return res, nil
	}

	if err := sess.Login(ctx, user.PortalEmail, password); err != nil {
		return res, fmt.Errorf("failed to log in user %d: %w", user.ID, err)
	}

	prefs, err := o.prefs.ListByUser(ctx, user.ID)
	if err != nil {
		return res, fmt.Errorf("failed to load preferences: %w", err)
	}
	logger.Info().Int("codes", len(codes)).Msg("starting redemption run")

	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		abort, err := o.redeemCode(ctx, sess, user, code, prefs, res, logger)
		if err != nil {
			return res, err
		}
		if abort {
			res.Aborted = true
			logger.Warn().Str("code", code.Code).Msg("run aborted")
			return res, nil
		}
	}

	logger.Info().
		Int("submitted", res.Submitted).
		Int("recorded", res.Recorded).
		Int("invalidated", res.Invalidated).
		Msg("redemption run finished")
	return res, nil
}

// redeemCode submits one code and walks the portal's discovered game list in
// the order the portal shows it, redeeming for every preference the listing
// covers. Returns abort=true for outcomes that end the session.
func (o *Orchestrator) redeemCode(ctx context.Context, sess Session, user *model.User, code *model.Code, prefs []*model.GamePreference, res *RunResult, logger zerolog.Logger) (bool, error) {
	if err := o.codes.IncrementAttempts(ctx, code.ID); err != nil {
		// Counter is informational only.
		logger.Warn().Err(err).Int64("code_id", code.ID).Msg("failed to bump attempt counter")
	}

	outcome, err := sess.SubmitCode(ctx, code.Code)
	if err != nil {
		return true, fmt.Errorf("failed to submit code %s: %w", code.Code, err)
	}
	res.Submitted++
	logger.Debug().Str("code", code.Code).Stringer("outcome", outcome).Msg("code submitted")

	switch outcome {
	case portal.OutcomeSuccess:
		// Fall through to discovery.
	case portal.OutcomeInvalidCode, portal.OutcomeCodeExpired:
		return false, o.invalidate(ctx, code, res, logger)
	case portal.OutcomeMustLaunchTitleFirst:
		o.flagMustLaunch(ctx, user, logger)
		return true, nil
	case portal.OutcomeUnexpectedPortalError:
		return true, nil
	default:
		// Nothing recorded; the code stays eligible for a later run.
		logger.Info().Str("code", code.Code).Stringer("outcome", outcome).Msg("submission not redeemable now")
		return false, nil
	}

	games, err := sess.DiscoverEligibleGames(ctx)
	if err != nil {
		return true, fmt.Errorf("failed to discover games for code %s: %w", code.Code, err)
	}
	if len(games) == 0 {
		logger.Info().Str("code", code.Code).Msg("portal listed no games for code")
		return false, nil
	}

	for _, title := range games {
		matched := matchPreferences(prefs, title)
		if len(matched) == 0 {
			logger.Info().Str("code", code.Code).Str("game", title).
				Stringer("outcome", portal.OutcomeGameNotFound).
				Msg("no preference for portal-listed game")
			continue
		}

		for _, pref := range matched {
			recorded, err := o.attempts.Exists(ctx, user.ID, code.ID, pref.Game, pref.Platform)
			if err != nil {
				return false, fmt.Errorf("failed to check recorded attempt: %w", err)
			}
			if recorded {
				continue
			}

			abort, stop, err := o.redeemForPlatform(ctx, sess, user, code, pref, res, logger)
			if abort || err != nil {
				return abort, err
			}
			if stop {
				return false, nil
			}
		}
	}

	return false, nil
}

// redeemForPlatform clicks one redeem action and applies the outcome. stop
// means this code is finished (it was invalidated); abort ends the run.
func (o *Orchestrator) redeemForPlatform(ctx context.Context, sess Session, user *model.User, code *model.Code, pref *model.GamePreference, res *RunResult, logger zerolog.Logger) (abort, stop bool, err error) {
	outcome, err := sess.RedeemFor(ctx, pref.Platform)
	if err != nil {
		return true, false, fmt.Errorf("failed to redeem code %s for %s: %w", code.Code, pref.Platform, err)
	}
	logger.Info().
		Str("code", code.Code).
		Str("game", pref.Game).
		Str("platform", pref.Platform).
		Stringer("outcome", outcome).
		Msg("redeem attempted")

	switch outcome {
	case portal.OutcomeSuccess, portal.OutcomeAlreadyRedeemed:
		return false, false, o.record(ctx, user, code, pref, true, res)
	case portal.OutcomeNotAvailableForAccount, portal.OutcomePlatformOptionNotFound:
		return false, false, o.record(ctx, user, code, pref, false, res)
	case portal.OutcomeInvalidCode, portal.OutcomeCodeExpired:
		return false, true, o.invalidate(ctx, code, res, logger)
	case portal.OutcomeMustLaunchTitleFirst:
		o.flagMustLaunch(ctx, user, logger)
		return true, false, nil
	case portal.OutcomeUnexpectedPortalError:
		return true, false, nil
	default:
		// RedeemFailed: transient, leave the tuple unrecorded for a retry.
		return false, false, nil
	}
}

func (o *Orchestrator) record(ctx context.Context, user *model.User, code *model.Code, pref *model.GamePreference, success bool, res *RunResult) error {
	written, err := o.attempts.Record(ctx, user.ID, code.ID, pref.Game, pref.Platform, success)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	if written {
		res.Recorded++
	}
	return nil
}

func (o *Orchestrator) invalidate(ctx context.Context, code *model.Code, res *RunResult, logger zerolog.Logger) error {
	if err := o.codes.Invalidate(ctx, code.ID); err != nil {
		return fmt.Errorf("failed to invalidate code %s: %w", code.Code, err)
	}
	res.Invalidated++
	logger.Info().Str("code", code.Code).Msg("code invalidated")
	return nil
}

// flagMustLaunch raises the user's notify flag and fires a notification only
// on the false -> true transition.
func (o *Orchestrator) flagMustLaunch(ctx context.Context, user *model.User, logger zerolog.Logger) {
	changed, err := o.users.SetNotifyMustLaunchGame(ctx, user.ID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to set notify flag")
		return
	}
	if changed && o.notifier != nil {
		if err := o.notifier.MustLaunchGame(ctx, user); err != nil {
			logger.Error().Err(err).Msg("failed to notify user")
		}
	}
}

// matchPreferences returns the preferences whose game the portal title
// covers. Portal titles can be longer than the stored ones, e.g.
// "Tiny Tina's Wonderlands" for "Wonderlands".
func matchPreferences(prefs []*model.GamePreference, title string) []*model.GamePreference {
	lower := strings.ToLower(title)
	var matched []*model.GamePreference
	for _, p := range prefs {
		if strings.Contains(lower, strings.ToLower(p.Game)) {
			matched = append(matched, p)
		}
	}
	return matched
}
