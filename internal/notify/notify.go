// Package notify delivers out-of-band alerts to users.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"shift-code-redeemer/internal/model"
)

// Notifier alerts a user that redemption stalled on their account and needs
// an action on their side.
type Notifier interface {
	// MustLaunchGame tells the user the portal refuses further redemptions
	// until they launch an eligible title once.
	MustLaunchGame(ctx context.Context, user *model.User) error
}

// LogNotifier writes notifications to the service log. It is the default
// delivery channel when no external one is configured.
type LogNotifier struct{}

// MustLaunchGame implements Notifier.
func (LogNotifier) MustLaunchGame(_ context.Context, user *model.User) error {
	log.Warn().
		Int64("user_id", user.ID).
		Str("email", user.PortalEmail).
		Msg("portal requires launching a game before more codes can be redeemed")
	return nil
}
