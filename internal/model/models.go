// Package model defines the data models for the code redemption service.
package model

import "time"

// Code represents one redeemable promotional code gathered from a feed.
// Identity is the (game, code) pair; re-ingestion of the same pair is a no-op.
type Code struct {
	ID           int64      `db:"id"`
	Game         string     `db:"game"`
	Platform     string     `db:"platform"`
	Code         string     `db:"code"`
	Type         string     `db:"type"`
	Reward       string     `db:"reward"`
	TimeGathered *time.Time `db:"time_gathered"` // nil when the feed date could not be parsed
	Expires      *time.Time `db:"expires"`       // nil when absent or unparseable
	Attempts     int        `db:"attempts"`
	IsValid      bool       `db:"is_valid"`
	CreatedAt    time.Time  `db:"created_at"`
}

// User represents one portal account the scheduler redeems codes for.
// PortalPassword is stored encrypted; see internal/pkg/secret.
type User struct {
	ID                   int64     `db:"id"`
	PortalEmail          string    `db:"portal_email"`
	PortalPassword       []byte    `db:"portal_password"`
	NotifyMustLaunchGame bool      `db:"notify_must_launch_game"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

// GamePreference expresses which platform a user wants a game's codes
// redeemed on. The (user_id, game, platform) triple is unique.
type GamePreference struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Game      string    `db:"game"`
	Platform  string    `db:"platform"`
	CreatedAt time.Time `db:"created_at"`
}

// CodeAttempt records one redemption attempt outcome. The
// (user_id, code_id, game, platform) tuple is unique; a second attempt for
// the same tuple is never recorded.
type CodeAttempt struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	CodeID    int64     `db:"code_id"`
	Game      string    `db:"game"`
	Platform  string    `db:"platform"`
	Success   bool      `db:"success"`
	CreatedAt time.Time `db:"created_at"`
}

// Code types. SHiFT is the only kind the portal currently redeems.
const (
	CodeTypeShift = "shift"
)

// Platform values assigned during ingestion when the feed does not state one.
const (
	PlatformUniversal = "Universal"
	PlatformDefault   = "Xbox"
)

// UniversalGames lists the titles whose shift codes redeem on any platform.
func UniversalGames() []string {
	return []string{"Borderlands 3", "Wonderlands"}
}

// RewardUnknown is the reward description used when a feed unit has none.
const RewardUnknown = "Unknown"
