// Package portal drives the reward portal through an abstract automation
// agent. The portal speaks only through rendered page text; this package
// turns that free text into the closed Outcome taxonomy the orchestrator
// works with.
package portal

import "strings"

// Outcome is the classification of a portal response.
type Outcome int

const (
	// OutcomeSuccess means the redemption action completed with none of the
	// failure markers present.
	OutcomeSuccess Outcome = iota
	// OutcomeInvalidCode means the portal's invalid-code hint is displayed.
	// Code-level: the code is permanently unredeemable for everyone.
	OutcomeInvalidCode
	// OutcomeCodeExpired means the page carries the expiry notice. Code-level.
	OutcomeCodeExpired
	// OutcomeMustLaunchTitleFirst means the portal wants the user to launch
	// an eligible title before redeeming anything else. Session-aborting.
	OutcomeMustLaunchTitleFirst
	// OutcomeUnexpectedPortalError means the portal reported an internal
	// error. Session-aborting.
	OutcomeUnexpectedPortalError
	// OutcomeRedeemFailed is the generic failure notice. Terminal for this
	// attempt only; the code stays valid and may be retried later.
	OutcomeRedeemFailed
	// OutcomeAlreadyRedeemed means this account already used the code.
	// Bookkept as success: the code works, it is just spent here.
	OutcomeAlreadyRedeemed
	// OutcomeNotAvailableForAccount means the code is valid but not entitled
	// to this account or platform.
	OutcomeNotAvailableForAccount
	// OutcomePlatformOptionNotFound means the redeem action for the requested
	// platform was not present on the page.
	OutcomePlatformOptionNotFound
	// OutcomeGameNotFound means none of the portal-listed games match any of
	// the user's configured preferences.
	OutcomeGameNotFound
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalidCode:
		return "invalid_code"
	case OutcomeCodeExpired:
		return "code_expired"
	case OutcomeMustLaunchTitleFirst:
		return "must_launch_title_first"
	case OutcomeUnexpectedPortalError:
		return "unexpected_portal_error"
	case OutcomeRedeemFailed:
		return "redeem_failed"
	case OutcomeAlreadyRedeemed:
		return "already_redeemed"
	case OutcomeNotAvailableForAccount:
		return "not_available_for_account"
	case OutcomePlatformOptionNotFound:
		return "platform_option_not_found"
	case OutcomeGameNotFound:
		return "game_not_found"
	default:
		return "unknown"
	}
}

// AbortsSession reports whether the outcome ends the whole run for the user.
func (o Outcome) AbortsSession() bool {
	return o == OutcomeMustLaunchTitleFirst || o == OutcomeUnexpectedPortalError
}

// InvalidatesCode reports whether the outcome marks the code permanently
// unredeemable store-wide.
func (o Outcome) InvalidatesCode() bool {
	return o == OutcomeInvalidCode || o == OutcomeCodeExpired
}

// Free-text markers the portal embeds in its pages.
const (
	markerExpired      = "This SHiFT code has expired"
	markerFailed       = "Failed to redeem your SHiFT code"
	markerAlready      = "This SHiFT code has already been redeemed"
	markerNotAvailable = "This code is not available for your account"
	markerMustLaunch   = "To continue to redeem SHiFT codes, please launch a SHiFT-enabled title first!"
	markerPortalError  = "An unexpected error has occurred"
)

// PageView is the observed state of a portal page after an action.
type PageView struct {
	// Text is the rendered page text.
	Text string
	// InvalidHintVisible is true when the invalid-code hint element is
	// displayed. The hint exists hidden on every page, so visibility is
	// reported by the agent rather than scraped from text.
	InvalidHintVisible bool
	// PlatformOptionMissing is true when the redeem action for the requested
	// platform was absent from the page.
	PlatformOptionMissing bool
}

// Classify maps an observed page to an outcome. Multiple markers can co-occur
// on one page; the checks run in fixed priority order and the first match
// wins. Session-aborting conditions rank above the per-attempt failures.
func Classify(view PageView) Outcome {
	switch {
	case view.InvalidHintVisible:
		return OutcomeInvalidCode
	case strings.Contains(view.Text, markerExpired):
		return OutcomeCodeExpired
	case strings.Contains(view.Text, markerMustLaunch):
		return OutcomeMustLaunchTitleFirst
	case strings.Contains(view.Text, markerPortalError):
		return OutcomeUnexpectedPortalError
	case strings.Contains(view.Text, markerFailed):
		return OutcomeRedeemFailed
	case strings.Contains(view.Text, markerAlready):
		return OutcomeAlreadyRedeemed
	case strings.Contains(view.Text, markerNotAvailable):
		return OutcomeNotAvailableForAccount
	case view.PlatformOptionMissing:
		return OutcomePlatformOptionNotFound
	default:
		return OutcomeSuccess
	}
}
