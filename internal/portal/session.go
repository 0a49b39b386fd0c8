package portal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrLoginFailed is returned when the portal rejects the credentials.
var ErrLoginFailed = errors.New("portal login failed")

// Page element ids and selectors on the reward portal.
const (
	fieldEmail    = "user_email"
	fieldPassword = "user_password"

	loginSubmitSelector = `form input[type="submit"]`

	codeInputField        = "shift_code_input"
	codeCheckSelector     = `#shift_code_check`
	codeInstructionsID    = "shift_code_instructions"
	eligibleGamesSelector = `#code_results h2`
)

// redeemSelector builds the selector for the redeem button of one platform.
func redeemSelector(platform string) string {
	return fmt.Sprintf(`input.redeem_button[value="Redeem for %s"]`, platform)
}

// Session is one authenticated interaction scope with the portal for one
// user. It owns an exclusive browser context: calls on one session must not
// be interleaved, sessions of different users are independent.
type Session struct {
	agent       Agent
	homeURL     string
	rewardsURL  string
	callTimeout time.Duration
}

// NewSession wraps an agent in a session bound to the portal URLs. Each
// portal round-trip is bounded by callTimeout.
func NewSession(agent Agent, homeURL, rewardsURL string, callTimeout time.Duration) *Session {
	return &Session{
		agent:       agent,
		homeURL:     homeURL,
		rewardsURL:  rewardsURL,
		callTimeout: callTimeout,
	}
}

// Login authenticates against the portal. Returns ErrLoginFailed when the
// portal keeps showing the login form after submission.
func (s *Session) Login(ctx context.Context, email, password string) error {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	if err := s.agent.Navigate(ctx, s.homeURL); err != nil {
		return fmt.Errorf("failed to open portal: %w", err)
	}
	if err := s.agent.FillField(ctx, fieldEmail, email); err != nil {
		return fmt.Errorf("failed to fill email: %w", err)
	}
	if err := s.agent.FillField(ctx, fieldPassword, password); err != nil {
		return fmt.Errorf("failed to fill password: %w", err)
	}

	clicked, err := s.agent.Click(ctx, loginSubmitSelector)
	if err != nil {
		return fmt.Errorf("failed to submit login: %w", err)
	}
	if !clicked {
		return ErrLoginFailed
	}

	// The portal redirects away from the form on success; a still-visible
	// email field means the credentials were rejected.
	stillShown, err := s.agent.ElementDisplayed(ctx, fieldEmail)
	if err != nil {
		return fmt.Errorf("failed to verify login: %w", err)
	}
	if stillShown {
		return ErrLoginFailed
	}

	return nil
}

// SubmitCode enters a code on the rewards page and classifies the response.
func (s *Session) SubmitCode(ctx context.Context, code string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	if err := s.agent.Navigate(ctx, s.rewardsURL); err != nil {
		return OutcomeUnexpectedPortalError, fmt.Errorf("failed to open rewards page: %w", err)
	}
	if err := s.agent.FillField(ctx, codeInputField, code); err != nil {
		return OutcomeUnexpectedPortalError, fmt.Errorf("failed to fill code: %w", err)
	}

	clicked, err := s.agent.Click(ctx, codeCheckSelector)
	if err != nil {
		return OutcomeUnexpectedPortalError, fmt.Errorf("failed to check code: %w", err)
	}
	if !clicked {
		return OutcomeUnexpectedPortalError, nil
	}

	return s.observe(ctx)
}

// DiscoverEligibleGames returns the game titles the portal lists as
// redeemable for the code just submitted, in the order the portal shows
// them. An empty list means the portal listed nothing.
func (s *Session) DiscoverEligibleGames(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	games, err := s.agent.ElementTexts(ctx, eligibleGamesSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to read eligible games: %w", err)
	}
	return games, nil
}

// RedeemFor clicks the redeem action for one game/platform pair and
// classifies the resulting page.
func (s *Session) RedeemFor(ctx context.Context, platform string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	clicked, err := s.agent.Click(ctx, redeemSelector(platform))
	if err != nil {
		return OutcomeUnexpectedPortalError, fmt.Errorf("failed to click redeem: %w", err)
	}
	if !clicked {
		return Classify(PageView{PlatformOptionMissing: true}), nil
	}

	return s.observe(ctx)
}

// Close releases the session's browser context. Safe to call after errors.
func (s *Session) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.agent.Close(ctx)
}

// observe reads the current page and classifies it.
func (s *Session) observe(ctx context.Context) (Outcome, error) {
	hintVisible, err := s.agent.ElementDisplayed(ctx, codeInstructionsID)
	if err != nil {
		return OutcomeUnexpectedPortalError, fmt.Errorf("failed to inspect code hint: %w", err)
	}

	text, err := s.agent.ReadPageText(ctx)
	if err != nil {
		return OutcomeUnexpectedPortalError, fmt.Errorf("failed to read page: %w", err)
	}

	return Classify(PageView{
		Text:               text,
		InvalidHintVisible: hintVisible,
	}), nil
}
