// Package feed turns untrusted feed units (social posts, archive entries)
// into candidate code records. Extraction of the individual fields is
// independent; a missing reward or expiry never blocks the code itself.
package feed

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shift-code-redeemer/internal/model"
	"shift-code-redeemer/internal/timeparse"
)

var (
	rewardPattern  = regexp.MustCompile(`Reward: ([^\n]+)`)
	expiresPattern = regexp.MustCompile(`Expires: ([^\n]+)`)
	gamePattern    = regexp.MustCompile(`Game: (WONDERLANDS|BORDERLANDS:?\s([2-3]|[A-Z]+-[A-Z]+))`)
	codePattern    = regexp.MustCompile(`([A-Z\d]{5}-){4}[A-Z\d]{5}`)
)

// GameUnknown is the canonical title used when a post names no known game.
const GameUnknown = "Unknown"

// ParsePost extracts a candidate code record from the full text of one
// social post. Returns ok=false when the post carries no code token, in
// which case the unit is dropped.
func ParsePost(text string, now time.Time) (*model.Code, bool) {
	code := extractCode(text)
	if code == "" {
		return nil, false
	}

	c := &model.Code{
		Game:     extractGame(text),
		Code:     code,
		Type:     model.CodeTypeShift,
		Reward:   extractReward(text),
		Platform: inferPlatform(model.CodeTypeShift, "", extractGame(text)),
		IsValid:  true,
	}

	gathered := now.UTC()
	c.TimeGathered = &gathered

	if m := expiresPattern.FindStringSubmatch(text); m != nil {
		if expires, ok := timeparse.Normalize(m[1], now); ok {
			c.Expires = &expires
		}
	}

	return c, true
}

// ArchiveEntry is one object of the JSON archive feed.
type ArchiveEntry struct {
	Game     string `json:"game"`
	Platform string `json:"platform"`
	Code     string `json:"code"`
	Type     string `json:"type"`
	Reward   string `json:"reward"`
	Archived string `json:"archived"`
	Expires  string `json:"expires"`
}

// ParseArchiveEntry maps one archive object to a candidate code record.
// Fields map directly; the two date fields still go through the normalizer.
// Entries without a code token are dropped.
func (e ArchiveEntry) Parse(now time.Time) (*model.Code, bool) {
	if strings.TrimSpace(e.Code) == "" || strings.TrimSpace(e.Type) == "" {
		return nil, false
	}

	codeType := strings.ToLower(strings.TrimSpace(e.Type))

	c := &model.Code{
		Game:     e.Game,
		Code:     strings.TrimSpace(e.Code),
		Type:     codeType,
		Reward:   e.Reward,
		Platform: inferPlatform(codeType, e.Platform, e.Game),
		IsValid:  true,
	}
	if c.Reward == "" {
		c.Reward = model.RewardUnknown
	}

	if gathered, ok := timeparse.Normalize(e.Archived, now); ok {
		c.TimeGathered = &gathered
	}
	if expires, ok := timeparse.Normalize(e.Expires, now); ok {
		c.Expires = &expires
	}

	return c, true
}

// inferPlatform assigns a platform to codes that do not state one. Shift
// codes for the universal titles redeem anywhere; everything else falls back
// to the default platform.
func inferPlatform(codeType, stated, game string) string {
	if stated != "" {
		return stated
	}
	if codeType == model.CodeTypeShift {
		for _, g := range model.UniversalGames() {
			if g == game {
				return model.PlatformUniversal
			}
		}
	}
	return model.PlatformDefault
}

func extractReward(text string) string {
	if m := rewardPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return model.RewardUnknown
}

func extractGame(text string) string {
	if m := gamePattern.FindStringSubmatch(text); m != nil {
		return cases.Title(language.English).String(strings.ToLower(m[1]))
	}
	return GameUnknown
}

func extractCode(text string) string {
	return codePattern.FindString(text)
}
