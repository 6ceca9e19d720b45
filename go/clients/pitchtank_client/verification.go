package pitchtank_client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mcdev12/pitchtank/go/internal/models"
)

var (
	ErrQueryTooShort  = errors.New("search query must be at least 2 characters")
	ErrMissingSubject = errors.New("nothing to verify")
)

type trustMRRResult struct {
	Verified bool   `json:"verified"`
	Level    string `json:"level"`
	Message  string `json:"message"`
	Profile  struct {
		URL         string `json:"url"`
		CompanyName string `json:"company_name"`
	} `json:"profile"`
	Metrics struct {
		MRR        float64 `json:"mrr"`
		MRRDisplay string  `json:"mrr_display"`
	} `json:"metrics"`
}

type defiResult struct {
	Verified bool   `json:"verified"`
	Level    string `json:"level"`
	Message  string `json:"message"`
	Protocol struct {
		Name string `json:"name"`
	} `json:"protocol"`
	Metrics struct {
		PrimaryLabel string  `json:"primaryLabel"`
		PrimaryValue float64 `json:"primaryValue"`
	} `json:"metrics"`
}

// VerificationStatus lists the checks already on file for the signed-in user,
// keyed by verification type.
type VerificationStatus struct {
	Verified      bool                      `json:"verified"`
	Verifications map[string]map[string]any `json:"verifications"`
}

type TranscribeStatus struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

// LeaderboardEntry is one pitch as the backend ranks it.
type LeaderboardEntry struct {
	Rank         int                 `json:"rank,omitempty"`
	ID           string              `json:"id"`
	UserID       string              `json:"userId"`
	Handle       string              `json:"userTwitterHandle"`
	DisplayName  string              `json:"userDisplayName"`
	PitchData    models.PitchData    `json:"pitchData"`
	Outcome      LeaderboardOutcome  `json:"outcome"`
	Verification models.Verification `json:"verification"`
}

type LeaderboardOutcome struct {
	Result     string  `json:"result"`
	DealAmount int64   `json:"dealAmount"`
	Equity     float64 `json:"equity"`
	SharkID    string  `json:"sharkId"`
	SharkName  string  `json:"sharkName"`
}

// VerifyTrustMRR checks that the signed-in founder owns a TrustMRR profile.
// A claim the backend could not tie to the founder is not an error.
func (c *PitchTankClient) VerifyTrustMRR(ctx context.Context, profileURL string) (*models.Verification, error) {
	profileURL = strings.TrimSpace(profileURL)
	if profileURL == "" {
		return nil, ErrMissingSubject
	}
	req := struct {
		ProfileURL string `json:"profileUrl"`
	}{ProfileURL: profileURL}

	var resp trustMRRResult
	if err := c.PostJSON(ctx, verifyTrustMRRPath, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to verify TrustMRR profile: %w", err)
	}
	v := &models.Verification{
		Type:     models.VerificationTrustMRR,
		Verified: resp.Verified,
		Level:    resp.Level,
		Message:  resp.Message,
		Subject:  profileURL,
		Name:     resp.Profile.CompanyName,
	}
	if resp.Metrics.MRR > 0 {
		v.PrimaryLabel = "MRR"
		v.PrimaryValue = resp.Metrics.MRR
	}
	return v, nil
}

// VerifyDeFi checks that the signed-in founder runs a DefiLlama protocol.
func (c *PitchTankClient) VerifyDeFi(ctx context.Context, protocolSlug string) (*models.Verification, error) {
	protocolSlug = strings.TrimSpace(protocolSlug)
	if protocolSlug == "" {
		return nil, ErrMissingSubject
	}
	req := struct {
		ProtocolSlug string `json:"protocolSlug"`
	}{ProtocolSlug: protocolSlug}

	var resp defiResult
	if err := c.PostJSON(ctx, verifyDeFiPath, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to verify protocol %s: %w", protocolSlug, err)
	}
	return &models.Verification{
		Type:         models.VerificationDeFi,
		Verified:     resp.Verified,
		Level:        resp.Level,
		Message:      resp.Message,
		Subject:      protocolSlug,
		Name:         resp.Protocol.Name,
		PrimaryLabel: resp.Metrics.PrimaryLabel,
		PrimaryValue: resp.Metrics.PrimaryValue,
	}, nil
}

// SearchDeFi looks protocols up by name, largest TVL first.
func (c *PitchTankClient) SearchDeFi(ctx context.Context, query string) ([]models.Protocol, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < 2 {
		return nil, ErrQueryTooShort
	}

	var resp struct {
		Results []models.Protocol `json:"results"`
	}
	if err := c.GetJSON(ctx, searchDeFiPath+"?q="+url.QueryEscape(query), &resp); err != nil {
		return nil, fmt.Errorf("failed to search protocols: %w", err)
	}
	return resp.Results, nil
}

func (c *PitchTankClient) VerificationStatus(ctx context.Context) (*VerificationStatus, error) {
	var resp VerificationStatus
	if err := c.GetJSON(ctx, verifyStatusPath, &resp); err != nil {
		return nil, fmt.Errorf("failed to get verification status: %w", err)
	}
	return &resp, nil
}

// TranscribeStatus reports whether the backend can turn recordings into text.
func (c *PitchTankClient) TranscribeStatus(ctx context.Context) (*TranscribeStatus, error) {
	var resp TranscribeStatus
	if err := c.GetJSON(ctx, transcribeStatus, &resp); err != nil {
		return nil, fmt.Errorf("failed to get transcription status: %w", err)
	}
	return &resp, nil
}

// Leaderboard returns the backend's closed deals, largest first.
func (c *PitchTankClient) Leaderboard(ctx context.Context, verifiedOnly bool, limit int) ([]LeaderboardEntry, error) {
	q := url.Values{}
	q.Set("verified", strconv.FormatBool(verifiedOnly))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp struct {
		Entries []LeaderboardEntry `json:"entries"`
	}
	if err := c.GetJSON(ctx, leaderboardPath+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	return resp.Entries, nil
}

// UserLeaderboard returns a user's latest pitch, or nil when they have none.
func (c *PitchTankClient) UserLeaderboard(ctx context.Context, userID string) (*LeaderboardEntry, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	var resp struct {
		Entry *LeaderboardEntry `json:"entry"`
	}
	endpoint := fmt.Sprintf(userLeaderboardPath, url.PathEscape(userID))
	if err := c.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to get leaderboard entry for %s: %w", userID, err)
	}
	return resp.Entry, nil
}
