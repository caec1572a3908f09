package lighter

import (
	"context"
	"strconv"

	"lighter-mcp/internal/apperr"
)

type ReferralPoints struct {
	AccountIndex   int64  `json:"index"`
	ReferralPoints string `json:"referral_points"`
	L1Address      string `json:"l1_address"`
}

type referralResponse struct {
	envelope
	Total    int              `json:"total"`
	Accounts []ReferralPoints `json:"accounts"`
}

// ReferralPoints needs an auth token signed by the account's wallet.
func (c *Client) ReferralPoints(ctx context.Context, accountIndex int64, authToken string) (*ReferralPoints, error) {
	var out referralResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", authToken).
		SetQueryParams(map[string]string{
			"account_index": strconv.FormatInt(accountIndex, 10),
			"auth":          authToken,
		}).
		SetResult(&out).
		Get("/api/v1/referral/points")
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, err, "Referral points request failed")
	}
	if !resp.IsSuccess() {
		return nil, apperr.Upstream(resp.StatusCode(), "Referral points lookup failed with status %d", resp.StatusCode())
	}
	if out.Code != CodeOK || len(out.Accounts) == 0 {
		return nil, apperr.New(apperr.AccountNotFound, "No referral points found for account %d", accountIndex)
	}
	return &out.Accounts[0], nil
}
