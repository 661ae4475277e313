package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds checkout provider API configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client retrieves checkout sessions from the payment provider's API
type Client struct {
	httpClient *http.Client
	config     Config
}

// sessionResponse mirrors the provider's session-retrieval payload.
// XP amount and attribution travel in the metadata the platform attached
// when the session was created.
type sessionResponse struct {
	ID            string            `json:"id"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// NewClient creates a new checkout provider client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// VerifySession fetches the session from the provider and extracts the
// confirmed payment state. Unknown or unpaid sessions are terminal errors;
// network and provider failures are retryable.
func (c *Client) VerifySession(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("validation error: session_id must be non-empty")
	}
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("checkout client is not initialized")
	}
	if strings.TrimSpace(c.config.BaseURL) == "" {
		return nil, fmt.Errorf("checkout config error: base_url is empty")
	}

	base := strings.TrimRight(c.config.BaseURL, "/")
	url := base + "/v1/checkout/sessions/" + sessionID

	timeout := c.config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrSessionNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: provider returned status %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("checkout api returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}

	var out sessionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse checkout response: %w", err)
	}

	return sessionFromResponse(&out)
}

func sessionFromResponse(resp *sessionResponse) (*Session, error) {
	if resp.PaymentStatus != "paid" {
		return nil, ErrSessionUnpaid
	}

	userIDStr := resp.Metadata["user_id"]
	xpAmountStr := resp.Metadata["xp_amount"]
	if userIDStr == "" || xpAmountStr == "" {
		return nil, ErrMissingMetadata
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user_id", ErrMissingMetadata)
	}
	xpAmount, err := strconv.ParseInt(xpAmountStr, 10, 64)
	if err != nil || xpAmount <= 0 {
		return nil, fmt.Errorf("%w: invalid xp_amount", ErrMissingMetadata)
	}

	session := &Session{
		ID:               resp.ID,
		Paid:             true,
		XPAmount:         xpAmount,
		AmountMinorUnits: resp.AmountTotal,
		Currency:         resp.Currency,
		UserID:           userID,
		XPType:           XPTypePlatform,
	}

	if creatorIDStr := resp.Metadata["creator_id"]; creatorIDStr != "" {
		creatorID, err := uuid.Parse(creatorIDStr)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid creator_id", ErrMissingMetadata)
		}
		session.CreatorID = &creatorID
	}

	if xpType := resp.Metadata["xp_type"]; xpType != "" {
		if xpType != XPTypePlatform && xpType != XPTypeCreator {
			return nil, fmt.Errorf("%w: invalid xp_type %q", ErrMissingMetadata, xpType)
		}
		session.XPType = xpType
	}
	if session.XPType == XPTypeCreator && session.CreatorID == nil {
		return nil, fmt.Errorf("%w: creator xp without creator_id", ErrMissingMetadata)
	}

	return session, nil
}
