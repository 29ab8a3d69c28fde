package quickbooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/invobee/invobee/app/models"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// TokenManager hands out currently-valid access tokens for the accounting
// provider, refreshing expired ones transparently. Refreshes for the same
// user are single-flighted so concurrent callers share one exchange instead
// of invalidating each other's tokens.
type TokenManager struct {
	repo   Repository
	client *Client
	group  singleflight.Group
	now    func() time.Time
}

// ConnectionStatus is the read-only view consumed by the UI layer.
type ConnectionStatus struct {
	Connected bool       `json:"connected"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsExpired bool       `json:"is_expired,omitempty"`
}

func NewTokenManager(repo Repository, client *Client) *TokenManager {
	return &TokenManager{
		repo:   repo,
		client: client,
		now:    time.Now,
	}
}

// GetValidAccessToken returns a currently-valid access token for the user.
// Fails with ErrNotConnected when no credential is stored and with
// ErrRefreshFailed when an expired token cannot be refreshed; in the latter
// case the stored credential is left untouched.
func (m *TokenManager) GetValidAccessToken(ctx context.Context, userID uint) (string, error) {
	integration, err := m.repo.GetIntegration(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotConnected
		}
		return "", err
	}

	if !integration.IsExpired(m.now()) {
		return integration.AccessToken, nil
	}

	token, err, _ := m.group.Do(fmt.Sprintf("refresh:%d", userID), func() (interface{}, error) {
		return m.refresh(ctx, integration)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (m *TokenManager) refresh(ctx context.Context, integration *models.Integration) (string, error) {
	resp, err := m.client.RefreshToken(ctx, integration.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	expiresAt := m.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	if err := m.repo.UpdateIntegrationToken(integration.ID, resp.AccessToken, expiresAt); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Connect upserts the credential for the user. Re-connecting replaces the
// prior credential atomically.
func (m *TokenManager) Connect(ctx context.Context, userID uint, accessToken, refreshToken string, ttlSeconds int) error {
	_ = ctx
	if accessToken == "" || refreshToken == "" {
		return errors.New("access_token and refresh_token are required")
	}
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}

	return m.repo.UpsertIntegration(&models.Integration{
		UserID:          userID,
		IntegrationName: models.IntegrationQuickBooks,
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		ExpiresAt:       m.now().Add(time.Duration(ttlSeconds) * time.Second),
	})
}

// Disconnect deletes the stored credential; subsequent token requests fail
// with ErrNotConnected.
func (m *TokenManager) Disconnect(ctx context.Context, userID uint) error {
	_ = ctx
	return m.repo.DeleteIntegration(userID)
}

// ConnectionStatus reports whether the user has a stored credential and
// whether it is past its freshness bound. No network call is made.
func (m *TokenManager) ConnectionStatus(userID uint) (*ConnectionStatus, error) {
	integration, err := m.repo.GetIntegration(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ConnectionStatus{Connected: false}, nil
		}
		return nil, err
	}
	expiresAt := integration.ExpiresAt
	return &ConnectionStatus{
		Connected: true,
		ExpiresAt: &expiresAt,
		IsExpired: integration.IsExpired(m.now()),
	}, nil
}
