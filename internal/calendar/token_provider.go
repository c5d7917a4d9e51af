package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/glacombe/pourvoirie-booking/internal/repository"
)

// googleTokenURL is the OAuth 2.0 token endpoint used for the
// refresh-token grant.
const googleTokenURL = "https://oauth2.googleapis.com/token"

// tokenCacheMargin is subtracted from the reported expiry so a cached
// token is never handed out moments before it expires mid-request.
const tokenCacheMargin = 60 * time.Second

// CredentialStore is the slice of the credential repository the token
// provider needs: look up an owner's refresh token and flag it revoked
// after the OAuth endpoint rejects it.
type CredentialStore interface {
	GetRefreshToken(ctx context.Context, ownerID uint64) (string, error)
	MarkRevoked(ctx context.Context, ownerID uint64) error
}

// TokenSource yields a valid access token for an owner's calendar.  It
// is satisfied by *TokenProvider and faked in tests.
type TokenSource interface {
	GetAccessToken(ctx context.Context, ownerID uint64) (token string, cached bool, err error)
}

// TokenProvider exchanges stored refresh tokens for short-lived access
// tokens and caches them in Redis keyed by owner.  A nil Redis client
// disables caching: every call performs a fresh exchange, which is
// slower but correct.
type TokenProvider struct {
	creds    CredentialStore
	rdb      *redis.Client
	clientID string
	secret   string
	tokenURL string
	http     *http.Client
}

// NewTokenProvider constructs a TokenProvider.  rdb may be nil.
func NewTokenProvider(creds CredentialStore, rdb *redis.Client, clientID, secret string, timeout time.Duration) *TokenProvider {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &TokenProvider{
		creds:    creds,
		rdb:      rdb,
		clientID: clientID,
		secret:   secret,
		tokenURL: googleTokenURL,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
	}
}

func (p *TokenProvider) cacheKey(ownerID uint64) string {
	return fmt.Sprintf("gcal:token:%d", ownerID)
}

// GetAccessToken returns a valid access token for the owner's calendar,
// serving from the Redis cache when possible.  The second return value
// reports whether the token came from the cache.  Credential problems
// surface as ErrAuthRequired (possibly transient) or ErrReauthRequired
// (owner must reconnect); they are never swallowed.
func (p *TokenProvider) GetAccessToken(ctx context.Context, ownerID uint64) (string, bool, error) {
	if p.rdb != nil {
		if tok, err := p.rdb.Get(ctx, p.cacheKey(ownerID)).Result(); err == nil && tok != "" {
			return tok, true, nil
		}
	}

	refresh, err := p.creds.GetRefreshToken(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return "", false, ErrReauthRequired
		}
		return "", false, err
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refresh)
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return "", false, fmt.Errorf("%w: token endpoint returned %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		var oauthErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &oauthErr)
		if oauthErr.Error == "invalid_grant" {
			// The refresh token was revoked or expired; only the owner
			// reconnecting their calendar can recover.
			if err := p.creds.MarkRevoked(ctx, ownerID); err != nil {
				log.Printf("token-provider: mark revoked owner=%d: %v", ownerID, err)
			}
			return "", false, ErrReauthRequired
		}
		return "", false, fmt.Errorf("%w: token endpoint returned %d (%s)", ErrAuthRequired, resp.StatusCode, oauthErr.Error)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		return "", false, fmt.Errorf("%w: malformed token response", ErrAuthRequired)
	}

	if p.rdb != nil && tok.ExpiresIn > 0 {
		ttl := time.Duration(tok.ExpiresIn)*time.Second - tokenCacheMargin
		if ttl > 0 {
			if err := p.rdb.Set(ctx, p.cacheKey(ownerID), tok.AccessToken, ttl).Err(); err != nil {
				log.Printf("token-provider: cache set owner=%d: %v", ownerID, err)
			}
		}
	}
	return tok.AccessToken, false, nil
}
