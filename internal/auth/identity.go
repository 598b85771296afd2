package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/common"
)

// Identity performs the two OAuth grants the API supports.
type Identity interface {
	PasswordGrant(ctx context.Context) (Credential, error)
	RefreshGrant(ctx context.Context, refreshToken string) (Credential, error)
}

// HTTPIdentity talks to the token endpoint with form-encoded grants.
type HTTPIdentity struct {
	TokenURL string
	Username string
	Password string
	// ClientAuth is the Authorization header value sent with password grants.
	ClientAuth string
	// RefreshAuth is sent with refresh grants; ClientAuth is used when empty.
	RefreshAuth string

	Client *http.Client
	Now    func() time.Time
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    json.Number `json:"expires_in"`
	Scope        string      `json:"scope"`
}

func (h *HTTPIdentity) PasswordGrant(ctx context.Context) (Credential, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", h.Username)
	form.Set("password", h.Password)
	return h.grant(ctx, form, h.ClientAuth)
}

func (h *HTTPIdentity) RefreshGrant(ctx context.Context, refreshToken string) (Credential, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	header := h.RefreshAuth
	if header == "" {
		header = h.ClientAuth
	}
	return h.grant(ctx, form, header)
}

func (h *HTTPIdentity) grant(ctx context.Context, form url.Values, authHeader string) (Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if authHeader != "" {
		req.Header.Set(common.AuthorizationHeaderName, authHeader)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("%s grant: %w", form.Get("grant_type"), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Credential{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Credential{}, fmt.Errorf("%w: %s grant: status %d", common.ErrAuth, form.Get("grant_type"), resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Credential{}, fmt.Errorf("%w: decode token response: %w", common.ErrAuth, err)
	}
	if tr.AccessToken == "" {
		return Credential{}, fmt.Errorf("%w: token response without access_token", common.ErrAuth)
	}

	return h.credential(tr), nil
}

func (h *HTTPIdentity) credential(tr tokenResponse) Credential {
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}

	c := Credential{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		Scope:        tr.Scope,
		IssuedAt:     now,
	}

	if secs, err := strconv.ParseFloat(tr.ExpiresIn.String(), 64); err == nil && secs > 0 {
		c.ExpiresAt = now.Add(time.Duration(secs * float64(time.Second)))
	} else if exp, ok := tokenExpiry(tr.AccessToken); ok {
		c.ExpiresAt = exp
	}

	return c
}
