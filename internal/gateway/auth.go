package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
)

const (
	authHeader = "X-Auth-Token"
	authPath   = "/dna/system/api/v1/auth/token"
)

type tokenResponse struct {
	Token string `json:"Token"`
}

// currentToken returns the cached token, acquiring one when none is held.
// Concurrent acquisitions share a single request.
func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	token := c.token
	c.tokenMu.RUnlock()
	if token != "" {
		return token, nil
	}

	result, err, _ := c.refresh.Do("token", func() (interface{}, error) {
		c.tokenMu.RLock()
		cached := c.token
		c.tokenMu.RUnlock()
		if cached != "" {
			return cached, nil
		}

		fresh, err := c.authenticate(ctx)
		if err != nil {
			return "", err
		}
		c.tokenMu.Lock()
		c.token = fresh
		c.tokenMu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// invalidate drops token if it is still the cached one.
func (c *Client) invalidate(token string) {
	c.tokenMu.Lock()
	if c.token == token {
		c.token = ""
	}
	c.tokenMu.Unlock()
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	const op = reconcile.Operation("auth")

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", contextError(ctx, op, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+authPath, nil)
	if err != nil {
		return "", reconcile.NewTransportError(string(op), err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", contextError(ctx, op, ctx.Err())
		}
		return "", reconcile.NewTransportError(string(op), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", reconcile.NewTransportError(string(op), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", reconcile.NewTransportError(string(op), &statusError{Status: resp.StatusCode, Body: truncate(body)})
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", reconcile.NewTransportError(string(op), fmt.Errorf("decode token: %w", err))
	}
	if strings.TrimSpace(parsed.Token) == "" {
		return "", reconcile.NewTransportError(string(op), fmt.Errorf("controller returned an empty token"))
	}

	c.debug(ctx, "authenticated with controller", "user", c.username)
	return parsed.Token, nil
}
