package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
)

const releasePath = "/dna/intent/api/v1/dnac-release"

type releaseBody struct {
	Response struct {
		DisplayVersion string `json:"displayVersion"`
		Version        string `json:"version"`
	} `json:"response"`
}

// Version returns the controller release as a semantic version.
func (c *Client) Version(ctx context.Context) (*semver.Version, error) {
	var body releaseBody
	err := c.do(ctx, request{op: reconcile.OpVersion, method: http.MethodGet, path: releasePath}, &body)
	if errors.Is(err, errNotFound) {
		return nil, reconcile.NewTransportError(string(reconcile.OpVersion), fmt.Errorf("release endpoint %s: %w", releasePath, err))
	}
	if err != nil {
		return nil, err
	}

	raw := body.Response.DisplayVersion
	if raw == "" {
		raw = body.Response.Version
	}
	v, err := ParseVersion(raw)
	if err != nil {
		return nil, reconcile.NewTransportError(string(reconcile.OpVersion), err)
	}
	return v, nil
}

// ParseVersion reads a controller release such as "2.3.7.6". Releases carry
// four numeric components; only the first three take part in ordering.
func ParseVersion(raw string) (*semver.Version, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "v")
	if trimmed == "" {
		return nil, fmt.Errorf("empty version")
	}

	parts := strings.Split(trimmed, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	v, err := semver.NewVersion(strings.Join(parts, "."))
	if err != nil {
		return nil, fmt.Errorf("invalid controller version %q: %w", raw, err)
	}
	return v, nil
}
