package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/Fickets/ticketflow/config"
	"github.com/Fickets/ticketflow/internal/domain"
	pkgErrors "github.com/Fickets/ticketflow/pkg/errors"
	"github.com/Fickets/ticketflow/pkg/logger"
)

// tokenExpiredCode is the body marker distinguishing an expired access
// token from a plain unauthorized response.
const tokenExpiredCode = "ACCESS_TOKEN_EXPIRED"

type TokenSource interface {
	Token(actor domain.Actor) (string, error)
	Refresh(ctx context.Context, actor domain.Actor) (string, error)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Rest is the authenticated base client every typed API client is built
// on. It attaches the bearer token, funnels requests through a circuit
// breaker, and performs the refresh-then-retry dance exactly once per
// request on an expired-token 401.
type Rest struct {
	baseURL string
	actor   domain.Actor
	httpCli *http.Client
	tokens  TokenSource
	breaker *gobreaker.CircuitBreaker
	l       logger.Logger
}

func NewRest(cfg config.APIConfig, actor domain.Actor, tokens TokenSource, l logger.Logger) *Rest {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ticketing-api",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.BreakerMaxFail)
		},
	})

	return &Rest{
		baseURL: cfg.BaseURL,
		actor:   actor,
		httpCli: &http.Client{Timeout: cfg.RequestTimeout},
		tokens:  tokens,
		breaker: breaker,
		l:       l,
	}
}

// DoJSON issues a JSON request and decodes a JSON response into out
// (out may be nil for empty responses).
func (c *Rest) DoJSON(ctx context.Context, method, path string, body, out any) error {
	build := func() (*http.Request, error) {
		var rd io.Reader
		if body != nil {
			buf, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to encode request body: %w", err)
			}
			rd = bytes.NewReader(buf)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}

	return c.do(ctx, build, out)
}

// DoMultipart issues a multipart/form-data POST. The form callback
// writes the parts; it runs once per attempt so a refresh-retry gets a
// fresh body.
func (c *Rest) DoMultipart(ctx context.Context, path string, form func(w *multipart.Writer) error, out any) error {
	build := func() (*http.Request, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		if err := form(mw); err != nil {
			return nil, fmt.Errorf("failed to build multipart body: %w", err)
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	}

	return c.do(ctx, build, out)
}

func (c *Rest) do(ctx context.Context, build func() (*http.Request, error), out any) error {
	refreshed := false

	for {
		req, err := build()
		if err != nil {
			return err
		}

		token, err := c.tokens.Token(c.actor)
		if err != nil {
			return fmt.Errorf("failed to resolve access token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		res, err := c.breaker.Execute(func() (any, error) {
			return c.httpCli.Do(req)
		})
		if err != nil {
			return pkgErrors.Wrap(pkgErrors.KindServerRejection, "request failed", err)
		}
		resp := res.(*http.Response)

		payload, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil || len(payload) == 0 {
				return nil
			}
			if err := json.Unmarshal(payload, out); err != nil {
				return fmt.Errorf("failed to decode response body: %w", err)
			}
			return nil
		}

		var apiErr apiError
		_ = json.Unmarshal(payload, &apiErr)

		if resp.StatusCode == http.StatusUnauthorized {
			if apiErr.Code == tokenExpiredCode && !refreshed {
				refreshed = true
				if _, err := c.tokens.Refresh(ctx, c.actor); err != nil {
					return pkgErrors.Wrap(pkgErrors.KindAuthExpired, "token refresh failed", err)
				}
				c.l.Debugf(ctx, "transport.Rest.do: token refreshed, retrying %s %s", req.Method, req.URL.Path)
				continue
			}
			return pkgErrors.AuthExpired("session expired, re-login required")
		}

		if resp.StatusCode == http.StatusConflict {
			return pkgErrors.Conflict(apiErr.Code, nonEmpty(apiErr.Message, "resource held by another buyer"))
		}

		return pkgErrors.ServerRejection(apiErr.Code, nonEmpty(apiErr.Message, fmt.Sprintf("unexpected status code: %d", resp.StatusCode)))
	}
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// BaseURL exposes the configured API root for clients that need to
// derive stream URLs from it.
func (c *Rest) BaseURL() string {
	return c.baseURL
}

// Actor reports which credential slot this client operates under.
func (c *Rest) Actor() domain.Actor {
	return c.actor
}
