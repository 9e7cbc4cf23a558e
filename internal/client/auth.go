package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Fickets/ticketflow/internal/domain"
	"github.com/Fickets/ticketflow/internal/session"
)

// reissuePaths maps each actor to its token reissue endpoint; the
// backend issues tokens per actor, not per user record.
var reissuePaths = map[domain.Actor]string{
	domain.ActorUser:  "/users/reissue",
	domain.ActorAdmin: "/admins/reissue",
}

// NewReissuer builds the session.Refresher that exchanges an expired
// access token. It runs on its own bare http.Client: the authenticated
// Rest client depends on the token store, and the refresher must not.
func NewReissuer(baseURL string, timeout time.Duration) session.Refresher {
	httpCli := &http.Client{Timeout: timeout}

	return func(ctx context.Context, actor domain.Actor, current string) (string, error) {
		path, ok := reissuePaths[actor]
		if !ok {
			return "", fmt.Errorf("no reissue endpoint for actor %q", actor)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+current)

		resp, err := httpCli.Do(req)
		if err != nil {
			return "", fmt.Errorf("reissue request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("reissue rejected with status %d", resp.StatusCode)
		}

		var out struct {
			AccessToken string `json:"accessToken"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("failed to decode reissue response: %w", err)
		}
		if out.AccessToken == "" {
			return "", fmt.Errorf("reissue returned empty token")
		}
		return out.AccessToken, nil
	}
}
