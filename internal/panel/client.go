// Package panel is the boundary to the hosting panel's REST API: the
// inventory of managed server instances and the short-lived websocket
// credentials each session needs to attach to its console.
package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrForbidden marks a permission failure from the panel. It is never
// retried: a 403 means a misconfigured API key, not a flaky network.
var ErrForbidden = errors.New("panel: forbidden (check API key permissions and key type)")

// Instance is one managed server as reported by the panel inventory.
// Immutable for the lifetime of a session.
type Instance struct {
	// ExternalID is the operator-assigned stable identifier. It is the
	// broadcast routing key and the grammar table key. May be empty when
	// the operator never assigned one; such instances cannot be bridged.
	ExternalID string `json:"external_id"`

	// UUID routes the websocket connection URL.
	UUID string `json:"uuid"`

	// Identifier is the short panel identifier used by the client API,
	// including the websocket credential endpoint.
	Identifier string `json:"identifier"`

	Name        string `json:"name"`
	Description string `json:"description"`

	// Status is the last observed power state ("running", "offline",
	// "unavailable" when the status fetch failed).
	Status string `json:"status"`
}

type Config struct {
	APIURL         string
	ClientKey      string
	ApplicationKey string
	Timeout        time.Duration

	// CredentialAttempts bounds retries of the websocket credential
	// fetch on transient failures.
	CredentialAttempts int

	// RetryBase is the first retry delay; it doubles per attempt.
	RetryBase time.Duration
}

// Client talks to the panel REST API with bounded timeouts. Safe for
// concurrent use by multiple sessions.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CredentialAttempts < 1 {
		cfg.CredentialAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

type serverListPage struct {
	Data []struct {
		Attributes struct {
			ExternalID  *string `json:"external_id"`
			UUID        string  `json:"uuid"`
			Identifier  string  `json:"identifier"`
			Name        string  `json:"name"`
			Description string  `json:"description"`
		} `json:"attributes"`
	} `json:"data"`
	Meta struct {
		Pagination struct {
			CurrentPage int `json:"current_page"`
			TotalPages  int `json:"total_pages"`
		} `json:"pagination"`
	} `json:"meta"`
}

type resourcesResponse struct {
	Attributes struct {
		CurrentState string `json:"current_state"`
	} `json:"attributes"`
}

type websocketResponse struct {
	Data struct {
		Token  string `json:"token"`
		Socket string `json:"socket"`
	} `json:"data"`
}

// ListServers enumerates all server instances from the application API,
// walking every page, and annotates each with its current power state from
// the client API. A failed status lookup degrades that instance's status to
// "unavailable" rather than failing the listing.
func (c *Client) ListServers(ctx context.Context) ([]Instance, error) {
	var instances []Instance

	for page := 1; ; page++ {
		var list serverListPage
		url := fmt.Sprintf("%s/application/servers?page=%d", c.baseURL(), page)
		if err := c.getJSON(ctx, url, c.cfg.ApplicationKey, &list); err != nil {
			return nil, fmt.Errorf("listing servers (page %d): %w", page, err)
		}

		for _, item := range list.Data {
			attr := item.Attributes
			inst := Instance{
				UUID:        attr.UUID,
				Identifier:  attr.Identifier,
				Name:        attr.Name,
				Description: attr.Description,
				Status:      "unavailable",
			}
			if attr.ExternalID != nil {
				inst.ExternalID = *attr.ExternalID
			}

			var res resourcesResponse
			statusURL := fmt.Sprintf("%s/client/servers/%s/resources", c.baseURL(), attr.Identifier)
			if err := c.getJSON(ctx, statusURL, c.cfg.ClientKey, &res); err != nil {
				c.log.Warn("status fetch failed", "identifier", attr.Identifier, "error", err)
			} else if res.Attributes.CurrentState != "" {
				inst.Status = res.Attributes.CurrentState
			}

			instances = append(instances, inst)
		}

		if page >= list.Meta.Pagination.TotalPages {
			break
		}
	}

	return instances, nil
}

// WebsocketToken fetches a short-lived console token for the given instance
// identifier. Transient failures retry with exponential backoff up to the
// configured attempt ceiling; a 403 returns ErrForbidden immediately.
func (c *Client) WebsocketToken(ctx context.Context, identifier string) (string, error) {
	url := fmt.Sprintf("%s/client/servers/%s/websocket", c.baseURL(), identifier)

	var lastErr error
	delay := c.cfg.RetryBase
	for attempt := 1; attempt <= c.cfg.CredentialAttempts; attempt++ {
		var resp websocketResponse
		err := c.getJSON(ctx, url, c.cfg.ClientKey, &resp)
		if err == nil {
			if resp.Data.Token == "" {
				return "", fmt.Errorf("panel: credential response for %s carried no token", identifier)
			}
			return resp.Data.Token, nil
		}
		if errors.Is(err, ErrForbidden) || ctx.Err() != nil {
			return "", err
		}
		if !isTransient(err) {
			return "", err
		}

		lastErr = err
		if attempt < c.cfg.CredentialAttempts {
			c.log.Warn("credential fetch failed, retrying",
				"identifier", identifier, "attempt", attempt, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return "", fmt.Errorf("panel: credential fetch for %s failed after %d attempts: %w",
		identifier, c.cfg.CredentialAttempts, lastErr)
}

// transientStatusError marks an HTTP status that is worth retrying.
type transientStatusError struct {
	status int
}

func (e *transientStatusError) Error() string {
	return fmt.Sprintf("panel: HTTP %d", e.status)
}

func isTransient(err error) bool {
	var se *transientStatusError
	if errors.As(err, &se) {
		return true
	}
	// Anything that never produced an HTTP status is a network-class
	// failure: DNS, refused connection, timeout.
	var permanent *permanentStatusError
	return !errors.As(err, &permanent)
}

type permanentStatusError struct {
	status int
	body   string
}

func (e *permanentStatusError) Error() string {
	return fmt.Sprintf("panel: HTTP %d: %s", e.status, e.body)
}

func (c *Client) baseURL() string {
	return strings.TrimRight(c.cfg.APIURL, "/")
}

func (c *Client) getJSON(ctx context.Context, url, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return &transientStatusError{status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &permanentStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
