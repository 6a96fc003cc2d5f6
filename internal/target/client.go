// Package target implements the storage port against the destination
// platform's HTTP API. It performs no retries; retry policy belongs to
// the operator rerunning the migration.
package target

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/parkgrove/clubsync/pkg/errors"
	"github.com/parkgrove/clubsync/pkg/records"
	"github.com/parkgrove/clubsync/pkg/target"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response lands in an APIError.
const maxErrorBody = 512

// Config holds the connection settings for the target platform.
type Config struct {
	BaseURL    string
	APIKey     string
	AuthHeader string // non-empty selects custom header auth over Bearer
	Timeout    time.Duration
}

// Client talks to the target platform's JSON API. It implements
// target.Client.
type Client struct {
	base string
	http *http.Client
	auth Authenticator
}

var _ target.Client = (*Client)(nil)

// New creates a client from connection settings.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.NewConfigError("target", "base URL is required", nil)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	var auth Authenticator = &NoAuth{}
	switch {
	case cfg.APIKey == "":
	case cfg.AuthHeader != "":
		auth = &HeaderAuth{Header: cfg.AuthHeader, Value: cfg.APIKey}
	default:
		auth = &BearerAuth{Token: cfg.APIKey}
	}

	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
		auth: auth,
	}, nil
}

// ListStatuses implements target.Client.
func (c *Client) ListStatuses(ctx context.Context) ([]target.StatusRef, error) {
	var out []target.StatusRef
	if err := c.get(ctx, "/api/statuses", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMembers implements target.Client.
func (c *Client) ListMembers(ctx context.Context) ([]target.MemberRef, error) {
	var out []target.MemberRef
	if err := c.get(ctx, "/api/members", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEvents implements target.Client.
func (c *Client) ListEvents(ctx context.Context) ([]target.EventRef, error) {
	var out []target.EventRef
	if err := c.get(ctx, "/api/events", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTiers implements target.Client.
func (c *Client) ListTiers(ctx context.Context) ([]target.TierRef, error) {
	var out []target.TierRef
	if err := c.get(ctx, "/api/tiers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindRegistration implements target.Client. A 404 means no registration
// exists for the pair, which is a normal outcome, not an error.
func (c *Client) FindRegistration(ctx context.Context, eventID, memberID string) (string, bool, error) {
	q := url.Values{"eventId": {eventID}, "memberId": {memberID}}
	var out struct {
		ID string `json:"id"`
	}
	err := c.get(ctx, "/api/registrations/lookup?"+q.Encode(), &out)
	if errors.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return out.ID, out.ID != "", nil
}

// CreateMember implements target.Client.
func (c *Client) CreateMember(ctx context.Context, m *records.Member) (string, error) {
	return c.create(ctx, "/api/members", m)
}

// UpdateMember implements target.Client.
func (c *Client) UpdateMember(ctx context.Context, id string, m *records.Member) error {
	return c.send(ctx, http.MethodPut, "/api/members/"+url.PathEscape(id), m, nil)
}

// CreateEvent implements target.Client.
func (c *Client) CreateEvent(ctx context.Context, e *records.Event) (string, error) {
	return c.create(ctx, "/api/events", e)
}

// CreateRegistration implements target.Client.
func (c *Client) CreateRegistration(ctx context.Context, w target.RegistrationWrite) (string, error) {
	return c.create(ctx, "/api/registrations", w)
}

// UpdateRegistration implements target.Client.
func (c *Client) UpdateRegistration(ctx context.Context, id string, w target.RegistrationWrite) error {
	return c.send(ctx, http.MethodPut, "/api/registrations/"+url.PathEscape(id), w, nil)
}

// create posts a payload and returns the id the API assigned.
func (c *Client) create(ctx context.Context, path string, payload any) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.send(ctx, http.MethodPost, path, payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// get performs a GET request and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.send(ctx, http.MethodGet, path, nil, out)
}

// send performs one request with authentication applied and decodes the
// response into out when out is non-nil.
func (c *Client) send(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.WrapIO("marshal", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return errors.WrapResource("create", "request", method+" "+path, err)
	}
	c.auth.Apply(req)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WrapResource(strings.ToLower(method), "target", path, err)
	}
	return decode(resp, path, out)
}

// decode reads the response, mapping non-2xx statuses onto APIError.
func decode(resp *http.Response, endpoint string, out any) error {
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", endpoint, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := strings.TrimSpace(string(data))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return errors.NewAPIError(endpoint, resp.StatusCode, msg)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.WrapParse("json", endpoint, err)
	}
	return nil
}
