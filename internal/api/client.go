// Package api provides the typed HTTP client for the status-page backend.
//
// Reads go through the query cache when one is attached: a hit is served
// locally, a miss fetches and fills the cache. Mutations never touch the
// cache; the sync engine invalidates the affected keys when the backend's
// change event arrives.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/statuswatch/statuswatch/internal/cache"
	"github.com/statuswatch/statuswatch/internal/pkg/errors"
)

// TokenSource supplies the bearer token and reacts to its rejection.
// auth.Session satisfies it.
type TokenSource interface {
	Token() string
	Clear() error
}

// Config configures the client.
type Config struct {
	// BaseURL is the base URL of the backend.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// CacheTTL bounds how long cached reads live. Zero means no expiry;
	// staleness is then driven purely by event invalidation.
	CacheTTL time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080",
		Timeout: 30 * time.Second,
	}
}

// Client is the status-page API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	cache      cache.Store
	cacheTTL   time.Duration
}

// New creates an API client. tokens may be nil for public-only access;
// store may be nil to disable caching.
func New(cfg Config, tokens TokenSource, store cache.Store) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		tokens:   tokens,
		cache:    store,
		cacheTTL: cfg.CacheTTL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.post(ctx, "/login", LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListApplications returns the organization's registered services.
func (c *Client) ListApplications(ctx context.Context) ([]Application, error) {
	var apps []Application
	if err := c.cachedGet(ctx, cache.KeyApplications, "/applications", &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// CreateApplication registers a new service.
func (c *Client) CreateApplication(ctx context.Context, app Application) (*Application, error) {
	var created Application
	if err := c.post(ctx, "/applications", app, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateApplication patches a service.
func (c *Client) UpdateApplication(ctx context.Context, id string, fields map[string]any) (*Application, error) {
	var updated Application
	if err := c.patch(ctx, "/applications/"+id, fields, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteApplication removes a service.
func (c *Client) DeleteApplication(ctx context.Context, id string) error {
	return c.delete(ctx, "/applications/"+id)
}

// ListIncidents returns the organization's incidents.
func (c *Client) ListIncidents(ctx context.Context) ([]Incident, error) {
	var incidents []Incident
	if err := c.cachedGet(ctx, cache.KeyIncidents, "/incidents", &incidents); err != nil {
		return nil, err
	}
	return incidents, nil
}

// GetIncident returns one incident.
func (c *Client) GetIncident(ctx context.Context, id string) (*Incident, error) {
	var incident Incident
	if err := c.cachedGet(ctx, cache.NewKey("incident", id), "/incidents/"+id, &incident); err != nil {
		return nil, err
	}
	return &incident, nil
}

// ReportIncident opens a new incident.
func (c *Client) ReportIncident(ctx context.Context, incident Incident) (*Incident, error) {
	var created Incident
	if err := c.post(ctx, "/incidents", incident, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateIncident patches an incident; setting status "resolved" resolves it.
func (c *Client) UpdateIncident(ctx context.Context, id string, fields map[string]any) (*Incident, error) {
	var updated Incident
	if err := c.patch(ctx, "/incidents/"+id, fields, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteIncident removes an incident.
func (c *Client) DeleteIncident(ctx context.Context, id string) error {
	return c.delete(ctx, "/incidents/"+id)
}

// AppendIncidentLog posts an update on an incident timeline.
func (c *Client) AppendIncidentLog(ctx context.Context, incidentID string, log IncidentLog) (*IncidentLog, error) {
	var created IncidentLog
	if err := c.post(ctx, "/incidents/"+incidentID, log, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListIncidentLogs returns the timeline of an incident.
func (c *Client) ListIncidentLogs(ctx context.Context, incidentID string) ([]IncidentLog, error) {
	var logs []IncidentLog
	key := cache.NewKey("incident-logs", incidentID)
	if err := c.cachedGet(ctx, key, "/incidents/"+incidentID+"/logs", &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// ListMaintenance returns the organization's maintenance windows.
func (c *Client) ListMaintenance(ctx context.Context) ([]Maintenance, error) {
	var windows []Maintenance
	if err := c.cachedGet(ctx, cache.KeyMaintenance, "/maintenance", &windows); err != nil {
		return nil, err
	}
	return windows, nil
}

// ScheduleMaintenance creates a maintenance window.
func (c *Client) ScheduleMaintenance(ctx context.Context, m Maintenance) (*Maintenance, error) {
	var created Maintenance
	if err := c.post(ctx, "/maintenance", m, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateMaintenance patches a maintenance window.
func (c *Client) UpdateMaintenance(ctx context.Context, id string, fields map[string]any) (*Maintenance, error) {
	var updated Maintenance
	if err := c.patch(ctx, "/maintenance/"+id, fields, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// CancelMaintenance removes a maintenance window.
func (c *Client) CancelMaintenance(ctx context.Context, id string) error {
	return c.delete(ctx, "/maintenance/"+id)
}

// PublicOrganizations lists tenants without authentication.
func (c *Client) PublicOrganizations(ctx context.Context) ([]Organization, error) {
	var orgs []Organization
	if err := c.get(ctx, "/public/organizations", &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// PublicStatsOverview returns the public dashboard summary for an
// organization, without authentication.
func (c *Client) PublicStatsOverview(ctx context.Context, orgID string) (*StatsOverview, error) {
	var stats StatsOverview
	if err := c.get(ctx, "/public/stats/"+orgID+"/overview", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// cachedGet serves from the cache when possible, fetching and filling on a
// miss. Cache errors degrade to a plain fetch.
func (c *Client) cachedGet(ctx context.Context, key cache.Key, path string, result any) error {
	if c.cache != nil {
		if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			if json.Unmarshal(data, result) == nil {
				return nil
			}
			// Unreadable entry: fall through to a fetch.
		}
	}

	var raw json.RawMessage
	if err := c.get(ctx, path, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return errors.ProtocolError("decoding response", err)
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, key, raw, c.cacheTTL)
	}
	return nil
}

// get performs a GET request.
func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.TransportError("building request", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, result)
}

// post performs a POST request.
func (c *Client) post(ctx context.Context, path string, body, result any) error {
	return c.send(ctx, http.MethodPost, path, body, result)
}

// patch performs a PATCH request.
func (c *Client) patch(ctx context.Context, path string, body, result any) error {
	return c.send(ctx, http.MethodPatch, path, body, result)
}

func (c *Client) send(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, "marshaling request", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return errors.TransportError("building request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req, result)
}

// delete performs a DELETE request.
func (c *Client) delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return errors.TransportError("building request", err)
	}

	return c.do(req, nil)
}

// do executes a request, attaching the bearer token when one is available.
// A 401 clears the stored credential before reporting the error, so the
// next command forces a fresh login.
func (c *Client) do(req *http.Request, result any) error {
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.TransportError("request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.TransportError("reading response", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if c.tokens != nil {
			_ = c.tokens.Clear()
		}
		return errors.UnauthorizedError()
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return errors.FromStatus(resp.StatusCode, apiErr.Message)
		}
		return errors.FromStatus(resp.StatusCode, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return errors.ProtocolError("decoding response", err)
		}
	}
	return nil
}
