// Package timetrack fetches logged hours from a Jibble-style time-tracking
// API, authenticated with OAuth2 client credentials.
package timetrack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const requestTimeout = 30 * time.Second

// Entry is one person-day of logged hours.
type Entry struct {
	PersonKey string
	Date      time.Time
	Hours     float64
}

// Client reads daily timesheets from the time-tracking API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Opts holds parameters for creating a Client.
type Opts struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	// HTTPClient overrides the OAuth2-authenticated client, used by tests.
	HTTPClient *http.Client
}

// New creates a time-tracking Client. Token refresh is handled by the
// underlying OAuth2 transport.
func New(opts Opts) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("timetrack: base URL is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		if opts.ClientID == "" || opts.ClientSecret == "" {
			return nil, fmt.Errorf("timetrack: client credentials are required")
		}
		cc := clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
		}
		httpClient = cc.Client(context.Background())
	}
	httpClient.Timeout = requestTimeout
	return &Client{baseURL: opts.BaseURL, http: httpClient}, nil
}

// dailySheet mirrors the API's daily timesheet payload.
type dailySheet struct {
	Data []struct {
		PersonID string  `json:"personId"`
		Date     string  `json:"date"`
		Hours    float64 `json:"hours"`
	} `json:"data"`
}

// DailyHours returns one aggregated hours value per person per day in the
// inclusive date window.
func (c *Client) DailyHours(ctx context.Context, from, to time.Time) ([]Entry, error) {
	u, err := url.Parse(c.baseURL + "/v1/timesheets/daily")
	if err != nil {
		return nil, fmt.Errorf("timetrack: parse url: %w", err)
	}
	q := u.Query()
	q.Set("from", from.Format("2006-01-02"))
	q.Set("to", to.Format("2006-01-02"))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("timetrack: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timetrack: daily timesheets: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timetrack: daily timesheets: status %d", resp.StatusCode)
	}

	var sheet dailySheet
	if err := json.NewDecoder(resp.Body).Decode(&sheet); err != nil {
		return nil, fmt.Errorf("timetrack: decode response: %w", err)
	}

	entries := make([]Entry, 0, len(sheet.Data))
	for _, d := range sheet.Data {
		day, err := time.Parse("2006-01-02", d.Date)
		if err != nil {
			return nil, fmt.Errorf("timetrack: parse date %q: %w", d.Date, err)
		}
		entries = append(entries, Entry{PersonKey: d.PersonID, Date: day, Hours: d.Hours})
	}
	return entries, nil
}
