package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"osintdeck/internal/metrics"
)

// Client carries what every live source needs.
type Client struct {
	Configs   ConfigSource
	HTTP      *http.Client
	UserAgent string
}

func NewClient(configs ConfigSource, userAgent string) *Client {
	if userAgent == "" {
		userAgent = "OSINTDeck/1.0"
	}
	return &Client{
		Configs:   configs,
		HTTP:      &http.Client{Timeout: 35 * time.Second},
		UserAgent: userAgent,
	}
}

// config looks p up and checks it can serve live calls.
func (c *Client) config(ctx context.Context, p Provider, needKey bool) (*ServiceConfig, error) {
	if c.Configs == nil {
		return nil, ErrNotConfigured
	}
	cfg, err := c.Configs.Lookup(ctx, p)
	if err != nil {
		return nil, err
	}
	if !usable(cfg, needKey) {
		return nil, ErrNotConfigured
	}
	return cfg, nil
}

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Provider Provider
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUnavailable }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// request performs one call with its own timeout and decodes a JSON body into out.
// Non-2xx answers become *StatusError.
func (c *Client) request(ctx context.Context, p Provider, timeout time.Duration, req *http.Request, out any) (err error) {
	started := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.ObserveEnrichment(string(p), outcome, started)
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req = req.WithContext(ctx)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Provider: p, Code: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", ErrUnavailable, p, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, p Provider, timeout time.Duration, url string, header http.Header, out any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	return c.request(ctx, p, timeout, req, out)
}
