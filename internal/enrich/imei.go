package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// IMEIData is the provider's raw JSON answer.
type IMEIData map[string]any

type imeiAuth int

const (
	authNone        imeiAuth = iota
	authKeyParam             // ?key=
	authBearer               // Authorization: Bearer
	authParamHeader          // ?imei=&api_key= plus key headers
	authHeader               // ?imei= plus key headers
	authPlain                // ?imei=
)

type imeiAttempt struct {
	path string // %[1]s is the IMEI
	auth imeiAuth
}

var imeiInfoAttempts = []imeiAttempt{
	{"/api/v1/imei/%[1]s", authKeyParam},
	{"/api/v1/imei/%[1]s", authBearer},
	{"/api/v1/imei/%[1]s", authNone},
}

var imeiEndpoints = []string{"/imei", "/api/imei", "/api/v1/imei/%[1]s", "/api/v1/imei", "/api/%[1]s", "/%[1]s"}

// imeiAttempts lists the (endpoint, auth) pairs tried in order against base.
func imeiAttempts(base string, haveKey bool) []imeiAttempt {
	var out []imeiAttempt
	if strings.Contains(base, "imei.info") {
		for _, a := range imeiInfoAttempts {
			if a.auth == authNone || haveKey {
				out = append(out, a)
			}
		}
	}
	for _, ep := range imeiEndpoints {
		if haveKey {
			out = append(out, imeiAttempt{ep, authParamHeader}, imeiAttempt{ep, authHeader})
		}
		out = append(out, imeiAttempt{ep, authPlain})
	}
	return out
}

func (a imeiAttempt) request(base, imei, key string) (*http.Request, error) {
	path := a.path
	if strings.Contains(path, "%[1]s") {
		path = fmt.Sprintf(path, url.PathEscape(imei))
	}
	q := url.Values{}
	h := http.Header{}
	switch a.auth {
	case authKeyParam:
		q.Set("key", key)
	case authBearer:
		h.Set("Authorization", "Bearer "+key)
	case authParamHeader, authHeader:
		q.Set("imei", imei)
		if a.auth == authParamHeader {
			q.Set("api_key", key)
		}
		h.Set("Authorization", "Bearer "+key)
		h.Set("X-API-KEY", key)
	case authPlain:
		q.Set("imei", imei)
	}
	u := base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	for k := range h {
		req.Header.Set(k, h.Get(k))
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// IMEI walks the attempt table; the first 2xx JSON object wins.
func (c *Client) IMEI(ctx context.Context, imei string) (*IMEIData, error) {
	cfg, err := c.config(ctx, IMEIService, false)
	if err != nil {
		return nil, err
	}
	base := cfg.URL()
	key := cfg.IMEIKey()
	var last error
	for _, a := range imeiAttempts(base, key != "") {
		req, err := a.request(base, imei, key)
		if err != nil {
			return nil, err
		}
		var out IMEIData
		if err := c.request(ctx, IMEIService, 5*time.Second, req, &out); err != nil {
			last = err
			continue
		}
		if len(out) > 0 {
			return &out, nil
		}
	}
	if last == nil {
		last = ErrUnavailable
	}
	return nil, last
}
