package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"osintdeck/internal/ratelimit"
)

// Platform is a public profile URL pattern with one %s for the username.
type Platform struct {
	Name    string
	Pattern string
}

// DefaultPlatforms are probed in order.
var DefaultPlatforms = []Platform{
	{"Twitter", "https://twitter.com/%s"},
	{"GitHub", "https://github.com/%s"},
	{"Instagram", "https://www.instagram.com/%s/"},
	{"Reddit", "https://www.reddit.com/user/%s"},
	{"LinkedIn", "https://www.linkedin.com/in/%s"},
	{"Pinterest", "https://www.pinterest.com/%s/"},
	{"TikTok", "https://www.tiktok.com/@%s"},
	{"Telegram", "https://t.me/%s"},
	{"Facebook", "https://www.facebook.com/%s"},
	{"YouTube", "https://www.youtube.com/c/%s"},
}

// SocialProfile is the presence of a username on one platform.
type SocialProfile struct {
	Platform    string         `json:"platform"`
	Username    string         `json:"username"`
	Exists      bool           `json:"exists"`
	URL         string         `json:"url"`
	ProfileData map[string]any `json:"profile_data,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// SocialReport lists every probed platform.
type SocialReport struct {
	Profiles []SocialProfile `json:"profiles"`
}

// Found counts profiles that exist.
func (r *SocialReport) Found() int {
	n := 0
	for _, p := range r.Profiles {
		if p.Exists {
			n++
		}
	}
	return n
}

// SocialProber checks username presence across platforms.
type SocialProber struct {
	client     *Client
	Platforms  []Platform
	GitHubAPI  string
	TwitterAPI string
	Timeout    time.Duration
	pace       *rate.Limiter
	apiBudget  *ratelimit.MemoryLimiter
}

// NewSocialProber paces probes delay apart. A zero delay disables pacing.
func (c *Client) NewSocialProber(delay time.Duration) *SocialProber {
	lim := rate.NewLimiter(rate.Inf, 1)
	if delay > 0 {
		lim = rate.NewLimiter(rate.Every(delay), 1)
	}
	return &SocialProber{
		client:     c,
		Platforms:  DefaultPlatforms,
		GitHubAPI:  "https://api.github.com",
		TwitterAPI: "https://api.twitter.com",
		Timeout:    5 * time.Second,
		pace:       lim,
		apiBudget:  ratelimit.NewMemoryLimiter(nil),
	}
}

// Fetch probes every platform for username. Requires an enabled SocialSearch row.
func (s *SocialProber) Fetch(ctx context.Context, username string) (*SocialReport, error) {
	cfg, err := s.client.config(ctx, SocialSearch, false)
	if err != nil {
		return nil, err
	}
	ghBase := s.GitHubAPI
	if cfg.BaseURL != "" {
		ghBase = cfg.URL()
	}
	keys := cfg.SocialKeys()

	report := &SocialReport{Profiles: make([]SocialProfile, 0, len(s.Platforms))}
	for _, p := range s.Platforms {
		if err := s.pace.Wait(ctx); err != nil {
			return report, err
		}
		switch {
		case p.Name == "GitHub" && keys["github"] != "":
			report.Profiles = append(report.Profiles, s.github(ctx, ghBase, username, keys["github"]))
		case p.Name == "Twitter" && keys["twitter"] != "":
			report.Profiles = append(report.Profiles, s.twitter(ctx, username, keys["twitter"]))
		default:
			u := fmt.Sprintf(p.Pattern, url.PathEscape(username))
			prof := SocialProfile{Platform: p.Name, Username: username}
			if s.probe(ctx, u) == http.StatusOK {
				prof.Exists, prof.URL = true, u
			}
			report.Profiles = append(report.Profiles, prof)
		}
	}
	return report, nil
}

// probe tries HEAD, then GET when HEAD fails at the transport level. Returns 0 on failure.
func (s *SocialProber) probe(ctx context.Context, u string) int {
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		if code := s.do(ctx, method, u); code != 0 {
			return code
		}
	}
	return 0
}

func (s *SocialProber) do(ctx context.Context, method, u string) int {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return 0
	}
	req.Header.Set("User-Agent", s.client.UserAgent)
	started := time.Now()
	resp, err := s.client.HTTP.Do(req)
	if err != nil {
		observe(SocialSearch, "error", started)
		return 0
	}
	resp.Body.Close()
	observe(SocialSearch, "ok", started)
	return resp.StatusCode
}

func (s *SocialProber) github(ctx context.Context, base, username, token string) SocialProfile {
	prof := SocialProfile{Platform: "GitHub", Username: username}
	if !s.apiBudget.Allow("social:github:"+username, 5000, time.Hour) {
		prof.Error = "Rate limit exceeded"
		return prof
	}
	h := http.Header{}
	h.Set("Authorization", "token "+token)
	h.Set("Accept", "application/vnd.github.v3+json")
	var data struct {
		HTMLURL     string `json:"html_url"`
		Name        string `json:"name"`
		Bio         string `json:"bio"`
		Location    string `json:"location"`
		PublicRepos int    `json:"public_repos"`
		Followers   int    `json:"followers"`
	}
	u := strings.TrimRight(base, "/") + "/users/" + url.PathEscape(username)
	if err := s.client.getJSON(ctx, SocialSearch, s.Timeout, u, h, &data); err != nil {
		return prof
	}
	prof.Exists = true
	prof.URL = firstNonEmpty(data.HTMLURL, "https://github.com/"+username)
	prof.ProfileData = map[string]any{
		"name":         data.Name,
		"bio":          data.Bio,
		"location":     data.Location,
		"public_repos": data.PublicRepos,
		"followers":    data.Followers,
	}
	return prof
}

func (s *SocialProber) twitter(ctx context.Context, username, bearer string) SocialProfile {
	prof := SocialProfile{Platform: "Twitter", Username: username}
	if !s.apiBudget.Allow("social:twitter:"+username, 300, 15*time.Minute) {
		prof.Error = "Rate limit exceeded"
		return prof
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+bearer)
	var data struct {
		Data struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Location    string `json:"location"`
			Metrics     struct {
				Followers int `json:"followers_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	u := strings.TrimRight(s.TwitterAPI, "/") + "/2/users/by/username/" + url.PathEscape(username) +
		"?user.fields=description,location,public_metrics"
	if err := s.client.getJSON(ctx, SocialSearch, s.Timeout, u, h, &data); err != nil {
		return prof
	}
	prof.Exists = true
	prof.URL = "https://twitter.com/" + username
	prof.ProfileData = map[string]any{
		"name":        data.Data.Name,
		"description": data.Data.Description,
		"location":    data.Data.Location,
		"followers":   data.Data.Metrics.Followers,
	}
	return prof
}
