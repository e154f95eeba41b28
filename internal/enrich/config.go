package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"osintdeck/internal/database"
	"osintdeck/internal/secrets"

	"gorm.io/gorm"
)

// ServiceConfig is the typed view of one APIConfig row with its key decrypted.
type ServiceConfig struct {
	Provider    Provider
	APIKey      string
	BaseURL     string
	Enabled     bool
	RateLimit   int // requests per hour
	Notes       string
	Credentials map[string]string
}

// URL returns the configured base URL, or the provider default, without a trailing slash.
func (c *ServiceConfig) URL() string {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		if info, ok := Info(c.Provider); ok {
			base = info.DefaultBaseURL
		}
	}
	return strings.TrimRight(base, "/")
}

// SocialKeys parses platform API keys stored as a JSON object in the notes field.
func (c *ServiceConfig) SocialKeys() map[string]string {
	out := map[string]string{}
	if c == nil || strings.TrimSpace(c.Notes) == "" {
		return out
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(c.Notes), &raw); err != nil {
		return out
	}
	for k, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out[strings.ToLower(k)] = s
		}
	}
	return out
}

// IMEIKey returns api_key, falling back to credentials api_key, client_key, client_secret.
func (c *ServiceConfig) IMEIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	for _, k := range []string{"api_key", "client_key", "client_secret"} {
		if v := c.Credentials[k]; v != "" {
			return v
		}
	}
	return ""
}

// usable reports whether c can drive a live call.
func usable(c *ServiceConfig, needKey bool) bool {
	return c != nil && c.Enabled && (!needKey || c.APIKey != "")
}

// ConfigSource resolves provider configuration. A missing row yields (nil, nil).
type ConfigSource interface {
	Lookup(ctx context.Context, p Provider) (*ServiceConfig, error)
}

// DBConfigs reads APIConfig rows, opening sealed keys with box.
type DBConfigs struct {
	repo *database.APIConfigRepo
	box  *secrets.Box
}

func NewDBConfigs(repo *database.APIConfigRepo, box *secrets.Box) *DBConfigs {
	return &DBConfigs{repo: repo, box: box}
}

func (d *DBConfigs) Lookup(_ context.Context, p Provider) (*ServiceConfig, error) {
	row, err := d.repo.GetByService(string(p))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return FromRow(row, d.box)
}

// FromRow converts a database row, decrypting api_key and credential values.
func FromRow(row *database.APIConfig, box *secrets.Box) (*ServiceConfig, error) {
	key, err := box.Open(row.APIKey)
	if err != nil {
		return nil, fmt.Errorf("open %s api key: %w", row.ServiceName, err)
	}
	cfg := &ServiceConfig{
		Provider:    Provider(row.ServiceName),
		APIKey:      strings.TrimSpace(key),
		BaseURL:     row.BaseURL,
		Enabled:     row.IsEnabled,
		RateLimit:   row.RateLimit,
		Notes:       row.Notes,
		Credentials: map[string]string{},
	}
	if strings.TrimSpace(row.Credentials) != "" {
		opened, err := box.Open(row.Credentials)
		if err != nil {
			return nil, fmt.Errorf("open %s credentials: %w", row.ServiceName, err)
		}
		var raw map[string]any
		if err := json.Unmarshal([]byte(opened), &raw); err == nil {
			for k, v := range raw {
				if s, ok := v.(string); ok {
					cfg.Credentials[k] = s
				}
			}
		}
	}
	return cfg, nil
}

// StaticConfigs is an in-memory ConfigSource.
type StaticConfigs map[Provider]ServiceConfig

func (s StaticConfigs) Lookup(_ context.Context, p Provider) (*ServiceConfig, error) {
	c, ok := s[p]
	if !ok {
		return nil, nil
	}
	c.Provider = p
	return &c, nil
}
