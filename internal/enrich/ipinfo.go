package enrich

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// IPGeo is the geolocation view of an IP.
type IPGeo struct {
	City    string   `json:"city"`
	Country string   `json:"country"`
	ASN     string   `json:"asn"`
	Org     string   `json:"org"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// IPInfo queries {base}/{ip}. The token is optional.
func (c *Client) IPInfo(ctx context.Context, ip string) (*IPGeo, error) {
	cfg, err := c.config(ctx, IPInfo, false)
	if err != nil {
		return nil, err
	}
	u := cfg.URL() + "/" + url.PathEscape(ip)
	if cfg.APIKey != "" {
		u += "?token=" + url.QueryEscape(cfg.APIKey)
	}
	var data struct {
		City    string `json:"city"`
		Country string `json:"country"`
		Org     string `json:"org"`
		Loc     string `json:"loc"`
	}
	if err := c.getJSON(ctx, IPInfo, 5*time.Second, u, nil, &data); err != nil {
		return nil, err
	}
	geo := &IPGeo{City: data.City, Country: data.Country, Org: data.Org}
	if parts := strings.Fields(data.Org); len(parts) > 0 && strings.HasPrefix(parts[0], "AS") {
		geo.ASN = parts[0]
	}
	if lat, lon, ok := strings.Cut(data.Loc, ","); ok {
		la, err1 := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		lo, err2 := strconv.ParseFloat(strings.TrimSpace(lon), 64)
		if err1 == nil && err2 == nil {
			geo.Lat, geo.Lon = &la, &lo
		}
	}
	return geo, nil
}
