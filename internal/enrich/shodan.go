package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"time"

	"osintdeck/internal/cache"
	"osintdeck/internal/mockgen"
)

// ShodanService is one exposed service.
type ShodanService struct {
	Port     int    `json:"port"`
	Service  string `json:"service"`
	Banner   string `json:"banner"`
	Protocol string `json:"protocol"`
}

// ShodanInfo is the exposure view of an IP.
type ShodanInfo struct {
	IP              string          `json:"ip"`
	OpenPorts       []int           `json:"open_ports"`
	Services        []ShodanService `json:"detected_services"`
	Organization    string          `json:"organization"`
	LastSeen        string          `json:"last_seen"`
	Vulnerabilities []string        `json:"vulnerabilities"`
	Hostnames       []string        `json:"hostnames"`
	Tags            []string        `json:"tags"`
	Note            string          `json:"note,omitempty"`
	Mock            bool            `json:"mock,omitempty"`
}

type shodanHost struct {
	Org        string          `json:"org"`
	LastUpdate string          `json:"last_update"`
	Hostnames  []string        `json:"hostnames"`
	Tags       []string        `json:"tags"`
	Vulns      json.RawMessage `json:"vulns"`
	Data       []struct {
		Port      int             `json:"port"`
		Transport string          `json:"transport"`
		Data      string          `json:"data"`
		Vulns     json.RawMessage `json:"vulns"`
		Meta      struct {
			Module string `json:"module"`
		} `json:"_shodan"`
	} `json:"data"`
}

// Shodan queries {base}/shodan/host/{ip}. A 404 is a known-empty host.
func (c *Client) Shodan(ctx context.Context, ip string) (*ShodanInfo, error) {
	cfg, err := c.config(ctx, Shodan, true)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/shodan/host/%s?key=%s", cfg.URL(), url.PathEscape(ip), url.QueryEscape(cfg.APIKey))
	var host shodanHost
	err = c.getJSON(ctx, Shodan, 10*time.Second, u, nil, &host)
	if StatusOf(err) == http.StatusNotFound {
		return &ShodanInfo{
			IP:              ip,
			OpenPorts:       []int{},
			Services:        []ShodanService{},
			Organization:    "Unknown",
			LastSeen:        "Never",
			Vulnerabilities: []string{},
			Hostnames:       []string{},
			Tags:            []string{},
			Note:            "No data available in Shodan for this IP",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	info := &ShodanInfo{
		IP:           ip,
		OpenPorts:    []int{},
		Services:     []ShodanService{},
		Organization: firstNonEmpty(host.Org, "Unknown"),
		LastSeen:     firstNonEmpty(host.LastUpdate, "Unknown"),
		Hostnames:    orEmpty(host.Hostnames),
		Tags:         orEmpty(host.Tags),
	}
	vulns := vulnIDs(host.Vulns)
	for _, item := range host.Data {
		vulns = append(vulns, vulnIDs(item.Vulns)...)
		if item.Port == 0 {
			continue
		}
		if !slices.Contains(info.OpenPorts, item.Port) {
			info.OpenPorts = append(info.OpenPorts, item.Port)
		}
		banner := item.Data
		if len(banner) > 100 {
			banner = banner[:100]
		}
		info.Services = append(info.Services, ShodanService{
			Port:     item.Port,
			Service:  firstNonEmpty(item.Meta.Module, "Unknown"),
			Banner:   banner,
			Protocol: firstNonEmpty(item.Transport, "tcp"),
		})
	}
	sort.Ints(info.OpenPorts)
	sort.Strings(vulns)
	info.Vulnerabilities = slices.Compact(vulns)
	if info.Vulnerabilities == nil {
		info.Vulnerabilities = []string{}
	}
	return info, nil
}

// vulnIDs accepts both the list form and the CVE-keyed object form.
func vulnIDs(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		out := make([]string, 0, len(obj))
		for k := range obj {
			out = append(out, k)
		}
		return out
	}
	return nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type portService struct {
	port    int
	service string
	banner  string
}

var mockPorts = []portService{
	{22, "SSH", "OpenSSH 8.2"},
	{80, "HTTP", "nginx 1.18.0"},
	{443, "HTTPS", "nginx 1.18.0"},
	{3306, "MySQL", "MySQL 5.7.31"},
	{5432, "PostgreSQL", "PostgreSQL 13.2"},
	{6379, "Redis", "Redis 6.0.9"},
	{8080, "HTTP", "Apache Tomcat 9.0"},
	{27017, "MongoDB", "MongoDB 4.4.3"},
}

var mockOrgs = []string{
	"Amazon Technologies Inc.",
	"Google LLC",
	"Microsoft Corporation",
	"DigitalOcean LLC",
	"Cloudflare Inc.",
	"Hetzner Online GmbH",
}

var mockCVEs = []string{"CVE-2021-44228", "CVE-2022-22965", "CVE-2021-3156", "CVE-2020-1350"}

// MockShodan derives a stable Shodan record from ip.
func MockShodan(ip string) *ShodanInfo {
	g := mockgen.New(ip)
	picked := mockgen.Sample(g, mockPorts, g.IntRange(1, 4))

	info := &ShodanInfo{IP: ip, LastSeen: "2024-11-25", Mock: true, Tags: []string{}}
	for _, p := range picked {
		info.OpenPorts = append(info.OpenPorts, p.port)
		info.Services = append(info.Services, ShodanService{Port: p.port, Service: p.service, Banner: p.banner, Protocol: "tcp"})
	}
	info.Vulnerabilities = []string{}
	if g.Chance(0.3) {
		info.Vulnerabilities = mockgen.Sample(g, mockCVEs, g.IntRange(1, 2))
	}
	info.Organization = mockgen.Choice(g, mockOrgs)
	info.Hostnames = []string{fmt.Sprintf("server%d.example.com", g.IntRange(1, 999))}

	has := func(ports ...int) bool {
		for _, p := range ports {
			if slices.Contains(info.OpenPorts, p) {
				return true
			}
		}
		return false
	}
	switch {
	case has(80, 443):
		info.Tags = []string{"cloud", "web"}
	case has(3306, 5432, 27017):
		info.Tags = []string{"database"}
	}
	return info
}

// ShodanSource is the live client backed by the deterministic mock. Only live
// results go through ch; a nil ch disables caching.
func (c *Client) ShodanSource(ch *cache.Cache) Source[ShodanInfo] {
	live := Cached(ch, "shodan", "fetch_shodan", cache.TTLShodan, Source[ShodanInfo](SourceFunc[ShodanInfo](c.Shodan)))
	return WithFallback[ShodanInfo](Shodan, live, SourceFunc[ShodanInfo](func(_ context.Context, ip string) (*ShodanInfo, error) {
		return MockShodan(ip), nil
	}))
}
