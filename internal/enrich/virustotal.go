package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"osintdeck/internal/cache"
	"osintdeck/internal/mockgen"
)

// Detection is one engine that flagged the IP.
type Detection struct {
	Vendor   string `json:"vendor"`
	Result   string `json:"result"`
	Category string `json:"category"`
}

// VTReport is the reputation view of an IP.
type VTReport struct {
	IP               string      `json:"ip"`
	Malicious        int         `json:"malicious_count"`
	Suspicious       int         `json:"suspicious_count"`
	Harmless         int         `json:"harmless_count"`
	TotalEngines     int         `json:"total_engines"`
	CommunityScore   int         `json:"community_score"`
	Reputation       int         `json:"reputation"`
	Categories       []string    `json:"categories"`
	Detections       []Detection `json:"malware_detections"`
	LastAnalysisDate string      `json:"last_analysis_date"`
	Whois            string      `json:"whois"`
	Note             string      `json:"note,omitempty"`
	Mock             bool        `json:"mock,omitempty"`
}

type vtResponse struct {
	Data struct {
		Attributes struct {
			Stats struct {
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
				Harmless   int `json:"harmless"`
				Undetected int `json:"undetected"`
			} `json:"last_analysis_stats"`
			Results map[string]struct {
				Category string `json:"category"`
				Result   string `json:"result"`
			} `json:"last_analysis_results"`
			Categories       map[string]string `json:"categories"`
			Reputation       int               `json:"reputation"`
			LastAnalysisDate json.Number       `json:"last_analysis_date"`
			Whois            string            `json:"whois"`
		} `json:"attributes"`
	} `json:"data"`
}

// CommunityScore maps engine verdicts and reputation onto -100..100.
func CommunityScore(malicious, reputation int) int {
	switch {
	case malicious > 5:
		return -75
	case malicious > 0:
		return -25
	default:
		return min(reputation, 100)
	}
}

// VirusTotal queries {base}/ip_addresses/{ip}. A 404 is a clean IP.
func (c *Client) VirusTotal(ctx context.Context, ip string) (*VTReport, error) {
	cfg, err := c.config(ctx, VirusTotal, true)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("x-apikey", cfg.APIKey)
	var data vtResponse
	err = c.getJSON(ctx, VirusTotal, 10*time.Second, cfg.URL()+"/ip_addresses/"+url.PathEscape(ip), h, &data)
	if StatusOf(err) == http.StatusNotFound {
		return &VTReport{
			IP:               ip,
			Categories:       []string{},
			Detections:       []Detection{},
			LastAnalysisDate: "Never",
			Note:             "No data available in VirusTotal for this IP",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	a := data.Data.Attributes
	rep := &VTReport{
		IP:             ip,
		Malicious:      a.Stats.Malicious,
		Suspicious:     a.Stats.Suspicious,
		Harmless:       a.Stats.Harmless,
		TotalEngines:   a.Stats.Malicious + a.Stats.Suspicious + a.Stats.Harmless + a.Stats.Undetected,
		CommunityScore: CommunityScore(a.Stats.Malicious, a.Reputation),
		Reputation:     a.Reputation,
		Categories:     []string{},
		Detections:     []Detection{},
		Whois:          a.Whois,
	}
	rep.LastAnalysisDate = "Unknown"
	if ts, err := strconv.ParseInt(a.LastAnalysisDate.String(), 10, 64); err == nil && ts > 0 {
		rep.LastAnalysisDate = time.Unix(ts, 0).UTC().Format("2006-01-02")
	}
	for _, v := range a.Categories {
		rep.Categories = append(rep.Categories, v)
	}
	sort.Strings(rep.Categories)
	vendors := make([]string, 0, len(a.Results))
	for vendor := range a.Results {
		vendors = append(vendors, vendor)
	}
	sort.Strings(vendors)
	for _, vendor := range vendors {
		r := a.Results[vendor]
		if r.Category == "malicious" || r.Category == "suspicious" {
			rep.Detections = append(rep.Detections, Detection{Vendor: vendor, Result: r.Result, Category: r.Category})
		}
	}
	return rep, nil
}

var (
	mockCategories = []string{"malware", "phishing", "spam", "botnet", "c2", "scanner"}
	mockVendors    = []string{"Kaspersky", "Bitdefender", "ESET", "Sophos", "Avast", "AVG", "McAfee", "Norton", "Trend Micro", "F-Secure"}
	mockResults    = []string{"malware", "malicious", "suspicious", "phishing"}
)

// MockVirusTotal derives a stable reputation report from ip.
func MockVirusTotal(ip string) *VTReport {
	g := mockgen.New(ip)
	const total = 90
	malicious := g.IntRange(0, 10)
	suspicious := g.IntRange(0, 5)

	rep := &VTReport{
		IP:               ip,
		Malicious:        malicious,
		Suspicious:       suspicious,
		Harmless:         total - malicious - suspicious,
		TotalEngines:     total,
		Reputation:       malicious,
		Categories:       []string{},
		Detections:       []Detection{},
		LastAnalysisDate: "2024-11-25",
		Whois:            "Mock WHOIS data for " + ip,
		Mock:             true,
	}
	if malicious > 0 {
		rep.Categories = mockgen.Sample(g, mockCategories, malicious)
	}
	switch {
	case malicious > 5:
		rep.CommunityScore = g.IntRange(-100, -50)
	case malicious > 0:
		rep.CommunityScore = g.IntRange(-50, 0)
	default:
		rep.CommunityScore = g.IntRange(0, 100)
	}
	if malicious > 0 {
		for _, vendor := range mockgen.Sample(g, mockVendors, malicious) {
			rep.Detections = append(rep.Detections, Detection{
				Vendor:   vendor,
				Result:   mockgen.Choice(g, mockResults),
				Category: mockgen.Choice(g, rep.Categories),
			})
		}
	}
	return rep
}

// VirusTotalSource is the live client backed by the deterministic mock. Only live
// results go through ch; a nil ch disables caching.
func (c *Client) VirusTotalSource(ch *cache.Cache) Source[VTReport] {
	live := Cached(ch, "virustotal", "fetch_virustotal", cache.TTLVirusTotal, Source[VTReport](SourceFunc[VTReport](c.VirusTotal)))
	return WithFallback[VTReport](VirusTotal, live, SourceFunc[VTReport](func(_ context.Context, ip string) (*VTReport, error) {
		return MockVirusTotal(ip), nil
	}))
}
