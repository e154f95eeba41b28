// Package enrich adapts third-party OSINT services into normalized results.
package enrich

import (
	"errors"
	"strings"
)

// Provider names a supported enrichment service. Values match APIConfig.service_name.
type Provider string

const (
	RDAP             Provider = "RDAP"
	WhoisXML         Provider = "WhoisXML"
	HIBP             Provider = "HIBP"
	IPInfo           Provider = "IPInfo"
	Shodan           Provider = "Shodan"
	VirusTotal       Provider = "VirusTotal"
	Hunter           Provider = "Hunter.io"
	NumVerify        Provider = "NumVerify"
	ImageRecognition Provider = "ImageRecognition"
	IMEIService      Provider = "IMEIService"
	SocialSearch     Provider = "SocialSearch"
)

var (
	// ErrNotConfigured means the provider has no enabled APIConfig row or lacks a key.
	ErrNotConfigured = errors.New("enrich: service not configured")
	// ErrUnavailable wraps transport failures, timeouts and unexpected statuses.
	ErrUnavailable = errors.New("enrich: service unavailable")
	// ErrInvalidAPIKey is returned when a key fails local format validation.
	ErrInvalidAPIKey = errors.New("enrich: invalid api key")
)

// ServiceInfo describes a provider for the settings catalogue.
type ServiceInfo struct {
	Provider       Provider `json:"service_name"`
	DisplayName    string   `json:"display_name"`
	DefaultBaseURL string   `json:"default_base_url"`
	Description    string   `json:"description"`
	DocsURL        string   `json:"docs_url"`
	KeyRequired    bool     `json:"key_required"`
}

var catalogue = []ServiceInfo{
	{RDAP, "RDAP", "https://rdap.org", "Domain registration data (no key needed)", "https://about.rdap.org/", false},
	{WhoisXML, "WhoisXML API", "https://www.whoisxmlapi.com/whoisserver/WhoisService", "Domain WHOIS records", "https://whois.whoisxmlapi.com/documentation/making-requests", true},
	{HIBP, "Have I Been Pwned", "https://haveibeenpwned.com/api/v3", "Email breach lookups", "https://haveibeenpwned.com/API/v3", true},
	{IPInfo, "IPInfo", "https://ipinfo.io", "IP geolocation and ASN (token optional)", "https://ipinfo.io/developers", false},
	{Shodan, "Shodan", "https://api.shodan.io", "Open ports, services and CVEs", "https://developer.shodan.io/api", true},
	{VirusTotal, "VirusTotal", "https://www.virustotal.com/api/v3", "IP reputation from AV engines", "https://developers.virustotal.com/reference/overview", true},
	{Hunter, "Hunter.io", "https://api.hunter.io/v2", "Email deliverability", "https://hunter.io/api-documentation/v2", true},
	{NumVerify, "NumVerify", "http://apilayer.net/api", "Phone number validation", "https://numverify.com/documentation", true},
	{ImageRecognition, "Google Cloud Vision", "https://vision.googleapis.com/v1", "Face, label, web and text detection", "https://cloud.google.com/vision/docs", true},
	{IMEIService, "IMEI Service", "https://api.imei.info", "IMEI device and blacklist lookup", "https://dash.imei.info/api/", false},
	{SocialSearch, "Social Search", "https://api.github.com", "Username presence; notes may hold {\"github\": \"...\", \"twitter\": \"...\"}", "https://docs.github.com/en/rest", false},
}

// Catalogue lists every supported provider.
func Catalogue() []ServiceInfo {
	out := make([]ServiceInfo, len(catalogue))
	copy(out, catalogue)
	return out
}

// Info returns the catalogue entry of p.
func Info(p Provider) (ServiceInfo, bool) {
	for _, s := range catalogue {
		if s.Provider == p {
			return s, true
		}
	}
	return ServiceInfo{}, false
}

// ParseProvider matches a service name case-insensitively.
func ParseProvider(name string) (Provider, bool) {
	name = strings.TrimSpace(name)
	for _, s := range catalogue {
		if strings.EqualFold(string(s.Provider), name) {
			return s.Provider, true
		}
	}
	return "", false
}
