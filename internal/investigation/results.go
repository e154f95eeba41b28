package investigation

import (
	"fmt"
	"strings"

	"osintdeck/internal/enrich"
	"osintdeck/internal/mockgen"
)

type DomainResult struct {
	Domain         string   `json:"domain"`
	Registrar      string   `json:"registrar"`
	CreationDate   string   `json:"creation_date"`
	ExpirationDate string   `json:"expiration_date"`
	NameServers    []string `json:"name_servers"`
	Status         string   `json:"status"`
	DNSRecords     int      `json:"dns_records"`
	Source         string   `json:"source"`
}

func domainResult(domain string, d *enrich.DomainInfo) *DomainResult {
	return &DomainResult{
		Domain:         domain,
		Registrar:      orUnknown(d.Registrar),
		CreationDate:   orUnknown(dateOnly(d.Created)),
		ExpirationDate: orUnknown(dateOnly(d.Expires)),
		NameServers:    nonNil(d.NameServers),
		Status:         orUnknown(d.Status),
		DNSRecords:     len(d.NameServers),
		Source:         d.Source,
	}
}

type IPResult struct {
	IP          string             `json:"ip"`
	City        string             `json:"city"`
	Country     string             `json:"country"`
	ISP         string             `json:"isp"`
	ASN         string             `json:"asn"`
	Lat         *float64           `json:"lat"`
	Lon         *float64           `json:"lon"`
	ThreatScore int                `json:"threat_score"`
	IsProxy     bool               `json:"is_proxy"`
	OpenPorts   []int              `json:"open_ports"`
	Vulns       []string           `json:"vulnerabilities"`
	Shodan      *enrich.ShodanInfo `json:"shodan"`
	VirusTotal  *enrich.VTReport   `json:"virustotal"`
}

// IPThreatScore weighs engine verdicts and known CVEs, capped at 100.
func IPThreatScore(vt *enrich.VTReport, sh *enrich.ShodanInfo) int {
	score := 0
	if vt != nil {
		score += vt.Malicious*8 + vt.Suspicious*4
	}
	if sh != nil {
		score += len(sh.Vulnerabilities) * 15
	}
	return min(score, 100)
}

func ipResult(ip string, geo *enrich.IPGeo, sh *enrich.ShodanInfo, vt *enrich.VTReport) *IPResult {
	r := &IPResult{IP: ip, City: "Unknown", Country: "Unknown", ISP: "Unknown", ASN: "Unknown", OpenPorts: []int{}, Vulns: []string{}}
	if geo != nil {
		r.City = orUnknown(geo.City)
		r.Country = orUnknown(geo.Country)
		r.ISP = orUnknown(geo.Org)
		r.ASN = orUnknown(geo.ASN)
		r.Lat, r.Lon = geo.Lat, geo.Lon
	}
	if sh != nil {
		if r.ISP == "Unknown" && sh.Organization != "" {
			r.ISP = sh.Organization
		}
		r.OpenPorts = nonNil(sh.OpenPorts)
		r.Vulns = nonNil(sh.Vulnerabilities)
		for _, tag := range sh.Tags {
			if tag == "vpn" || tag == "proxy" || tag == "tor" {
				r.IsProxy = true
			}
		}
	}
	r.Shodan, r.VirusTotal = sh, vt
	r.ThreatScore = IPThreatScore(vt, sh)
	return r
}

type EmailResult struct {
	Email            string          `json:"email"`
	ValidFormat      bool            `json:"valid_format"`
	Deliverable      *bool           `json:"deliverable"`
	Disposable       bool            `json:"disposable"`
	Webmail          bool            `json:"webmail"`
	Score            int             `json:"score"`
	Breaches         int             `json:"breaches"`
	BreachList       []enrich.Breach `json:"breach_list"`
	LastBreach       string          `json:"last_breach"`
	DomainReputation string          `json:"domain_reputation"`
}

func emailResult(email string, br *enrich.BreachReport, v *enrich.EmailVerification) *EmailResult {
	r := &EmailResult{Email: email, ValidFormat: true, BreachList: []enrich.Breach{}, LastBreach: "None", DomainReputation: "Unknown"}
	if br != nil {
		r.Breaches = len(br.Breaches)
		r.BreachList = nonNil(br.Breaches)
		latest := ""
		for _, b := range br.Breaches {
			if b.Date > latest {
				latest = b.Date
				r.LastBreach = fmt.Sprintf("%s (%s)", b.Date, b.Name)
			}
		}
	}
	if v != nil {
		d := v.Deliverable
		r.Deliverable = &d
		r.Disposable = v.Disposable
		r.Webmail = v.Webmail
		r.Score = v.Score
		switch {
		case v.Disposable || v.Score < 40:
			r.DomainReputation = "Low"
		case v.Score < 70:
			r.DomainReputation = "Medium"
		default:
			r.DomainReputation = "High"
		}
	}
	return r
}

type SocialResult struct {
	Username string                 `json:"username"`
	Found    int                    `json:"found"`
	Profiles []enrich.SocialProfile `json:"profiles"`
}

type PhoneResult struct {
	Number      string   `json:"number"`
	Valid       bool     `json:"valid"`
	Type        string   `json:"type"`
	Carrier     string   `json:"carrier"`
	Location    string   `json:"location"`
	CountryCode string   `json:"country_code"`
	CountryName string   `json:"country_name"`
	TimeZone    string   `json:"time_zone"`
	FraudScore  int      `json:"fraud_score"`
	RiskLevel   string   `json:"risk_level"`
	RiskFactors []string `json:"risk_factors"`
}

func phoneResult(number string, v *enrich.PhoneValidation) *PhoneResult {
	risk := mockgen.PhoneRisk(number)
	carrier := v.Carrier
	if carrier == "" {
		carrier = risk.Carrier
	}
	return &PhoneResult{
		Number:      number,
		Valid:       v.Valid,
		Type:        orUnknown(v.LineType),
		Carrier:     orUnknown(carrier),
		Location:    orUnknown(v.Location),
		CountryCode: orUnknown(v.CountryCode),
		CountryName: orUnknown(v.CountryName),
		TimeZone:    TimeZoneFor(v.CountryCode, number),
		FraudScore:  risk.FraudScore,
		RiskLevel:   risk.RiskLevel,
		RiskFactors: nonNil(risk.RiskFactors),
	}
}

type IMEIResult struct {
	IMEI            string         `json:"imei"`
	Valid           bool           `json:"valid"`
	LuhnValid       bool           `json:"luhn_valid"`
	Brand           string         `json:"brand"`
	Model           string         `json:"model"`
	BlacklistStatus string         `json:"blacklist_status"`
	Stolen          bool           `json:"stolen"`
	Raw             map[string]any `json:"raw,omitempty"`
}

func invalidIMEI(imei string) *IMEIResult {
	return &IMEIResult{IMEI: imei, Valid: false, Brand: "Unknown", Model: "Unknown", BlacklistStatus: "Invalid Format"}
}

// imeiResult picks common field names out of the provider's free-form answer.
func imeiResult(imei string, raw enrich.IMEIData) *IMEIResult {
	r := &IMEIResult{IMEI: imei, Valid: true, LuhnValid: Luhn(imei), Raw: raw}
	flat := flatten(raw)
	r.Brand = orUnknown(pick(flat, "brand", "manufacturer", "brand_name", "make"))
	r.Model = orUnknown(pick(flat, "model", "model_name", "name", "device"))
	status := pick(flat, "blacklist_status", "blacklist", "blacklisted", "status", "gsma_status")
	switch strings.ToLower(status) {
	case "", "<nil>":
		r.BlacklistStatus = "Unknown"
	case "true", "yes", "blacklisted", "blocked", "lost", "stolen":
		r.BlacklistStatus = "Blacklisted"
		r.Stolen = true
	case "false", "no", "clean", "ok", "not blacklisted":
		r.BlacklistStatus = "Clean"
	default:
		r.BlacklistStatus = status
	}
	if s := strings.ToLower(pick(flat, "stolen", "lost_or_stolen")); s == "true" || s == "yes" {
		r.Stolen = true
	}
	return r
}

// flatten lowers keys of nested objects into one level; the first occurrence wins.
func flatten(m map[string]any) map[string]string {
	out := map[string]string{}
	var walk func(map[string]any)
	walk = func(m map[string]any) {
		for k, v := range m {
			k = strings.ToLower(k)
			switch t := v.(type) {
			case map[string]any:
				walk(t)
			case nil:
			default:
				if _, ok := out[k]; !ok {
					out[k] = fmt.Sprint(t)
				}
			}
		}
	}
	walk(m)
	return out
}

func pick(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

func dateOnly(s string) string {
	if len(s) >= 10 && s[4] == '-' {
		return s[:10]
	}
	return s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
