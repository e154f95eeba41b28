package enrich

import (
	"context"
	"time"

	"osintdeck/internal/cache"
)

// ImageAnalyzer inspects uploaded image bytes.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, name string, data []byte) (*ImageReport, error)
}

// Sources bundles one Source per lookup the investigation service runs.
type Sources struct {
	Domain      Source[DomainInfo]
	IPGeo       Source[IPGeo]
	Shodan      Source[ShodanInfo]
	VirusTotal  Source[VTReport]
	Breaches    Source[BreachReport]
	EmailVerify Source[EmailVerification]
	Phone       Source[PhoneValidation]
	Social      Source[SocialReport]
	IMEI        Source[IMEIData]
	Images      ImageAnalyzer
}

// NewSources wires live clients, mock fallbacks and the TTL cache. A nil cache disables caching.
func NewSources(c *Client, ch *cache.Cache, socialDelay time.Duration) *Sources {
	return &Sources{
		Domain:      Cached(ch, "domain", "fetch_domain", cache.TTLDomain, Source[DomainInfo](SourceFunc[DomainInfo](c.Domain))),
		IPGeo:       Cached(ch, "ip", "fetch_ip", cache.TTLIP, Source[IPGeo](SourceFunc[IPGeo](c.IPInfo))),
		Shodan:      c.ShodanSource(ch),
		VirusTotal:  c.VirusTotalSource(ch),
		Breaches:    Cached(ch, "hibp", "check_breaches", cache.TTLEmail, Source[BreachReport](SourceFunc[BreachReport](c.Breaches))),
		EmailVerify: Cached(ch, "hunter", "verify_email", cache.TTLEmail, Source[EmailVerification](SourceFunc[EmailVerification](c.VerifyEmail))),
		Phone:       Cached(ch, "numverify", "validate_phone", cache.TTLPhone, Source[PhoneValidation](SourceFunc[PhoneValidation](c.ValidatePhone))),
		Social:      c.NewSocialProber(socialDelay),
		IMEI:        SourceFunc[IMEIData](c.IMEI),
		Images:      c,
	}
}
