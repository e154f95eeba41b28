package investigation

import (
	"context"
	"time"

	"osintdeck/internal/constants"
	"osintdeck/internal/secrets"

	"golang.org/x/time/rate"
)

// EnrichedIndicator is one re-checked indicator offered for a report.
type EnrichedIndicator struct {
	Type        string         `json:"type"`
	Value       string         `json:"value"`
	ThreatLevel string         `json:"threat_level"`
	Details     map[string]any `json:"details"`
}

const (
	maxEnrichedIndicators = 10
	enrichInterval        = 100 * time.Millisecond
)

var enrichable = map[string]bool{constants.KindDomain: true, constants.KindIP: true, constants.KindEmail: true}

// EnrichRecent re-checks up to 10 unique indicators from the latest limit investigations.
// Hashed email queries are skipped since the address is no longer known.
func (s *Service) EnrichRecent(ctx context.Context, limit int) ([]EnrichedIndicator, error) {
	if limit <= 0 {
		limit = 50
	}
	recent, err := s.Investigations.ListRecent(limit)
	if err != nil {
		return nil, err
	}
	out := []EnrichedIndicator{}
	pace := rate.NewLimiter(rate.Every(enrichInterval), 1)
	seen := map[string]bool{}
	for _, inv := range recent {
		if len(out) >= maxEnrichedIndicators {
			break
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if seen[inv.Query] {
			continue
		}
		seen[inv.Query] = true
		if enrichable[inv.Kind] {
			if err := pace.Wait(ctx); err != nil {
				return out, err
			}
		}

		switch inv.Kind {
		case constants.KindDomain:
			d, err := fetch(ctx, "domain", s.Sources.Domain, inv.Query)
			if err != nil || d == nil {
				continue
			}
			level := constants.ThreatLow
			if d.Status == "clientTransferProhibited" {
				level = constants.ThreatMedium
			}
			out = append(out, EnrichedIndicator{Type: inv.Kind, Value: inv.Query, ThreatLevel: level, Details: map[string]any{
				"registrar": orUnknown(d.Registrar),
				"created":   dateOnly(d.Created),
				"ns_count":  len(d.NameServers),
			}})
		case constants.KindIP:
			geo, err := fetch(ctx, "ipinfo", s.Sources.IPGeo, inv.Query)
			if err != nil || geo == nil {
				continue
			}
			out = append(out, EnrichedIndicator{Type: inv.Kind, Value: inv.Query, ThreatLevel: ThreatLevel(EstimateThreat(inv.Kind, inv.ResultJSON)), Details: map[string]any{
				"country": geo.Country,
				"asn":     geo.ASN,
				"org":     geo.Org,
			}})
		case constants.KindEmail:
			if secrets.IsHashed(inv.Query) {
				continue
			}
			br, err := fetch(ctx, "hibp", s.Sources.Breaches, inv.Query)
			if err != nil || br == nil {
				continue
			}
			level := constants.ThreatLow
			latest := "None"
			switch n := len(br.Breaches); {
			case n >= 3:
				level = constants.ThreatHigh
			case n > 0:
				level = constants.ThreatMedium
			}
			if len(br.Breaches) > 0 {
				latest = br.Breaches[0].Name
			}
			out = append(out, EnrichedIndicator{Type: inv.Kind, Value: inv.Query, ThreatLevel: level, Details: map[string]any{
				"breaches": len(br.Breaches),
				"latest":   latest,
			}})
		}
	}
	return out, nil
}
