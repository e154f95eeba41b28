package investigation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"osintdeck/internal/constants"
	"osintdeck/internal/enrich"
	"osintdeck/internal/graph"
	"osintdeck/internal/logger"
)

type linker func(g *graph.Graph)

// enrich calls the sources of kind in sequence and builds the normalized result.
func (s *Service) enrich(ctx context.Context, kind, q string, req Request) (any, linker, error) {
	switch kind {
	case constants.KindDomain:
		return s.domain(ctx, q)
	case constants.KindIP:
		return s.ip(ctx, q)
	case constants.KindEmail:
		return s.email(ctx, q)
	case constants.KindSocial:
		return s.social(ctx, q)
	case constants.KindPhone:
		return s.phone(ctx, q)
	case constants.KindImage:
		return s.image(ctx, q, req.Data)
	case constants.KindIMEI:
		return s.imei(ctx, q)
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
}

// fetch runs src and folds "nothing" into a nil result. Only context errors propagate.
func fetch[T any](ctx context.Context, name string, src enrich.Source[T], id string) (*T, error) {
	if src == nil {
		return nil, nil
	}
	out, err := src.Fetch(ctx, id)
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !errors.Is(err, enrich.ErrNotConfigured) {
		logger.Enrich.Warn().Err(err).Str("source", name).Msg("enrichment source failed")
	}
	return nil, nil
}

func (s *Service) domain(ctx context.Context, q string) (any, linker, error) {
	d, err := fetch(ctx, "domain", s.Sources.Domain, q)
	if err != nil {
		return nil, nil, err
	}
	if d == nil {
		return nil, nil, ErrNoData
	}
	res := domainResult(q, d)
	return res, func(g *graph.Graph) {
		g.AddNode(graph.Node{ID: q, Type: graph.TypeDomain, Label: q})
	}, nil
}

func (s *Service) ip(ctx context.Context, q string) (any, linker, error) {
	geo, err := fetch(ctx, "ipinfo", s.Sources.IPGeo, q)
	if err != nil {
		return nil, nil, err
	}
	sh, err := fetch(ctx, "shodan", s.Sources.Shodan, q)
	if err != nil {
		return nil, nil, err
	}
	vt, err := fetch(ctx, "virustotal", s.Sources.VirusTotal, q)
	if err != nil {
		return nil, nil, err
	}
	if geo == nil && sh == nil && vt == nil {
		return nil, nil, ErrNoData
	}
	res := ipResult(q, geo, sh, vt)
	return res, func(g *graph.Graph) {
		primary := graph.Node{ID: q, Type: graph.TypeIP, Label: q}
		g.AddNode(primary)
		var place []string
		for _, p := range []string{res.City, res.Country} {
			if p != "Unknown" {
				place = append(place, p)
			}
		}
		if len(place) > 0 {
			label := strings.Join(place, ", ")
			g.Link(primary, graph.Node{ID: "location:" + label, Type: graph.TypeLocation, Label: label}, "located_in")
		}
		if res.ThreatScore >= 70 {
			g.Link(primary, graph.Node{ID: "alert:" + q, Type: graph.TypeAlert, Label: fmt.Sprintf("Threat score %d", res.ThreatScore)}, "flagged")
		}
	}, nil
}

func (s *Service) email(ctx context.Context, q string) (any, linker, error) {
	br, err := fetch(ctx, "hibp", s.Sources.Breaches, q)
	if err != nil {
		return nil, nil, err
	}
	v, err := fetch(ctx, "hunter", s.Sources.EmailVerify, q)
	if err != nil {
		return nil, nil, err
	}
	if br == nil && v == nil {
		return nil, nil, ErrNoData
	}
	res := emailResult(q, br, v)
	return res, func(g *graph.Graph) {
		primary := graph.Node{ID: q, Type: graph.TypeEmail, Label: q}
		g.AddNode(primary)
		for _, b := range res.BreachList {
			g.Link(primary, graph.Node{ID: "breach:" + b.Name, Type: graph.TypeBreach, Label: b.Name}, "exposed_in")
		}
	}, nil
}

func (s *Service) social(ctx context.Context, q string) (any, linker, error) {
	rep, err := fetch(ctx, "social", s.Sources.Social, q)
	if err != nil {
		return nil, nil, err
	}
	if rep == nil {
		return nil, nil, ErrNoData
	}
	res := &SocialResult{Username: q, Found: rep.Found(), Profiles: nonNil(rep.Profiles)}
	return res, func(g *graph.Graph) {
		primary := graph.Node{ID: q, Type: graph.TypeUsername, Label: q}
		g.AddNode(primary)
		for _, p := range res.Profiles {
			if p.Exists {
				g.Link(primary, graph.Node{ID: "social:" + p.Platform + ":" + q, Type: graph.TypeSocial, Label: p.Platform}, "has_profile")
			}
		}
	}, nil
}

func (s *Service) phone(ctx context.Context, q string) (any, linker, error) {
	v, err := fetch(ctx, "numverify", s.Sources.Phone, q)
	if err != nil {
		return nil, nil, err
	}
	if v == nil {
		return nil, nil, ErrNoData
	}
	res := phoneResult(q, v)
	return res, func(g *graph.Graph) {
		primary := graph.Node{ID: q, Type: graph.TypePhone, Label: q}
		g.AddNode(primary)
		if res.Carrier != "Unknown" {
			g.Link(primary, graph.Node{ID: "carrier:" + res.Carrier, Type: graph.TypeCarrier, Label: res.Carrier}, "operated_by")
		}
		if res.Location != "Unknown" {
			g.Link(primary, graph.Node{ID: "location:" + res.Location, Type: graph.TypeLocation, Label: res.Location}, "registered_in")
		}
	}, nil
}

func (s *Service) image(ctx context.Context, name string, data []byte) (any, linker, error) {
	if s.Sources.Images == nil {
		return nil, nil, ErrNoData
	}
	rep, err := s.Sources.Images.AnalyzeImage(ctx, name, data)
	if err != nil {
		return nil, nil, err
	}
	return rep, func(g *graph.Graph) {
		primary := graph.Node{ID: "image:" + name, Type: graph.TypeImage, Label: name}
		g.AddNode(primary)
		if n := rep.EXIF["faces_detected"]; n != "" && n != "0" {
			g.Link(primary, graph.Node{ID: "person:" + name, Type: graph.TypePerson, Label: rep.IdentifiedPerson}, "depicts")
		}
		if loc := rep.EXIF["Location"]; loc != "" {
			g.Link(primary, graph.Node{ID: "location:" + loc, Type: graph.TypeLocation, Label: loc}, "taken_at")
		}
	}, nil
}

func (s *Service) imei(ctx context.Context, q string) (any, linker, error) {
	raw, err := fetch(ctx, "imei", s.Sources.IMEI, q)
	if err != nil {
		return nil, nil, err
	}
	if raw == nil {
		return nil, nil, ErrNoData
	}
	res := imeiResult(q, *raw)
	return res, func(g *graph.Graph) {
		primary := graph.Node{ID: q, Type: graph.TypeIMEI, Label: q}
		g.AddNode(primary)
		if res.Brand != "Unknown" || res.Model != "Unknown" {
			label := strings.TrimSpace(res.Brand + " " + res.Model)
			g.Link(primary, graph.Node{ID: "device:" + label, Type: graph.TypeDevice, Label: label}, "identifies")
		}
		if res.Stolen {
			g.Link(primary, graph.Node{ID: "alert:" + q, Type: graph.TypeAlert, Label: "Reported stolen"}, "flagged")
		}
	}, nil
}
