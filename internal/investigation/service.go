// Package investigation runs one indicator lookup end to end: validation, rate limiting,
// case linkage, enrichment, persistence, graph update and notification.
package investigation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/enrich"
	"osintdeck/internal/graph"
	"osintdeck/internal/logger"
	"osintdeck/internal/metrics"
	"osintdeck/internal/ratelimit"
	"osintdeck/internal/secrets"

	"gorm.io/gorm"
)

// Notifier receives user-facing messages.
type Notifier interface {
	Add(userID uint, title, message, typ string)
}

// Refresher recomputes dashboard aggregates after a new investigation lands.
type Refresher interface {
	Refresh()
}

// Deps wires the service. Notifier and Refresher are optional.
type Deps struct {
	Sources        *enrich.Sources
	Limiter        ratelimit.Limiter
	Budgets        ratelimit.Budgets
	Investigations *database.InvestigationRepo
	Cases          *database.CaseRepo
	Graphs         *graph.Store
	Notifier       Notifier
	Refresher      Refresher
}

type Service struct {
	Deps
}

func NewService(d Deps) *Service {
	if d.Budgets == nil {
		d.Budgets = ratelimit.DefaultBudgets()
	}
	if d.Graphs == nil {
		d.Graphs = graph.NewStore()
	}
	return &Service{Deps: d}
}

// Request is one lookup. Image lookups carry the upload in Data and its name in FileName.
type Request struct {
	Kind      string
	Query     string
	UserID    uint
	CaseID    *uint
	SessionID string
	FileName  string
	Data      []byte
}

// Outcome is what the caller renders.
type Outcome struct {
	Kind            string `json:"kind"`
	Query           string `json:"query"`
	Result          any    `json:"result"`
	InvestigationID uint   `json:"investigation_id,omitempty"`
	CaseID          *uint  `json:"case_id,omitempty"`
	Persisted       bool   `json:"persisted"`
	ThreatScore     int    `json:"threat_score"`
	ThreatLevel     string `json:"threat_level"`
}

// RateLimitError carries the limiter decision of a rejected request.
type RateLimitError struct {
	Kind     string
	Decision ratelimit.Decision
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s lookups, retry after %s", e.Kind, e.Decision.ResetAt.Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// autoCaseKinds get a case created per run when none is given.
var autoCaseKinds = map[string]string{
	constants.KindIP:     "IP",
	constants.KindEmail:  "Email",
	constants.KindSocial: "Social",
	constants.KindPhone:  "Phone",
	constants.KindIMEI:   "IMEI",
}

// Run executes req. Validation and rate-limit failures return before any service is
// contacted and leave nothing behind.
func (s *Service) Run(ctx context.Context, req Request) (*Outcome, error) {
	started := time.Now()
	kind := req.Kind
	if !constants.IsKind(kind) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	q := req.Query
	if kind == constants.KindImage {
		q = req.FileName
		if len(req.Data) == 0 {
			return nil, ErrEmptyQuery
		}
		if q == "" {
			q = "upload"
		}
	}
	q, err := Normalize(kind, q)
	if err != nil {
		metrics.InvestigationsTotal.WithLabelValues(kind, "invalid").Inc()
		return nil, err
	}
	if kind == constants.KindIMEI && !ValidIMEI(q) {
		metrics.InvestigationsTotal.WithLabelValues(kind, "invalid").Inc()
		return &Outcome{Kind: kind, Query: q, Result: invalidIMEI(q), ThreatLevel: constants.ThreatLow}, nil
	}
	if req.CaseID != nil {
		if _, err := s.Cases.Get(*req.CaseID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: %d", ErrCaseNotFound, *req.CaseID)
			}
			return nil, err
		}
	}

	if err := s.checkBudget(ctx, req.UserID, kind); err != nil {
		return nil, err
	}

	caseID := req.CaseID
	if caseID == nil {
		caseID = s.autoCase(req.UserID, kind, q)
	}

	result, link, err := s.enrich(ctx, kind, q, req)
	if err != nil {
		status := "error"
		if errors.Is(err, ErrNoData) {
			status = "no_data"
		}
		metrics.InvestigationsTotal.WithLabelValues(kind, status).Inc()
		logger.Investigation.Warn().Err(err).Str("kind", kind).Uint("user_id", req.UserID).Msg("investigation produced no result")
		s.notify(req.UserID, "Investigation failed", fmt.Sprintf("%s lookup returned no data. Ensure the service is configured.", kind), constants.NotifyError)
		return nil, err
	}

	out := &Outcome{Kind: kind, Query: q, Result: result, CaseID: caseID}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	out.ThreatScore = EstimateThreat(kind, string(raw))
	out.ThreatLevel = ThreatLevel(out.ThreatScore)

	inv := &database.Investigation{
		Kind:       kind,
		Query:      secrets.HashIfSensitive(kind, q),
		ResultJSON: string(raw),
		CaseID:     caseID,
	}
	if req.UserID != 0 {
		uid := req.UserID
		inv.UserID = &uid
	}
	if err := s.Investigations.Create(inv); err != nil {
		logger.Investigation.Error().Err(err).Str("kind", kind).Msg("failed to persist investigation")
		s.notify(req.UserID, "Investigation not saved", "The result could not be stored: "+err.Error(), constants.NotifyWarning)
	} else {
		out.InvestigationID = inv.ID
		out.Persisted = true
	}

	if req.SessionID != "" && link != nil {
		link(s.Graphs.Session(req.SessionID))
	}

	s.notify(req.UserID, "Investigation complete", fmt.Sprintf("%s lookup for %s finished", kind, displayQuery(kind, q)), constants.NotifySuccess)
	if s.Refresher != nil {
		s.Refresher.Refresh()
	}

	metrics.InvestigationsTotal.WithLabelValues(kind, "success").Inc()
	metrics.InvestigationDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	logger.Investigation.Info().Str("kind", kind).Uint("user_id", req.UserID).Uint("investigation_id", out.InvestigationID).
		Int("threat_score", out.ThreatScore).Dur("took", time.Since(started)).Msg("investigation completed")
	return out, nil
}

// checkBudget counts one request against the user's per-kind budget. A limiter
// backend failure lets the request through.
func (s *Service) checkBudget(ctx context.Context, userID uint, kind string) error {
	if s.Limiter == nil {
		return nil
	}
	b := s.Budgets.For(kind)
	dec, err := s.Limiter.Check(ctx, ratelimit.Key(userID, kind), b.Max, b.Window)
	if err != nil {
		logger.RateLimit.Warn().Err(err).Str("kind", kind).Msg("rate limiter unavailable, allowing request")
		return nil
	}
	if !dec.Allowed {
		metrics.RateLimitRejections.WithLabelValues(kind).Inc()
		metrics.InvestigationsTotal.WithLabelValues(kind, "rate_limited").Inc()
		logger.RateLimit.Info().Str("kind", kind).Uint("user_id", userID).Time("reset_at", dec.ResetAt).Msg("investigation rejected")
		return &RateLimitError{Kind: kind, Decision: dec}
	}
	return nil
}

// autoCase creates "{Kind}: {query}" for kinds that get one. Failure is reported and ignored.
func (s *Service) autoCase(userID uint, kind, q string) *uint {
	label, ok := autoCaseKinds[kind]
	if !ok || s.Cases == nil {
		return nil
	}
	c := &database.Case{
		Title:       fmt.Sprintf("%s: %s", label, q),
		Description: "Opened automatically by a " + kind + " investigation",
		Status:      constants.CaseOpen,
		Priority:    constants.PriorityMedium,
	}
	if userID != 0 {
		uid := userID
		c.OwnerUserID = &uid
	}
	if err := s.Cases.Create(c); err != nil {
		logger.Investigation.Error().Err(err).Str("kind", kind).Msg("failed to create case")
		s.notify(userID, "Case creation failed", err.Error(), constants.NotifyError)
		return nil
	}
	return &c.ID
}

func (s *Service) notify(userID uint, title, message, typ string) {
	if s.Notifier != nil {
		s.Notifier.Add(userID, title, message, typ)
	}
}

// displayQuery keeps raw email and phone values out of notifications.
func displayQuery(kind, q string) string {
	switch kind {
	case constants.KindEmail, constants.KindPhone:
		if len(q) > 4 {
			return q[:2] + "***" + q[len(q)-2:]
		}
		return "***"
	}
	return q
}
