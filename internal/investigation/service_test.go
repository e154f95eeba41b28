package investigation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/enrich"
	"osintdeck/internal/graph"
	"osintdeck/internal/ratelimit"
	"osintdeck/internal/secrets"
	"osintdeck/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	userID              uint
	title, message, typ string
}

type recorder struct {
	mu        sync.Mutex
	notes     []note
	refreshes int
}

func (r *recorder) Add(userID uint, title, message, typ string) {
	r.mu.Lock()
	r.notes = append(r.notes, note{userID, title, message, typ})
	r.mu.Unlock()
}

func (r *recorder) Refresh() {
	r.mu.Lock()
	r.refreshes++
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notes {
		out = append(out, n.typ)
	}
	return out
}

func newService(t *testing.T, sources *enrich.Sources) (*Service, *recorder) {
	t.Helper()
	cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)
	rec := &recorder{}
	svc := NewService(Deps{
		Sources:        sources,
		Limiter:        ratelimit.NewMemoryLimiter(nil),
		Investigations: database.NewInvestigationRepo(),
		Cases:          database.NewCaseRepo(),
		Graphs:         graph.NewStore(),
		Notifier:       rec,
		Refresher:      rec,
	})
	return svc, rec
}

func unconfiguredSources() *enrich.Sources {
	return enrich.NewSources(enrich.NewClient(enrich.StaticConfigs{}, "test"), nil, 0)
}

func countInvestigations(t *testing.T) int64 {
	n, err := database.NewInvestigationRepo().Count()
	require.NoError(t, err)
	return n
}

func TestRun_IPFallsBackToMocks(t *testing.T) {
	svc, rec := newService(t, unconfiguredSources())

	out, err := svc.Run(context.Background(), Request{Kind: constants.KindIP, Query: "8.8.8.8", UserID: 1, SessionID: "s1"})
	require.NoError(t, err)
	require.NotNil(t, out)
	res := out.Result.(*IPResult)
	require.NotNil(t, res.Shodan)
	require.NotNil(t, res.VirusTotal)
	assert.True(t, res.Shodan.Mock)
	assert.Equal(t, "Unknown", res.City)
	assert.Equal(t, IPThreatScore(res.VirusTotal, res.Shodan), res.ThreatScore)
	assert.True(t, out.Persisted)
	require.NotNil(t, out.CaseID)

	c, err := database.NewCaseRepo().Get(*out.CaseID)
	require.NoError(t, err)
	assert.Equal(t, "IP: 8.8.8.8", c.Title)

	inv, err := database.NewInvestigationRepo().Get(out.InvestigationID)
	require.NoError(t, err)
	assert.Equal(t, "8.8.8.8", inv.Query)
	assert.Equal(t, out.ThreatScore, EstimateThreat(constants.KindIP, inv.ResultJSON))

	assert.Equal(t, []string{constants.NotifySuccess}, rec.types())
	assert.Equal(t, 1, rec.refreshes)
	assert.Equal(t, "8.8.8.8", svc.Graphs.Session("s1").Nodes()[0].ID)
}

func TestRun_FailedLookupKeepsAutoCase(t *testing.T) {
	svc, _ := newService(t, unconfiguredSources())

	_, err := svc.Run(context.Background(), Request{Kind: constants.KindEmail, Query: "e@example.com", UserID: 1})
	assert.ErrorIs(t, err, ErrNoData)
	assert.Zero(t, countInvestigations(t))

	cases, err := database.NewCaseRepo().ListAll()
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "Email: e@example.com", cases[0].Title)
}

func TestRun_DomainUnconfiguredPersistsNothing(t *testing.T) {
	svc, rec := newService(t, unconfiguredSources())

	out, err := svc.Run(context.Background(), Request{Kind: constants.KindDomain, Query: "example.com", UserID: 1})
	assert.ErrorIs(t, err, ErrNoData)
	assert.Nil(t, out)
	assert.Zero(t, countInvestigations(t))
	assert.Equal(t, []string{constants.NotifyError}, rec.types())

	cases, err := database.NewCaseRepo().ListAll()
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func breachSources(calls *int) *enrich.Sources {
	return &enrich.Sources{
		Breaches: enrich.SourceFunc[enrich.BreachReport](func(_ context.Context, email string) (*enrich.BreachReport, error) {
			*calls++
			return &enrich.BreachReport{Breaches: []enrich.Breach{
				{Name: "Adobe", Date: "2013-10-04"},
				{Name: "LinkedIn", Date: "2016-05-17"},
			}}, nil
		}),
		EmailVerify: enrich.SourceFunc[enrich.EmailVerification](func(context.Context, string) (*enrich.EmailVerification, error) {
			return nil, enrich.ErrNotConfigured
		}),
	}
}

func TestRun_EmailRateLimit(t *testing.T) {
	var calls int
	svc, _ := newService(t, breachSources(&calls))
	svc.Budgets.Override(constants.KindEmail, 5, time.Minute)

	for i := 0; i < 5; i++ {
		_, err := svc.Run(context.Background(), Request{Kind: constants.KindEmail, Query: "e@example.com", UserID: 7})
		require.NoError(t, err, "attempt %d", i+1)
	}
	out, err := svc.Run(context.Background(), Request{Kind: constants.KindEmail, Query: "e@example.com", UserID: 7})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrRateLimited)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.False(t, rle.Decision.Allowed)

	assert.Equal(t, int64(5), countInvestigations(t))
	assert.Equal(t, 5, calls)

	// budgets are per user
	_, err = svc.Run(context.Background(), Request{Kind: constants.KindEmail, Query: "e@example.com", UserID: 8})
	assert.NoError(t, err)
}

func TestRun_EmailHashedAndGraphed(t *testing.T) {
	var calls int
	svc, _ := newService(t, breachSources(&calls))

	out, err := svc.Run(context.Background(), Request{Kind: constants.KindEmail, Query: " E@Example.com ", UserID: 1, SessionID: "jti"})
	require.NoError(t, err)
	res := out.Result.(*EmailResult)
	assert.Equal(t, 2, res.Breaches)
	assert.Equal(t, "2016-05-17 (LinkedIn)", res.LastBreach)
	assert.Nil(t, res.Deliverable)
	assert.Equal(t, constants.ThreatMedium, out.ThreatLevel)

	inv, err := database.NewInvestigationRepo().Get(out.InvestigationID)
	require.NoError(t, err)
	assert.Equal(t, secrets.HashIdentifier("e@example.com"), inv.Query)

	g := svc.Graphs.Session("jti")
	assert.Len(t, g.Nodes(), 3)
	assert.Len(t, g.Edges(), 2)
	assert.Equal(t, "e@example.com", g.Nodes()[0].ID)

	_, err = svc.Run(context.Background(), Request{Kind: constants.KindEmail, Query: "e@example.com", UserID: 1, SessionID: "jti"})
	require.NoError(t, err)
	assert.Len(t, g.Nodes(), 3)
	assert.Len(t, g.Edges(), 2)
}

func TestRun_InvalidIMEI(t *testing.T) {
	called := false
	svc, rec := newService(t, &enrich.Sources{
		IMEI: enrich.SourceFunc[enrich.IMEIData](func(context.Context, string) (*enrich.IMEIData, error) {
			called = true
			return nil, nil
		}),
	})
	svc.Budgets.Override(constants.KindIMEI, 1, time.Minute)

	for i := 0; i < 3; i++ {
		out, err := svc.Run(context.Background(), Request{Kind: constants.KindIMEI, Query: "12345", UserID: 1})
		require.NoError(t, err)
		res := out.Result.(*IMEIResult)
		assert.False(t, res.Valid)
		assert.Equal(t, "Invalid Format", res.BlacklistStatus)
		assert.False(t, out.Persisted)
	}
	assert.False(t, called)
	assert.Zero(t, countInvestigations(t))
	assert.Empty(t, rec.types())
}

func TestRun_IMEIBlacklisted(t *testing.T) {
	svc, _ := newService(t, &enrich.Sources{
		IMEI: enrich.SourceFunc[enrich.IMEIData](func(_ context.Context, imei string) (*enrich.IMEIData, error) {
			return &enrich.IMEIData{"result": map[string]any{"brand": "Apple", "model": "iPhone 12", "blacklisted": true}}, nil
		}),
	})

	out, err := svc.Run(context.Background(), Request{Kind: constants.KindIMEI, Query: "490154203237518", UserID: 1, SessionID: "s"})
	require.NoError(t, err)
	res := out.Result.(*IMEIResult)
	assert.True(t, res.Valid)
	assert.True(t, res.LuhnValid)
	assert.Equal(t, "Apple", res.Brand)
	assert.Equal(t, "Blacklisted", res.BlacklistStatus)
	assert.True(t, res.Stolen)
	assert.Equal(t, 90, out.ThreatScore)

	types := map[string]bool{}
	for _, n := range svc.Graphs.Session("s").Nodes() {
		types[n.Type] = true
	}
	assert.True(t, types[graph.TypeAlert])
	assert.True(t, types[graph.TypeDevice])
}

func TestRun_InvalidInputUsesNoBudget(t *testing.T) {
	var calls int
	svc, _ := newService(t, breachSources(&calls))
	svc.Budgets.Override(constants.KindEmail, 1, time.Minute)

	for i := 0; i < 5; i++ {
		_, err := svc.Run(context.Background(), Request{Kind: constants.KindEmail, Query: "not-an-email", UserID: 1})
		assert.ErrorIs(t, err, ErrInvalidIndicator)
	}
	_, err := svc.Run(context.Background(), Request{Kind: constants.KindEmail, Query: "", UserID: 1})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = svc.Run(context.Background(), Request{Kind: constants.KindEmail, Query: "ok@example.com", UserID: 1})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRun_ExplicitCase(t *testing.T) {
	var calls int
	svc, _ := newService(t, breachSources(&calls))

	missing := uint(999)
	_, err := svc.Run(context.Background(), Request{Kind: constants.KindEmail, Query: "a@b.co", CaseID: &missing})
	assert.ErrorIs(t, err, ErrCaseNotFound)
	assert.Zero(t, calls)

	c := &database.Case{Title: "Phishing wave", Status: constants.CaseOpen, Priority: constants.PriorityHigh}
	require.NoError(t, database.NewCaseRepo().Create(c))
	out, err := svc.Run(context.Background(), Request{Kind: constants.KindEmail, Query: "a@b.co", CaseID: &c.ID})
	require.NoError(t, err)
	require.NotNil(t, out.CaseID)
	assert.Equal(t, c.ID, *out.CaseID)

	all, err := database.NewCaseRepo().ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRun_DomainNoAutoCase(t *testing.T) {
	svc, _ := newService(t, &enrich.Sources{
		Domain: enrich.SourceFunc[enrich.DomainInfo](func(_ context.Context, d string) (*enrich.DomainInfo, error) {
			return &enrich.DomainInfo{Registrar: "R", Status: "active", NameServers: []string{"ns1", "ns2"}, Created: "2001-02-03T00:00:00Z"}, nil
		}),
	})

	out, err := svc.Run(context.Background(), Request{Kind: constants.KindDomain, Query: "Example.COM.", UserID: 1})
	require.NoError(t, err)
	assert.Nil(t, out.CaseID)
	res := out.Result.(*DomainResult)
	assert.Equal(t, "example.com", res.Domain)
	assert.Equal(t, "2001-02-03", res.CreationDate)
	assert.Equal(t, "Unknown", res.ExpirationDate)
	assert.Equal(t, 2, res.DNSRecords)
}

func TestRun_PhoneRisk(t *testing.T) {
	svc, _ := newService(t, &enrich.Sources{
		Phone: enrich.SourceFunc[enrich.PhoneValidation](func(_ context.Context, n string) (*enrich.PhoneValidation, error) {
			return &enrich.PhoneValidation{Valid: true, CountryCode: "NG", LineType: "mobile"}, nil
		}),
	})

	out, err := svc.Run(context.Background(), Request{Kind: constants.KindPhone, Query: "+234 803-999-1234", UserID: 1})
	require.NoError(t, err)
	res := out.Result.(*PhoneResult)
	assert.Equal(t, "+2348039991234", res.Number)
	assert.Equal(t, "MTN", res.Carrier)
	assert.Equal(t, 78, res.FraudScore)
	assert.Equal(t, "High", res.RiskLevel)
	assert.Equal(t, "Africa/Lagos (WAT, UTC+1)", res.TimeZone)
	assert.Equal(t, constants.ThreatHigh, out.ThreatLevel)

	inv, err := database.NewInvestigationRepo().Get(out.InvestigationID)
	require.NoError(t, err)
	assert.True(t, secrets.IsHashed(inv.Query))
	var stored map[string]any
	require.NoError(t, json.Unmarshal([]byte(inv.ResultJSON), &stored))
	assert.Equal(t, "mobile", stored["type"])
}

func TestRun_SocialProfiles(t *testing.T) {
	svc, _ := newService(t, &enrich.Sources{
		Social: enrich.SourceFunc[enrich.SocialReport](func(_ context.Context, u string) (*enrich.SocialReport, error) {
			return &enrich.SocialReport{Profiles: []enrich.SocialProfile{
				{Platform: "GitHub", Username: u, Exists: true, URL: "https://github.com/" + u},
				{Platform: "Reddit", Username: u},
			}}, nil
		}),
	})

	out, err := svc.Run(context.Background(), Request{Kind: constants.KindSocial, Query: "@octocat", UserID: 1, SessionID: "s"})
	require.NoError(t, err)
	res := out.Result.(*SocialResult)
	assert.Equal(t, "octocat", res.Username)
	assert.Equal(t, 1, res.Found)

	cats := svc.Graphs.Session("s").NodesByCategory()
	assert.Len(t, cats[graph.CategoryIdentity], 1)
	assert.Len(t, cats[graph.CategoryEvidence], 1)
}

func TestRun_UnknownKind(t *testing.T) {
	svc, _ := newService(t, &enrich.Sources{})
	_, err := svc.Run(context.Background(), Request{Kind: "vin", Query: "x"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestEnrichRecent(t *testing.T) {
	svc, _ := newService(t, &enrich.Sources{
		Domain: enrich.SourceFunc[enrich.DomainInfo](func(_ context.Context, d string) (*enrich.DomainInfo, error) {
			return &enrich.DomainInfo{Registrar: "R", Status: "clientTransferProhibited", NameServers: []string{"a"}}, nil
		}),
		IPGeo: enrich.SourceFunc[enrich.IPGeo](func(_ context.Context, ip string) (*enrich.IPGeo, error) {
			return &enrich.IPGeo{Country: "US", ASN: "AS1"}, nil
		}),
		Breaches: enrich.SourceFunc[enrich.BreachReport](func(_ context.Context, e string) (*enrich.BreachReport, error) {
			return &enrich.BreachReport{Breaches: []enrich.Breach{{Name: "A"}, {Name: "B"}, {Name: "C"}}}, nil
		}),
	})
	repo := database.NewInvestigationRepo()
	for _, inv := range []database.Investigation{
		{Kind: constants.KindDomain, Query: "example.com"},
		{Kind: constants.KindDomain, Query: "example.com"},
		{Kind: constants.KindIP, Query: "1.2.3.4", ResultJSON: `{"threat_score": 75}`},
		{Kind: constants.KindEmail, Query: secrets.HashIdentifier("x@y.z")},
		{Kind: constants.KindEmail, Query: "imported@example.com"},
		{Kind: constants.KindSocial, Query: "someone"},
	} {
		inv := inv
		require.NoError(t, repo.Create(&inv))
	}

	got, err := svc.EnrichRecent(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, got, 3)
	byType := map[string]EnrichedIndicator{}
	for _, e := range got {
		byType[e.Type] = e
	}
	assert.Equal(t, constants.ThreatMedium, byType[constants.KindDomain].ThreatLevel)
	assert.Equal(t, constants.ThreatHigh, byType[constants.KindIP].ThreatLevel)
	assert.Equal(t, "imported@example.com", byType[constants.KindEmail].Value)
	assert.Equal(t, constants.ThreatHigh, byType[constants.KindEmail].ThreatLevel)
}
