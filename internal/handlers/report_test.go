package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/enrich"
	"osintdeck/internal/investigation"
	"osintdeck/internal/ratelimit"
	"osintdeck/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportCreateListDelete(t *testing.T) {
	cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	handler := NewReportHandler(newInvestigationService(nil))

	w := do(handler.Create, http.MethodPost, "/api/v1/reports", `{"title":"APT notes","indicators":" 1.2.3.4 ,, evil.com "}`, asAdmin())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rep := respData(t, w)
	assert.Equal(t, "1.2.3.4, evil.com", rep["indicators"])
	id := fmt.Sprintf("%.0f", rep["id"].(float64))

	w = do(handler.Create, http.MethodPost, "/api/v1/reports", `{"title":"orphan","related_case_id":77}`, asAdmin())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "CASE_NOT_FOUND", errorCode(t, w))

	w = do(handler.List, http.MethodGet, "/api/v1/reports", "", asAdmin())
	assert.Len(t, respList(t, w), 1)

	w = do(handler.Delete, http.MethodDelete, "/api/v1/reports/"+id, "", asAdmin(), withPath("id", id))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(handler.Delete, http.MethodDelete, "/api/v1/reports/"+id, "", asAdmin(), withPath("id", id))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportEnrich(t *testing.T) {
	cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	invRepo := database.NewInvestigationRepo()
	require.NoError(t, invRepo.Create(&database.Investigation{Kind: constants.KindIP, Query: "8.8.8.8", ResultJSON: `{}`}))
	require.NoError(t, invRepo.Create(&database.Investigation{Kind: constants.KindIP, Query: "8.8.8.8", ResultJSON: `{}`}))

	sources := &enrich.Sources{
		IPGeo: enrich.SourceFunc[enrich.IPGeo](func(_ context.Context, ip string) (*enrich.IPGeo, error) {
			return &enrich.IPGeo{Country: "US", ASN: "AS15169", Org: "AS15169 Google LLC"}, nil
		}),
	}
	svc := investigation.NewService(investigation.Deps{
		Sources:        sources,
		Limiter:        ratelimit.NewMemoryLimiter(nil),
		Investigations: invRepo,
		Cases:          database.NewCaseRepo(),
	})
	handler := NewReportHandler(svc)

	w := do(handler.Enrich, http.MethodPost, "/api/v1/reports/enrich", `{"title":"Weekly IP review","indicators":"manual.example"}`, asAdmin())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := respData(t, w)

	indicators := data["indicators"].([]interface{})
	require.Len(t, indicators, 1, "duplicate queries are enriched once")
	ind := indicators[0].(map[string]interface{})
	assert.Equal(t, "8.8.8.8", ind["value"])
	assert.Equal(t, "US", ind["details"].(map[string]interface{})["country"])

	rep := data["report"].(map[string]interface{})
	assert.Equal(t, "Weekly IP review", rep["title"])
	assert.Equal(t, "manual.example, 8.8.8.8", rep["indicators"])
}
