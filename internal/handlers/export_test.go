package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedInvestigation(t *testing.T, kind, query string) *database.Investigation {
	t.Helper()
	inv := &database.Investigation{Kind: kind, Query: query, ResultJSON: `{"ok":true}`, CreatedAt: time.Now().UTC()}
	require.NoError(t, database.NewInvestigationRepo().Create(inv))
	return inv
}

func TestExport_InvestigationsJSON(t *testing.T) {
	cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	seedInvestigation(t, constants.KindIP, "8.8.8.8")
	seedInvestigation(t, constants.KindDomain, "example.com")
	handler := NewExportHandler(nil)
	handler.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	w := do(handler.Export, http.MethodGet, "/api/v1/export/investigations", "", asAdmin(), withPath("resource", "investigations"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename="investigations_20260301_120000.json"`, w.Header().Get("Content-Disposition"))

	var records []investigationRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 2)
	queries := []string{records[0].Query, records[1].Query}
	assert.ElementsMatch(t, []string{"8.8.8.8", "example.com"}, queries)
}

func TestExport_CasesCSV(t *testing.T) {
	cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	require.NoError(t, database.NewCaseRepo().Create(&database.Case{
		Title: "Phishing, round 2", Description: "multi\nline", Status: constants.CaseOpen, Priority: constants.PriorityHigh,
	}))
	handler := NewExportHandler(nil)

	w := do(handler.Export, http.MethodGet, "/api/v1/export/cases?format=csv", "", asAdmin(), withPath("resource", "cases"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))

	rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"id", "title", "description", "status", "priority", "created_at"}, rows[0])
	assert.Equal(t, "Phishing, round 2", rows[1][1])
	assert.Equal(t, "multi\nline", rows[1][2])
}

func TestExport_Errors(t *testing.T) {
	cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	analyst := createTestUser(t, "analyst", "password123", constants.RoleAnalyst)
	handler := NewExportHandler(nil)

	w := do(handler.Export, http.MethodGet, "/api/v1/export/cases?format=xml", "", asAdmin(), withPath("resource", "cases"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "EXPORT_FORMAT", errorCode(t, w))

	w = do(handler.Export, http.MethodGet, "/api/v1/export/users", "", asAdmin(), withPath("resource", "users"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "EXPORT_RESOURCE", errorCode(t, w))

	w = do(handler.Export, http.MethodGet, "/api/v1/export/audit", "", as(analyst), withPath("resource", "audit"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(handler.Export, http.MethodGet, "/api/v1/export/audit", "", asAdmin(), withPath("resource", "audit"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestImportInvestigations(t *testing.T) {
	cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	existing := seedInvestigation(t, constants.KindIP, "1.1.1.1")
	refreshed := 0
	handler := NewExportHandler(func() { refreshed++ })

	payload := `[
		{"id": ` + itoa(existing.ID) + `, "kind": "ip", "query": "1.1.1.1"},
		{"id": 500, "kind": "domain", "query": "evil.example", "result_json": "{}", "created_at": "2025-01-02T03:04:05Z"},
		{"kind": "spaceship", "query": "x"},
		{"kind": "ip", "query": ""}
	]`
	w := do(handler.ImportInvestigations, http.MethodPost, "/api/v1/import/investigations", payload, asAdmin())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := respData(t, w)
	assert.Equal(t, float64(4), data["received"])
	assert.Equal(t, float64(1), data["imported"])
	assert.Equal(t, float64(1), data["skipped"])
	assert.Equal(t, float64(2), data["invalid"])
	assert.Equal(t, 1, refreshed)

	got, err := database.NewInvestigationRepo().Get(500)
	require.NoError(t, err)
	assert.Equal(t, "evil.example", got.Query)
	assert.Equal(t, 2025, got.CreatedAt.Year())

	w = do(handler.ImportInvestigations, http.MethodPost, "/api/v1/import/investigations", `{"not":"an array"}`, asAdmin())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "IMPORT_MALFORMED", errorCode(t, w))
	assert.Equal(t, 1, refreshed)
}

func TestExportImport_RoundTrip(t *testing.T) {
	cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	caseID := uint(7)
	orig := []database.Investigation{
		{Kind: constants.KindIP, Query: "8.8.8.8", ResultJSON: `{"threat_score":12,"open_ports":[53,443]}`,
			CreatedAt: time.Date(2025, 5, 6, 7, 8, 9, 123456789, time.UTC)},
		{Kind: constants.KindEmail, Query: "5f0c1a0e9b", ResultJSON: `{"breaches":[]}`, CaseID: &caseID,
			CreatedAt: time.Date(2025, 5, 7, 0, 0, 0, 1, time.UTC)},
	}
	repo := database.NewInvestigationRepo()
	for i := range orig {
		require.NoError(t, repo.Create(&orig[i]))
	}
	handler := NewExportHandler(nil)

	w := do(handler.Export, http.MethodGet, "/api/v1/export/investigations", "", asAdmin(), withPath("resource", "investigations"))
	require.Equal(t, http.StatusOK, w.Code)
	exported := w.Body.String()

	require.NoError(t, database.DB.Exec("DELETE FROM investigations").Error)

	w = do(handler.ImportInvestigations, http.MethodPost, "/api/v1/import/investigations", exported, asAdmin())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), respData(t, w)["imported"])

	for _, want := range orig {
		got, err := repo.Get(want.ID)
		require.NoError(t, err)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Query, got.Query)
		assert.Equal(t, want.ResultJSON, got.ResultJSON)
		assert.Equal(t, want.CaseID, got.CaseID)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %s != %s", got.CreatedAt, want.CreatedAt)
	}
}
