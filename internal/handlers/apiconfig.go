package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/enrich"
	"osintdeck/internal/logger"
	"osintdeck/internal/secrets"
	"osintdeck/internal/web"
)

const defaultServiceRateLimit = 100

// APIConfigHandler manages third-party service credentials. Keys are sealed with box
// before they are stored and never returned in clear.
type APIConfigHandler struct {
	repo  *database.APIConfigRepo
	box   *secrets.Box
	audit auditor
}

func NewAPIConfigHandler(box *secrets.Box) *APIConfigHandler {
	return &APIConfigHandler{
		repo:  database.NewAPIConfigRepo(),
		box:   box,
		audit: newAuditor(),
	}
}

func (h *APIConfigHandler) Catalogue(w http.ResponseWriter, r *http.Request) {
	web.OK(w, r, enrich.Catalogue())
}

type apiConfigView struct {
	ServiceName    string   `json:"service_name"`
	APIKeyMasked   string   `json:"api_key_masked"`
	HasKey         bool     `json:"has_key"`
	BaseURL        string   `json:"base_url"`
	IsEnabled      bool     `json:"is_enabled"`
	RateLimit      int      `json:"rate_limit"`
	Notes          string   `json:"notes"`
	CredentialKeys []string `json:"credential_keys"`
	Supported      bool     `json:"supported"`
	UpdatedAt      string   `json:"updated_at"`
}

func (h *APIConfigHandler) view(row *database.APIConfig) apiConfigView {
	v := apiConfigView{
		ServiceName:    row.ServiceName,
		BaseURL:        row.BaseURL,
		IsEnabled:      row.IsEnabled,
		RateLimit:      row.RateLimit,
		Notes:          row.Notes,
		CredentialKeys: []string{},
		UpdatedAt:      row.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	_, v.Supported = enrich.Info(enrich.Provider(row.ServiceName))
	cfg, err := enrich.FromRow(row, h.box)
	if err != nil {
		logger.Config.Warn().Err(err).Str("service", row.ServiceName).Msg("api key cannot be opened")
		v.HasKey = row.APIKey != ""
		v.APIKeyMasked = "********"
		return v
	}
	v.HasKey = cfg.APIKey != ""
	v.APIKeyMasked = secrets.Mask(cfg.APIKey)
	for k := range cfg.Credentials {
		v.CredentialKeys = append(v.CredentialKeys, k)
	}
	sort.Strings(v.CredentialKeys)
	return v
}

func (h *APIConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.repo.List()
	if err != nil {
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}
	out := make([]apiConfigView, 0, len(rows))
	for i := range rows {
		out = append(out, h.view(&rows[i]))
	}
	web.OK(w, r, out)
}

type apiConfigRequest struct {
	ServiceName string            `json:"service_name"`
	APIKey      string            `json:"api_key"`
	BaseURL     string            `json:"base_url"`
	IsEnabled   *bool             `json:"is_enabled"`
	RateLimit   int               `json:"rate_limit"`
	Notes       string            `json:"notes"`
	Credentials map[string]string `json:"credentials"`
}

// Save creates or replaces a service row. An empty api_key keeps the stored one.
// Names outside the catalogue are saved with a warning in the response.
func (h *APIConfigHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req apiConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}
	name := strings.TrimSpace(req.ServiceName)
	if name == "" {
		web.FailErr(w, r, web.ErrAPIConfigName)
		return
	}
	p, supported := enrich.ParseProvider(name)
	if supported {
		name = string(p)
	}

	existing, err := h.repo.GetByService(name)
	if err != nil && !isNotFound(err) {
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}

	row := &database.APIConfig{
		ServiceName: name,
		BaseURL:     strings.TrimSpace(req.BaseURL),
		IsEnabled:   true,
		RateLimit:   req.RateLimit,
		Notes:       req.Notes,
	}
	if req.IsEnabled != nil {
		row.IsEnabled = *req.IsEnabled
	}
	if row.RateLimit <= 0 {
		row.RateLimit = defaultServiceRateLimit
	}
	if row.BaseURL == "" && supported {
		info, _ := enrich.Info(p)
		row.BaseURL = info.DefaultBaseURL
	}

	key := strings.TrimSpace(req.APIKey)
	switch {
	case key != "":
		if row.APIKey, err = h.box.Seal(key); err != nil {
			web.FailErr(w, r, web.ErrEncrypt)
			return
		}
	case existing != nil:
		row.APIKey = existing.APIKey
	}

	switch {
	case len(req.Credentials) > 0:
		raw, _ := json.Marshal(req.Credentials)
		if row.Credentials, err = h.box.Seal(string(raw)); err != nil {
			web.FailErr(w, r, web.ErrEncrypt)
			return
		}
	case existing != nil:
		row.Credentials = existing.Credentials
	}

	if err := h.repo.Upsert(row); err != nil {
		logger.Config.Error().Err(err).Str("service", name).Msg("api config save failed")
		web.FailErr(w, r, web.ErrAPIConfigSaveFail)
		return
	}
	saved, err := h.repo.GetByService(name)
	if err != nil {
		web.FailErr(w, r, web.ErrDBQuery)
		return
	}

	h.audit.log(r, constants.ActionAPIConfigSave, "success", name)
	resp := map[string]interface{}{"config": h.view(saved)}
	if !supported {
		logger.Config.Warn().Str("service", name).Msg("custom service name saved")
		resp["warning"] = "Saved custom service '" + name + "'. It is not used by any lookup; consider a supported name."
	}
	web.OK(w, r, resp)
}

func (h *APIConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		web.FailErr(w, r, web.ErrAPIConfigName)
		return
	}
	if err := h.repo.Delete(name); err != nil {
		if isNotFound(err) {
			web.FailErr(w, r, web.ErrAPIConfigNotFound)
			return
		}
		web.FailErr(w, r, web.ErrAPIConfigDelFail)
		return
	}
	h.audit.log(r, constants.ActionAPIConfigDelete, "success", name)
	web.OK(w, r, map[string]string{"message": "ok"})
}
