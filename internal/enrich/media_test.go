package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocial_Probe(t *testing.T) {
	var heads int
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			heads++
		}
		if strings.HasSuffix(r.URL.Path, "/alice") {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	c := clientFor(StaticConfigs{SocialSearch: {Enabled: true}})
	p := c.NewSocialProber(0)
	p.Platforms = []Platform{{"One", srv.URL + "/one/%s"}, {"Two", srv.URL + "/two/x%s"}}

	rep, err := p.Fetch(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, rep.Profiles, 2)
	assert.True(t, rep.Profiles[0].Exists)
	assert.Equal(t, srv.URL+"/one/alice", rep.Profiles[0].URL)
	assert.False(t, rep.Profiles[1].Exists)
	assert.Empty(t, rep.Profiles[1].URL)
	assert.Equal(t, 1, rep.Found())
	assert.Equal(t, 2, heads)
}

func TestSocial_GitHubAPI(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/octocat", r.URL.Path)
		assert.Equal(t, "token ghp_test", r.Header.Get("Authorization"))
		writeJSON(w, 200, map[string]any{"html_url": "https://github.com/octocat", "name": "The Octocat", "public_repos": 8, "followers": 100})
	})
	c := clientFor(StaticConfigs{SocialSearch: {Enabled: true, BaseURL: srv.URL, Notes: `{"github":"ghp_test"}`}})
	p := c.NewSocialProber(0)
	p.Platforms = []Platform{{"GitHub", "unused/%s"}}

	rep, err := p.Fetch(context.Background(), "octocat")
	require.NoError(t, err)
	require.Len(t, rep.Profiles, 1)
	prof := rep.Profiles[0]
	assert.True(t, prof.Exists)
	assert.Equal(t, "https://github.com/octocat", prof.URL)
	assert.Equal(t, "The Octocat", prof.ProfileData["name"])
}

func TestSocial_NotConfigured(t *testing.T) {
	c := clientFor(StaticConfigs{})
	rep, err := c.NewSocialProber(0).Fetch(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, rep)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtractMetadata_PNG(t *testing.T) {
	meta := ExtractMetadata("dot.png", testPNG(t))
	assert.Equal(t, "PNG", meta["Format"])
	assert.Equal(t, "4x3", meta["Size"])
	assert.Equal(t, "dot.png", meta["Filename"])
	assert.Contains(t, meta["EXIF_Status"], "No EXIF data")
}

func TestExtractMetadata_Garbage(t *testing.T) {
	meta := ExtractMetadata("x.bin", []byte("not an image"))
	assert.Contains(t, meta["extraction_error"], "Error reading image")
}

func TestValidateVisionKey(t *testing.T) {
	good := "AIza" + strings.Repeat("a", 35)
	assert.NoError(t, ValidateVisionKey(good))
	assert.NoError(t, ValidateVisionKey("  "+good+" "))

	for _, bad := range []string{"", "abcd" + strings.Repeat("a", 35), "AIza123", "AIza" + strings.Repeat("a", 34) + "!"} {
		assert.ErrorIs(t, ValidateVisionKey(bad), ErrInvalidAPIKey, bad)
	}
}

func TestAnalyzeImage_NoAPI(t *testing.T) {
	c := clientFor(StaticConfigs{})
	rep, err := c.AnalyzeImage(context.Background(), "dot.png", testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "Metadata extracted (no API configured)", rep.IdentifiedPerson)
	assert.Equal(t, "N/A", rep.Confidence)
	assert.Equal(t, "PNG", rep.EXIF["Format"])
}

func TestAnalyzeImage_InvalidKey(t *testing.T) {
	c := clientFor(StaticConfigs{ImageRecognition: {Enabled: true, APIKey: "bad"}})
	rep, err := c.AnalyzeImage(context.Background(), "dot.png", testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "API key validation failed", rep.IdentifiedPerson)
	assert.Contains(t, rep.EXIF["api_error"], "Configuration Error")
}

func TestAnalyzeImage_Vision(t *testing.T) {
	key := "AIza" + strings.Repeat("b", 35)
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images:annotate", r.URL.Path)
		assert.Equal(t, key, r.URL.Query().Get("key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, 200, map[string]any{"responses": []any{map[string]any{
			"faceAnnotations":      []any{map[string]any{"detectionConfidence": 0.934, "joyLikelihood": "LIKELY", "angerLikelihood": "VERY_UNLIKELY"}},
			"labelAnnotations":     []any{map[string]any{"description": "Person"}, map[string]any{"description": "Smile"}},
			"textAnnotations":      []any{map[string]any{"description": strings.Repeat("t", 250)}},
			"safeSearchAnnotation": map[string]any{"adult": "VERY_UNLIKELY"},
		}}})
	})
	c := clientFor(StaticConfigs{ImageRecognition: {Enabled: true, APIKey: key, BaseURL: srv.URL}})

	rep, err := c.AnalyzeImage(context.Background(), "face.png", testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "1 face(s) detected via Google Vision AI", rep.IdentifiedPerson)
	assert.Equal(t, "93.4%", rep.Confidence)
	assert.Equal(t, "Joy: LIKELY", rep.EXIF["face_1_emotions"])
	assert.Equal(t, "Person, Smile", rep.EXIF["detected_labels"])
	assert.Len(t, rep.EXIF["detected_text"], 203)
	assert.Equal(t, "VERY_UNLIKELY", rep.EXIF["safe_search_adult"])
	assert.Equal(t, "UNKNOWN", rep.EXIF["safe_search_violence"])
}

func TestAnalyzeImage_VisionErrors(t *testing.T) {
	key := "AIza" + strings.Repeat("c", 35)
	cases := map[int]string{
		http.StatusBadRequest:      "Bad Request (400): bad image",
		http.StatusUnauthorized:    "Authentication Failed (401)",
		http.StatusForbidden:       "Access Denied (403)",
		http.StatusTooManyRequests: "Rate Limit Exceeded (429)",
		http.StatusBadGateway:      "HTTP Error (502)",
	}
	for code, want := range cases {
		srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, code, map[string]any{"error": map[string]any{"message": "bad image"}})
		})
		c := clientFor(StaticConfigs{ImageRecognition: {Enabled: true, APIKey: key, BaseURL: srv.URL}})

		rep, err := c.AnalyzeImage(context.Background(), "x.png", testPNG(t))
		require.NoError(t, err)
		assert.Equal(t, "API request failed", rep.IdentifiedPerson)
		assert.Contains(t, rep.EXIF["api_error"], want)
	}
}

func TestIMEIAttempts_Order(t *testing.T) {
	attempts := imeiAttempts("https://api.imei.info", true)
	require.GreaterOrEqual(t, len(attempts), 3)
	assert.Equal(t, imeiAttempt{"/api/v1/imei/%[1]s", authKeyParam}, attempts[0])
	assert.Equal(t, imeiAttempt{"/api/v1/imei/%[1]s", authBearer}, attempts[1])
	assert.Equal(t, imeiAttempt{"/api/v1/imei/%[1]s", authNone}, attempts[2])
	assert.Len(t, attempts, 3+len(imeiEndpoints)*3)

	generic := imeiAttempts("https://imei.example", false)
	assert.Len(t, generic, len(imeiEndpoints))
	for _, a := range generic {
		assert.Equal(t, authPlain, a.auth)
	}
}

func TestIMEI_FirstSuccessWins(t *testing.T) {
	var seen []string
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path)
		if r.URL.Path == "/api/v1/imei/490154203237518" && r.Header.Get("X-API-KEY") == "ik" {
			writeJSON(w, 200, map[string]any{"brand": "Apple", "model": "iPhone", "blacklist": "clean"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	c := clientFor(StaticConfigs{IMEIService: {Enabled: true, BaseURL: srv.URL, Credentials: map[string]string{"api_key": "ik"}}})

	data, err := c.IMEI(context.Background(), "490154203237518")
	require.NoError(t, err)
	assert.Equal(t, "Apple", (*data)["brand"])
	assert.Equal(t, []string{"/imei", "/imei", "/imei", "/api/imei", "/api/imei", "/api/imei", "/api/v1/imei/490154203237518"}, seen)
}

func TestIMEI_AllFail(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := clientFor(StaticConfigs{IMEIService: {Enabled: true, BaseURL: srv.URL}})

	data, err := c.IMEI(context.Background(), "490154203237518")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, data)
}
