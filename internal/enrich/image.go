package enrich

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// ImageReport combines local metadata with optional Vision analysis.
type ImageReport struct {
	IdentifiedPerson string            `json:"identified_person"`
	Confidence       string            `json:"confidence"`
	Emails           []string          `json:"emails"`
	SocialProfiles   []string          `json:"social_profiles"`
	EXIF             map[string]string `json:"exif"`
}

// ExtractMetadata reads format, dimensions and EXIF fields from raw image bytes.
func ExtractMetadata(name string, data []byte) map[string]string {
	meta := map[string]string{}
	if name != "" {
		meta["Filename"] = name
	}
	meta["File Size"] = strconv.Itoa(len(data))

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		meta["extraction_error"] = "Error reading image: " + err.Error()
	} else {
		meta["Format"] = strings.ToUpper(format)
		meta["Width"] = strconv.Itoa(cfg.Width)
		meta["Height"] = strconv.Itoa(cfg.Height)
		meta["Size"] = fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
	}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		meta["EXIF_Status"] = "No EXIF data - image may be a screenshot, edited, or format doesn't support EXIF"
		return meta
	}
	w := &exifFields{out: map[string]string{}}
	_ = x.Walk(w)
	for k, v := range w.out {
		meta[k] = v
	}

	mk, model := tagString(x, exif.Make), tagString(x, exif.Model)
	if d := strings.TrimSpace(mk + " " + model); d != "" {
		meta["Device"] = d
	}
	if t, err := x.DateTime(); err == nil {
		meta["Date Taken"] = t.Format("2006:01:02 15:04:05")
	}
	if lat, lon, err := x.LatLong(); err == nil {
		meta["GPS_Latitude"] = fmt.Sprintf("%.6f", lat)
		meta["GPS_Longitude"] = fmt.Sprintf("%.6f", lon)
		meta["Location"] = fmt.Sprintf("%.6f, %.6f", lat, lon)
	}
	if w.count == 0 {
		meta["EXIF_Status"] = "No readable EXIF data found in image"
	} else {
		meta["EXIF_Fields_Found"] = strconv.Itoa(w.count)
	}
	return meta
}

type exifFields struct {
	out   map[string]string
	count int
}

func (w *exifFields) Walk(name exif.FieldName, tag *tiff.Tag) error {
	switch name {
	case exif.Make, exif.Model, exif.DateTime, exif.DateTimeOriginal, exif.MakerNote, exif.UserComment:
		return nil
	}
	if strings.HasPrefix(string(name), "GPS") {
		return nil
	}
	var v string
	if tag.Format() == tiff.StringVal {
		v, _ = tag.StringVal()
	} else {
		v = tag.String()
	}
	if v = strings.TrimSpace(v); v != "" {
		w.out[string(name)] = v
		w.count++
	}
	return nil
}

func tagString(x *exif.Exif, name exif.FieldName) string {
	t, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := t.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

var visionKeyChars = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateVisionKey checks the Google Cloud API key shape without calling Google.
func ValidateVisionKey(key string) error {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return fmt.Errorf("%w: API key is empty", ErrInvalidAPIKey)
	case !strings.HasPrefix(key, "AIza"):
		return fmt.Errorf("%w: Google Cloud API keys must start with 'AIza'", ErrInvalidAPIKey)
	case len(key) != 39:
		return fmt.Errorf("%w: expected 39 characters, got %d", ErrInvalidAPIKey, len(key))
	case !visionKeyChars.MatchString(key):
		return fmt.Errorf("%w: API key contains invalid characters", ErrInvalidAPIKey)
	}
	return nil
}

type visionFace struct {
	DetectionConfidence float64 `json:"detectionConfidence"`
	Joy                 string  `json:"joyLikelihood"`
	Sorrow              string  `json:"sorrowLikelihood"`
	Anger               string  `json:"angerLikelihood"`
	Surprise            string  `json:"surpriseLikelihood"`
}

type visionResponse struct {
	Responses []struct {
		Faces  []visionFace `json:"faceAnnotations"`
		Labels []struct {
			Description string `json:"description"`
		} `json:"labelAnnotations"`
		Web struct {
			Entities []struct {
				Description string `json:"description"`
			} `json:"webEntities"`
		} `json:"webDetection"`
		Text []struct {
			Description string `json:"description"`
		} `json:"textAnnotations"`
		SafeSearch *struct {
			Adult    string `json:"adult"`
			Violence string `json:"violence"`
		} `json:"safeSearchAnnotation"`
	} `json:"responses"`
}

// AnalyzeImage always returns local metadata. Vision runs when ImageRecognition is configured;
// its failures are reported inside the result, not as an error.
func (c *Client) AnalyzeImage(ctx context.Context, name string, data []byte) (*ImageReport, error) {
	rep := &ImageReport{
		IdentifiedPerson: "Metadata extracted (no API configured)",
		Confidence:       "N/A",
		Emails:           []string{},
		SocialProfiles:   []string{},
		EXIF:             ExtractMetadata(name, data),
	}
	cfg, err := c.config(ctx, ImageRecognition, true)
	if errors.Is(err, ErrNotConfigured) {
		return rep, nil
	}
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(cfg.APIKey)
	if err := ValidateVisionKey(key); err != nil {
		rep.EXIF["api_error"] = "Configuration Error: " + strings.TrimPrefix(err.Error(), ErrInvalidAPIKey.Error()+": ") + ". Get a valid key from Google Cloud Console."
		rep.IdentifiedPerson = "API key validation failed"
		return rep, nil
	}

	body, _ := json.Marshal(map[string]any{
		"requests": []any{map[string]any{
			"image": map[string]string{"content": base64.StdEncoding.EncodeToString(data)},
			"features": []map[string]any{
				{"type": "FACE_DETECTION", "maxResults": 10},
				{"type": "LABEL_DETECTION", "maxResults": 10},
				{"type": "WEB_DETECTION", "maxResults": 10},
				{"type": "TEXT_DETECTION"},
				{"type": "SAFE_SEARCH_DETECTION"},
			},
		}},
	})
	req, err := http.NewRequest(http.MethodPost, cfg.URL()+"/images:annotate?key="+url.QueryEscape(key), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp visionResponse
	if err := c.request(ctx, ImageRecognition, 30*time.Second, req, &resp); err != nil {
		rep.EXIF["api_error"] = visionError(err)
		rep.IdentifiedPerson = "API request failed"
		return rep, nil
	}
	applyVision(rep, &resp)
	return rep, nil
}

func visionError(err error) string {
	var se *StatusError
	if !errors.As(err, &se) {
		return "Network Error: " + err.Error() + ". Check internet connection."
	}
	switch se.Code {
	case http.StatusBadRequest:
		detail := "Invalid request format or parameters"
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal([]byte(se.Body), &body) == nil && body.Error.Message != "" {
			detail = body.Error.Message
		}
		return "Bad Request (400): " + detail + ". Check API key format and request structure."
	case http.StatusUnauthorized:
		return "Authentication Failed (401): Invalid API key. Generate a new key in Google Cloud Console under APIs & Services, Credentials."
	case http.StatusForbidden:
		return "Access Denied (403): Cloud Vision API may not be enabled for your project, or quota exceeded. Check Google Cloud Console."
	case http.StatusTooManyRequests:
		return "Rate Limit Exceeded (429): Too many requests. Free tier: 1,000/month. Wait before retrying."
	}
	return fmt.Sprintf("HTTP Error (%d): %s", se.Code, se.Body)
}

func applyVision(rep *ImageReport, resp *visionResponse) {
	if len(resp.Responses) == 0 {
		return
	}
	v := resp.Responses[0]
	if n := len(v.Faces); n > 0 {
		rep.IdentifiedPerson = fmt.Sprintf("%d face(s) detected via Google Vision AI", n)
		rep.Confidence = "High"
		if c := v.Faces[0].DetectionConfidence; c > 0 {
			rep.Confidence = fmt.Sprintf("%.1f%%", c*100)
		}
		rep.EXIF["faces_detected"] = strconv.Itoa(n)
		for i, f := range v.Faces[:min(n, 3)] {
			var emotions []string
			for _, e := range [][2]string{{"Joy", f.Joy}, {"Sorrow", f.Sorrow}, {"Anger", f.Anger}, {"Surprise", f.Surprise}} {
				if e[1] != "" && e[1] != "UNKNOWN" && e[1] != "VERY_UNLIKELY" {
					emotions = append(emotions, e[0]+": "+e[1])
				}
			}
			if len(emotions) > 0 {
				rep.EXIF[fmt.Sprintf("face_%d_emotions", i+1)] = strings.Join(emotions, ", ")
			}
		}
	} else {
		rep.IdentifiedPerson = "No faces detected (Google Vision AI)"
		rep.Confidence = "N/A"
	}

	var labels []string
	for _, l := range v.Labels[:min(len(v.Labels), 5)] {
		labels = append(labels, l.Description)
	}
	if len(labels) > 0 {
		rep.EXIF["detected_labels"] = strings.Join(labels, ", ")
	}
	var entities []string
	for _, e := range v.Web.Entities[:min(len(v.Web.Entities), 3)] {
		if e.Description != "" {
			entities = append(entities, e.Description)
		}
	}
	if len(entities) > 0 {
		rep.EXIF["web_entities"] = strings.Join(entities, ", ")
	}
	if len(v.Text) > 0 {
		if t := strings.TrimSpace(v.Text[0].Description); t != "" {
			if len(t) > 200 {
				t = t[:200] + "..."
			}
			rep.EXIF["detected_text"] = t
		}
	}
	if v.SafeSearch != nil {
		rep.EXIF["safe_search_adult"] = firstNonEmpty(v.SafeSearch.Adult, "UNKNOWN")
		rep.EXIF["safe_search_violence"] = firstNonEmpty(v.SafeSearch.Violence, "UNKNOWN")
	}
}
