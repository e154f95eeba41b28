package enrich

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Breach is one HIBP breach record.
type Breach struct {
	Name        string   `json:"name"`
	Date        string   `json:"date"`
	DataClasses []string `json:"data_classes"`
	Description string   `json:"description"`
}

// BreachReport wraps the breaches of an account. An empty list means a clean account.
type BreachReport struct {
	Breaches []Breach `json:"breaches"`
}

// Breaches queries {base}/breachedaccount/{email}; 404 means no breaches.
func (c *Client) Breaches(ctx context.Context, email string) (*BreachReport, error) {
	cfg, err := c.config(ctx, HIBP, true)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Name        string   `json:"Name"`
		BreachDate  string   `json:"BreachDate"`
		DataClasses []string `json:"DataClasses"`
		Description string   `json:"Description"`
	}
	h := http.Header{}
	h.Set("hibp-api-key", cfg.APIKey)
	err = c.getJSON(ctx, HIBP, 10*time.Second, cfg.URL()+"/breachedaccount/"+url.PathEscape(email), h, &raw)
	if StatusOf(err) == http.StatusNotFound {
		return &BreachReport{Breaches: []Breach{}}, nil
	}
	if err != nil {
		return nil, err
	}
	out := &BreachReport{Breaches: make([]Breach, 0, len(raw))}
	for _, b := range raw {
		if b.Name == "" {
			b.Name = "Unknown"
		}
		if b.DataClasses == nil {
			b.DataClasses = []string{}
		}
		out.Breaches = append(out.Breaches, Breach{Name: b.Name, Date: b.BreachDate, DataClasses: b.DataClasses, Description: b.Description})
	}
	return out, nil
}

// EmailVerification is Hunter's deliverability verdict.
type EmailVerification struct {
	Deliverable bool `json:"deliverable"`
	Disposable  bool `json:"disposable"`
	Webmail     bool `json:"webmail"`
	AcceptAll   bool `json:"accept_all"`
	Score       int  `json:"score"`
}

// VerifyEmail queries {base}/email-verifier.
func (c *Client) VerifyEmail(ctx context.Context, email string) (*EmailVerification, error) {
	cfg, err := c.config(ctx, Hunter, true)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("email", email)
	q.Set("api_key", cfg.APIKey)
	var data struct {
		Data struct {
			Status     string `json:"status"`
			Disposable bool   `json:"disposable"`
			Webmail    bool   `json:"webmail"`
			AcceptAll  bool   `json:"accept_all"`
			Score      int    `json:"score"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, Hunter, 8*time.Second, cfg.URL()+"/email-verifier?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}
	d := data.Data
	return &EmailVerification{
		Deliverable: d.Status == "valid",
		Disposable:  d.Disposable,
		Webmail:     d.Webmail,
		AcceptAll:   d.AcceptAll,
		Score:       d.Score,
	}, nil
}
