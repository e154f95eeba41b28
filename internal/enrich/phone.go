package enrich

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// PhoneValidation is NumVerify's view of a number.
type PhoneValidation struct {
	Valid       bool   `json:"valid"`
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	Carrier     string `json:"carrier"`
	LineType    string `json:"line_type"`
	Location    string `json:"location"`
}

var phoneCleaner = strings.NewReplacer(" ", "", "-", "", "+", "")

// ValidatePhone queries {base}/validate with the number stripped of spaces, dashes and plus.
func (c *Client) ValidatePhone(ctx context.Context, phone string) (*PhoneValidation, error) {
	cfg, err := c.config(ctx, NumVerify, true)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("access_key", cfg.APIKey)
	q.Set("number", phoneCleaner.Replace(phone))
	q.Set("country_code", "")
	q.Set("format", "1")
	var out PhoneValidation
	if err := c.getJSON(ctx, NumVerify, 8*time.Second, cfg.URL()+"/validate?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
