package enrich

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DomainInfo is the normalized registration record of a domain.
type DomainInfo struct {
	Registrar   string   `json:"registrar"`
	Status      string   `json:"status"`
	NameServers []string `json:"ns"`
	Created     string   `json:"created"`
	Expires     string   `json:"expires"`
	Source      string   `json:"source"`
}

type rdapResponse struct {
	Status   []string `json:"status"`
	Entities []struct {
		Roles      []string `json:"roles"`
		VCardArray []any    `json:"vcardArray"`
	} `json:"entities"`
	Nameservers []struct {
		LDHName string `json:"ldhName"`
	} `json:"nameservers"`
	Events []struct {
		Action string `json:"eventAction"`
		Date   string `json:"eventDate"`
	} `json:"events"`
}

// Domain tries RDAP first, then WhoisXML. Neither configured yields ErrNotConfigured.
func (c *Client) Domain(ctx context.Context, domain string) (*DomainInfo, error) {
	out, err := c.RDAP(ctx, domain)
	if err == nil || !errors.Is(err, ErrNotConfigured) {
		return out, err
	}
	return c.WhoisXML(ctx, domain)
}

// RDAP queries {base}/domain/{domain}. The service needs no key but must be enabled.
func (c *Client) RDAP(ctx context.Context, domain string) (*DomainInfo, error) {
	cfg, err := c.config(ctx, RDAP, false)
	if err != nil {
		return nil, err
	}
	var data rdapResponse
	u := cfg.URL() + "/domain/" + url.PathEscape(domain)
	if err := c.getJSON(ctx, RDAP, 5*time.Second, u, nil, &data); err != nil {
		return nil, err
	}

	info := &DomainInfo{NameServers: []string{}, Source: string(RDAP)}
	for _, ent := range data.Entities {
		if !contains(ent.Roles, "registrar") {
			continue
		}
		info.Registrar = vcardName(ent.VCardArray)
		break
	}
	if len(data.Status) > 0 {
		info.Status = data.Status[0]
	}
	for _, ns := range data.Nameservers {
		if ns.LDHName != "" {
			info.NameServers = append(info.NameServers, ns.LDHName)
		}
	}
	for _, ev := range data.Events {
		switch ev.Action {
		case "registration":
			info.Created = ev.Date
		case "expiration":
			info.Expires = ev.Date
		}
	}
	if info.Registrar == "" {
		info.Registrar = "Unknown Registrar"
	}
	if info.Status == "" {
		info.Status = "active"
	}
	return info, nil
}

// vcardName reads the "fn" property of a jCard: ["vcard", [[name, params, type, value], ...]].
func vcardName(card []any) string {
	if len(card) < 2 {
		return ""
	}
	items, ok := card[1].([]any)
	if !ok {
		return ""
	}
	for _, it := range items {
		prop, ok := it.([]any)
		if !ok || len(prop) < 3 || prop[0] != "fn" {
			continue
		}
		last := prop[len(prop)-1]
		if len(prop) > 3 {
			last = prop[3]
		}
		s, _ := last.(string)
		return s
	}
	return ""
}

type whoisXMLResponse struct {
	WhoisRecord struct {
		RegistrarName string `json:"registrarName"`
		CreatedDate   string `json:"createdDate"`
		ExpiresDate   string `json:"expiresDate"`
		Status        string `json:"status"`
		NameServers   struct {
			HostNames []string `json:"hostNames"`
		} `json:"nameServers"`
		RegistryData struct {
			CreatedDate string `json:"createdDate"`
			ExpiresDate string `json:"expiresDate"`
			Status      string `json:"status"`
			NameServers struct {
				HostNames []string `json:"hostNames"`
			} `json:"nameServers"`
		} `json:"registryData"`
	} `json:"WhoisRecord"`
}

// WhoisXML queries the WhoisXML WhoisService endpoint.
func (c *Client) WhoisXML(ctx context.Context, domain string) (*DomainInfo, error) {
	cfg, err := c.config(ctx, WhoisXML, true)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("apiKey", cfg.APIKey)
	q.Set("domainName", domain)
	q.Set("outputFormat", "JSON")

	var data whoisXMLResponse
	if err := c.getJSON(ctx, WhoisXML, 10*time.Second, cfg.URL()+"?"+q.Encode(), http.Header{}, &data); err != nil {
		return nil, err
	}
	rec := data.WhoisRecord
	reg := rec.RegistryData
	info := &DomainInfo{
		Registrar:   firstNonEmpty(rec.RegistrarName, "Unknown Registrar"),
		Status:      firstNonEmpty(firstField(rec.Status), firstField(reg.Status), "active"),
		NameServers: rec.NameServers.HostNames,
		Created:     firstNonEmpty(rec.CreatedDate, reg.CreatedDate),
		Expires:     firstNonEmpty(rec.ExpiresDate, reg.ExpiresDate),
		Source:      string(WhoisXML),
	}
	if len(info.NameServers) == 0 {
		info.NameServers = reg.NameServers.HostNames
	}
	if info.NameServers == nil {
		info.NameServers = []string{}
	}
	return info, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// firstField returns the first whitespace separated token of s.
func firstField(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}
