package investigation

import "strings"

// 国家代码 → 时区
var countryTimeZones = map[string]string{
	"NG": "Africa/Lagos (WAT, UTC+1)",
	"GH": "Africa/Accra (GMT, UTC+0)",
	"KE": "Africa/Nairobi (EAT, UTC+3)",
	"ZA": "Africa/Johannesburg (SAST, UTC+2)",
	"EG": "Africa/Cairo (EET, UTC+2)",
	"US": "America/New_York (EST, UTC-5)",
	"CA": "America/Toronto (EST, UTC-5)",
	"MX": "America/Mexico_City (CST, UTC-6)",
	"BR": "America/Sao_Paulo (BRT, UTC-3)",
	"GB": "Europe/London (GMT, UTC+0)",
	"IE": "Europe/Dublin (GMT, UTC+0)",
	"FR": "Europe/Paris (CET, UTC+1)",
	"DE": "Europe/Berlin (CET, UTC+1)",
	"NL": "Europe/Amsterdam (CET, UTC+1)",
	"ES": "Europe/Madrid (CET, UTC+1)",
	"IT": "Europe/Rome (CET, UTC+1)",
	"RU": "Europe/Moscow (MSK, UTC+3)",
	"TR": "Europe/Istanbul (TRT, UTC+3)",
	"AE": "Asia/Dubai (GST, UTC+4)",
	"IN": "Asia/Kolkata (IST, UTC+5:30)",
	"CN": "Asia/Shanghai (CST, UTC+8)",
	"JP": "Asia/Tokyo (JST, UTC+9)",
	"SG": "Asia/Singapore (SGT, UTC+8)",
	"AU": "Australia/Sydney (AEST, UTC+10)",
}

// dial prefix → country, longest prefixes first
var dialPrefixes = []struct{ prefix, country string }{
	{"234", "NG"}, {"233", "GH"}, {"254", "KE"}, {"971", "AE"},
	{"27", "ZA"}, {"20", "EG"}, {"52", "MX"}, {"55", "BR"},
	{"44", "GB"}, {"33", "FR"}, {"49", "DE"}, {"31", "NL"}, {"34", "ES"}, {"39", "IT"},
	{"90", "TR"}, {"91", "IN"}, {"86", "CN"}, {"81", "JP"}, {"65", "SG"}, {"61", "AU"},
	{"7", "RU"}, {"1", "US"},
}

// TimeZoneFor resolves the zone of a country code, falling back to the dial prefix of number.
func TimeZoneFor(countryCode, number string) string {
	if tz, ok := countryTimeZones[strings.ToUpper(countryCode)]; ok {
		return tz
	}
	n := strings.TrimPrefix(number, "+")
	for _, p := range dialPrefixes {
		if strings.HasPrefix(n, p.prefix) {
			return countryTimeZones[p.country]
		}
	}
	return "Unknown"
}
