package investigation

import (
	"encoding/json"
	"strings"

	"osintdeck/internal/constants"
)

// ThreatLevel maps a 0-100 score: 70 and above high, 40 and above medium.
func ThreatLevel(score int) string {
	switch {
	case score >= 70:
		return constants.ThreatHigh
	case score >= ThreatThreshold:
		return constants.ThreatMedium
	default:
		return constants.ThreatLow
	}
}

// threatView holds the fields EstimateThreat reads. Unknown keys are ignored.
type threatView struct {
	ThreatScore     *int   `json:"threat_score"`
	Breaches        *int   `json:"breaches"`
	FraudScore      *int   `json:"fraud_score"`
	Status          string `json:"status"`
	BlacklistStatus string `json:"blacklist_status"`
	Stolen          bool   `json:"stolen"`
	Found           int    `json:"found"`
}

// EstimateThreat derives a 0-100 score from a stored result. Unparseable JSON scores 0.
func EstimateThreat(kind, resultJSON string) int {
	var v threatView
	if resultJSON == "" || json.Unmarshal([]byte(resultJSON), &v) != nil {
		return 0
	}
	switch kind {
	case constants.KindIP:
		if v.ThreatScore != nil {
			return clamp(*v.ThreatScore)
		}
	case constants.KindEmail:
		if v.Breaches != nil {
			switch {
			case *v.Breaches >= 3:
				return 80
			case *v.Breaches > 0:
				return 50
			}
		}
	case constants.KindPhone:
		if v.FraudScore != nil {
			return clamp(*v.FraudScore)
		}
	case constants.KindIMEI:
		if v.Stolen || v.BlacklistStatus == "Blacklisted" {
			return 90
		}
	case constants.KindDomain:
		s := strings.ToLower(v.Status)
		if strings.Contains(s, "hold") || strings.Contains(s, "redemption") || strings.Contains(s, "pendingdelete") {
			return 50
		}
	}
	return 0
}

// ThreatThreshold is the score at which a result counts as a threat.
const ThreatThreshold = 40

// IsThreat reports whether a stored result counts toward the dashboard threat total.
func IsThreat(kind, resultJSON string) bool {
	return EstimateThreat(kind, resultJSON) >= ThreatThreshold
}

func clamp(n int) int {
	return max(0, min(n, 100))
}
