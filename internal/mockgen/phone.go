package mockgen

import (
	"strings"
)

// Risk levels produced by PhoneRisk.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// PhoneAssessment is the demo fraud heuristic for a phone number. It is not a
// real fraud model: numbers containing "99" are always scored as high risk.
type PhoneAssessment struct {
	Nigerian    bool     `json:"nigerian"`
	Carrier     string   `json:"carrier,omitempty"`
	FraudScore  int      `json:"fraud_score"`
	RiskLevel   string   `json:"risk_level"`
	RiskFactors []string `json:"risk_factors"`
}

var nigerianCarriers = map[string]string{
	"0803": "MTN", "0806": "MTN", "0813": "MTN", "0816": "MTN",
	"0810": "MTN", "0814": "MTN", "0903": "MTN", "0906": "MTN",
	"0805": "Glo", "0807": "Glo", "0811": "Glo", "0815": "Glo", "0905": "Glo",
	"0802": "Airtel", "0808": "Airtel", "0812": "Airtel", "0902": "Airtel", "0907": "Airtel",
	"0809": "9mobile", "0817": "9mobile", "0818": "9mobile", "0909": "9mobile",
}

const unknownNigerianCarrier = "Unknown Nigerian Carrier"

// PhoneRisk scores number. Nigerian numbers (+234, 08, 07, 09) get their carrier
// resolved from the 4-digit local prefix.
func PhoneRisk(number string) PhoneAssessment {
	var a PhoneAssessment
	for _, p := range []string{"+234", "08", "07", "09"} {
		if strings.HasPrefix(number, p) {
			a.Nigerian = true
			break
		}
	}
	if a.Nigerian {
		local := strings.Replace(number, "+234", "0", 1)
		if len(local) >= 4 {
			a.Carrier = nigerianCarriers[local[:4]]
		}
		if a.Carrier == "" {
			a.Carrier = unknownNigerianCarrier
		}
	}

	switch {
	case strings.Contains(number, "99"):
		a.FraudScore = 78
		a.RiskFactors = []string{"High Volume of Spam Reports", "Associated with Phishing Campaigns"}
	case a.Nigerian && a.Carrier == unknownNigerianCarrier:
		a.FraudScore = 45
		a.RiskFactors = []string{"Unregistered Carrier Prefix"}
	default:
		a.FraudScore = 12
		a.RiskFactors = []string{"No Recent Abuse Reports", "Active Service Line"}
	}
	a.RiskLevel = RiskLevel(a.FraudScore)
	return a
}

// RiskLevel maps a 0-100 score: above 70 High, above 40 Medium.
func RiskLevel(score int) string {
	switch {
	case score > 70:
		return RiskHigh
	case score > 40:
		return RiskMedium
	default:
		return RiskLow
	}
}
