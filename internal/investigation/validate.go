package investigation

import (
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"osintdeck/internal/constants"
)

var (
	ErrEmptyQuery       = errors.New("empty query")
	ErrInvalidIndicator = errors.New("invalid indicator format")
	ErrUnknownKind      = errors.New("unknown indicator kind")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrNoData           = errors.New("no data returned; ensure the service is configured")
	ErrCaseNotFound     = errors.New("case not found")
)

var sentinels = []error{ErrEmptyQuery, ErrInvalidIndicator, ErrUnknownKind, ErrRateLimited, ErrNoData, ErrCaseNotFound}

// ErrorClass names the sentinel behind err. Unlike err.Error() it never quotes the
// indicator, so it is safe to store.
func ErrorClass(err error) string {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

var (
	domainPattern = regexp.MustCompile(`^(?i:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)
	emailPattern  = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	phonePattern  = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// Normalize trims q and checks its shape for kind. The returned value is what the
// enrichment clients receive.
func Normalize(kind, q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", ErrEmptyQuery
	}
	switch kind {
	case constants.KindDomain:
		q = strings.ToLower(strings.TrimSuffix(q, "."))
		if !domainPattern.MatchString(q) {
			return "", fmt.Errorf("%w: %q is not a domain", ErrInvalidIndicator, q)
		}
	case constants.KindIP:
		addr, err := netip.ParseAddr(q)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not an IP address", ErrInvalidIndicator, q)
		}
		q = addr.String()
	case constants.KindEmail:
		q = strings.ToLower(q)
		if !emailPattern.MatchString(q) {
			return "", fmt.Errorf("%w: %q is not an email address", ErrInvalidIndicator, q)
		}
	case constants.KindPhone:
		q = phoneSeparators.Replace(q)
		if !phonePattern.MatchString(q) {
			return "", fmt.Errorf("%w: %q is not a phone number", ErrInvalidIndicator, q)
		}
	case constants.KindSocial:
		q = strings.TrimPrefix(q, "@")
		if strings.ContainsAny(q, " /?#") {
			return "", fmt.Errorf("%w: %q is not a username", ErrInvalidIndicator, q)
		}
	case constants.KindIMEI:
		q = strings.ReplaceAll(q, " ", "")
	case constants.KindImage:
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return q, nil
}

// ValidIMEI reports whether s is exactly 15 digits.
func ValidIMEI(s string) bool {
	return len(s) == 15 && digitsPattern.MatchString(s)
}

// Luhn reports whether the digit string passes the Luhn checksum.
func Luhn(s string) bool {
	if s == "" || !digitsPattern.MatchString(s) {
		return false
	}
	sum := 0
	double := false
	for i := len(s) - 1; i >= 0; i-- {
		d := int(s[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
