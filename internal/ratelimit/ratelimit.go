// Package ratelimit throttles investigations per user and indicator kind.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of one Check call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter is a fixed-window counter keyed by an opaque string.
// A max of zero or less means the key is unlimited.
type Limiter interface {
	Check(ctx context.Context, key string, max int, window time.Duration) (Decision, error)
}

// Key builds "user:{id}:{resource}", or "anon:{resource}" when userID is zero.
func Key(userID uint, resource string) string {
	if userID == 0 {
		return "anon:" + resource
	}
	return fmt.Sprintf("user:%d:%s", userID, resource)
}

// Budget is the request allowance of one resource per window.
type Budget struct {
	Max    int
	Window time.Duration
}

// Budgets maps indicator kinds to their allowance.
type Budgets map[string]Budget

// DefaultBudgets returns a fresh copy of the built-in per-kind budgets.
func DefaultBudgets() Budgets {
	return Budgets{
		"domain": {Max: 5, Window: time.Minute},
		"ip":     {Max: 10, Window: time.Minute},
		"email":  {Max: 5, Window: time.Minute},
		"social": {Max: 5, Window: time.Minute},
		"phone":  {Max: 5, Window: time.Minute},
		"image":  {Max: 3, Window: time.Minute},
		"imei":   {Max: 5, Window: time.Minute},
	}
}

// For returns the budget of kind; unknown kinds get the strictest default.
func (b Budgets) For(kind string) Budget {
	if v, ok := b[kind]; ok {
		return v
	}
	return Budget{Max: 3, Window: time.Minute}
}

// Override replaces the budget of kind. A non-positive window keeps the current one.
func (b Budgets) Override(kind string, max int, window time.Duration) {
	cur := b.For(kind)
	cur.Max = max
	if window > 0 {
		cur.Window = window
	}
	b[kind] = cur
}
