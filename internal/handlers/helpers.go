package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"osintdeck/internal/database"
	"osintdeck/internal/web"

	"gorm.io/gorm"
)

// auditor writes audit rows for the requesting user.
type auditor struct {
	repo *database.AuditLogRepo
}

func newAuditor() auditor {
	return auditor{repo: database.NewAuditLogRepo()}
}

func (a auditor) log(r *http.Request, action, result, detail string) {
	a.repo.Create(&database.AuditLog{
		UserID:   web.GetUserID(r),
		Username: web.GetUsername(r),
		Action:   action,
		Result:   result,
		Detail:   detail,
		IP:       web.ClientIP(r),
	})
}

// logAs records an action for a user that is not yet on the request context.
func (a auditor) logAs(r *http.Request, userID uint, username, action, result, detail string) {
	a.repo.Create(&database.AuditLog{
		UserID:   userID,
		Username: username,
		Action:   action,
		Result:   result,
		Detail:   detail,
		IP:       web.ClientIP(r),
	})
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func uintPtr(v uint) *uint {
	if v == 0 {
		return nil
	}
	return &v
}
