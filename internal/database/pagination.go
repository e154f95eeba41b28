package database

import (
	"strings"

	"gorm.io/gorm"
)

// Page carries list paging and ordering shared by every repo filter.
type Page struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

func (p *Page) Offset() int {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	return (p.Page - 1) * p.PageSize
}

// order returns an ORDER BY clause; sort columns outside allowed fall back to created_at.
func (p *Page) order(allowed ...string) string {
	col := "created_at"
	for _, a := range allowed {
		if p.SortBy == a {
			col = a
			break
		}
	}
	dir := "desc"
	if strings.EqualFold(p.SortOrder, "asc") {
		dir = "asc"
	}
	return col + " " + dir
}

// paginate counts q into total, then loads the requested page into dest.
func paginate(q *gorm.DB, p *Page, dest any, allowedSort ...string) (int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, err
	}
	offset := p.Offset()
	err := q.Order(p.order(append(allowedSort, "id", "created_at")...)).
		Offset(offset).
		Limit(p.PageSize).
		Find(dest).Error
	return total, err
}
