package web

import (
	"net/http"
	"strconv"

	"osintdeck/internal/database"
)

type PageQuery struct {
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
	Keyword   string `json:"keyword"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func ParsePageQuery(r *http.Request) PageQuery {
	v := r.URL.Query()
	q := PageQuery{
		Page:      1,
		PageSize:  20,
		SortBy:    "created_at",
		SortOrder: "desc",
		Keyword:   v.Get("keyword"),
		StartTime: v.Get("start_time"),
		EndTime:   v.Get("end_time"),
	}
	if p := QueryInt(r, "page", 0); p > 0 {
		q.Page = p
	}
	if p := QueryInt(r, "page_size", 0); p > 0 && p <= 100 {
		q.PageSize = p
	}
	if s := v.Get("sort_by"); s != "" {
		q.SortBy = s
	}
	if s := v.Get("sort_order"); s == "asc" || s == "desc" {
		q.SortOrder = s
	}
	return q
}

func (q *PageQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// DB converts the query into the repository paging filter.
func (q PageQuery) DB() database.Page {
	return database.Page{Page: q.Page, PageSize: q.PageSize, SortBy: q.SortBy, SortOrder: q.SortOrder}
}

// QueryInt parses an integer query parameter, returning def when absent or malformed.
func QueryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return n
}

// QueryUint is QueryInt for ids; negative values yield zero.
func QueryUint(r *http.Request, key string) uint {
	n := QueryInt(r, key, 0)
	if n < 0 {
		return 0
	}
	return uint(n)
}

// PathID parses the {name} path wildcard as a positive id.
func PathID(r *http.Request, name string) (uint, bool) {
	n, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
