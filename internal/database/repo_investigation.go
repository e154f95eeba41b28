package database

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvestigationRepo struct {
	db *gorm.DB
}

func NewInvestigationRepo() *InvestigationRepo {
	return &InvestigationRepo{db: DB}
}

func (r *InvestigationRepo) Create(inv *Investigation) error {
	return r.db.Create(inv).Error
}

func (r *InvestigationRepo) Get(id uint) (*Investigation, error) {
	var inv Investigation
	if err := r.db.First(&inv, id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvestigationRepo) List(filter InvestigationFilter) ([]Investigation, int64, error) {
	var items []Investigation
	q := r.db.Model(&Investigation{})
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.UserID > 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.CaseID > 0 {
		q = q.Where("case_id = ?", filter.CaseID)
	}
	if filter.StartTime != "" {
		q = q.Where("created_at >= ?", filter.StartTime)
	}
	if filter.EndTime != "" {
		q = q.Where("created_at <= ?", filter.EndTime)
	}
	total, err := paginate(q, &filter.Page, &items, "kind")
	return items, total, err
}

// ListRecent returns up to limit rows, highest id first.
func (r *InvestigationRepo) ListRecent(limit int) ([]Investigation, error) {
	var items []Investigation
	err := r.db.Order("id desc").Limit(limit).Find(&items).Error
	return items, err
}

func (r *InvestigationRepo) ListRecentByKind(kind string, limit int) ([]Investigation, error) {
	var items []Investigation
	err := r.db.Where("kind = ?", kind).Order("id desc").Limit(limit).Find(&items).Error
	return items, err
}

// ListSince returns rows created at or after t, oldest first.
func (r *InvestigationRepo) ListSince(t time.Time) ([]Investigation, error) {
	var items []Investigation
	err := r.db.Where("created_at >= ?", t).Order("created_at asc").Find(&items).Error
	return items, err
}

// ListAll returns every row ordered by id (export path).
func (r *InvestigationRepo) ListAll() ([]Investigation, error) {
	var items []Investigation
	err := r.db.Order("id asc").Find(&items).Error
	return items, err
}

func (r *InvestigationRepo) Count() (int64, error) {
	var count int64
	err := r.db.Model(&Investigation{}).Count(&count).Error
	return count, err
}

func (r *InvestigationRepo) CountByKind() (map[string]int64, error) {
	var rows []struct {
		Kind  string
		Count int64
	}
	err := r.db.Model(&Investigation{}).Select("kind, count(*) as count").Group("kind").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Kind] = row.Count
	}
	return out, nil
}

// DayCount is the number of investigations created on one calendar day.
type DayCount struct {
	Day   string `json:"day"` // 2006-01-02
	Count int64  `json:"count"`
}

// AggregateByDay buckets the last days calendar days ending at now, oldest first.
// Days without rows are present with a zero count.
func (r *InvestigationRepo) AggregateByDay(days int, now time.Time) ([]DayCount, error) {
	if days <= 0 {
		return nil, nil
	}
	start := startOfDay(now).AddDate(0, 0, -(days - 1))
	items, err := r.ListSince(start)
	if err != nil {
		return nil, err
	}
	out := make([]DayCount, days)
	index := make(map[string]int, days)
	for i := range out {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		out[i].Day = day
		index[day] = i
	}
	for _, inv := range items {
		if i, ok := index[inv.CreatedAt.In(now.Location()).Format("2006-01-02")]; ok {
			out[i].Count++
		}
	}
	return out, nil
}

// Import inserts rows keeping their ids and timestamps. Rows whose id already
// exists are skipped; the number actually inserted is returned.
func (r *InvestigationRepo) Import(items []Investigation) (int, error) {
	inserted := 0
	err := r.db.Transaction(func(tx *gorm.DB) error {
		for i := range items {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&items[i])
			if res.Error != nil {
				return res.Error
			}
			inserted += int(res.RowsAffected)
		}
		if inserted > 0 && tx.Dialector.Name() == "postgres" {
			return tx.Exec("SELECT setval(pg_get_serial_sequence('investigations', 'id'), (SELECT MAX(id) FROM investigations))").Error
		}
		return nil
	})
	return inserted, err
}

type InvestigationFilter struct {
	Page
	Kind      string
	UserID    uint
	CaseID    uint
	StartTime string
	EndTime   string
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
