package database

import (
	"gorm.io/gorm"
)

type CaseRepo struct {
	db *gorm.DB
}

func NewCaseRepo() *CaseRepo {
	return &CaseRepo{db: DB}
}

func (r *CaseRepo) Create(c *Case) error {
	return r.db.Create(c).Error
}

func (r *CaseRepo) Get(id uint) (*Case, error) {
	var c Case
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CaseRepo) List(filter CaseFilter) ([]Case, int64, error) {
	var cases []Case
	q := r.db.Model(&Case{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", filter.Priority)
	}
	if filter.OwnerUserID > 0 {
		q = q.Where("owner_user_id = ?", filter.OwnerUserID)
	}
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		q = q.Where("title LIKE ? OR description LIKE ?", like, like)
	}
	total, err := paginate(q, &filter.Page, &cases, "updated_at", "title", "priority", "status")
	return cases, total, err
}

// CaseUpdate holds the editable fields; nil fields are left unchanged.
type CaseUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
}

func (r *CaseRepo) Update(id uint, u CaseUpdate) (*Case, error) {
	fields := map[string]interface{}{}
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	if u.Description != nil {
		fields["description"] = *u.Description
	}
	if u.Status != nil {
		fields["status"] = *u.Status
	}
	if u.Priority != nil {
		fields["priority"] = *u.Priority
	}
	c, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := r.db.Model(c).Updates(fields).Error; err != nil {
			return nil, err
		}
	}
	return r.Get(id)
}

// Delete removes the case only; investigations keep their case_id as a dangling reference.
func (r *CaseRepo) Delete(id uint) error {
	res := r.db.Delete(&Case{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *CaseRepo) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.Model(&Case{}).Select("status, count(*) as count").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// ListAll returns every case, newest first (export path).
func (r *CaseRepo) ListAll() ([]Case, error) {
	var cases []Case
	err := r.db.Order("created_at desc, id desc").Find(&cases).Error
	return cases, err
}

type CaseFilter struct {
	Page
	Status      string
	Priority    string
	OwnerUserID uint
	Keyword     string
}
