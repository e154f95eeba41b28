package database

import (
	"gorm.io/gorm"
)

type ReportRepo struct {
	db *gorm.DB
}

func NewReportRepo() *ReportRepo {
	return &ReportRepo{db: DB}
}

func (r *ReportRepo) Create(rep *IntelligenceReport) error {
	return r.db.Create(rep).Error
}

func (r *ReportRepo) Get(id uint) (*IntelligenceReport, error) {
	var rep IntelligenceReport
	if err := r.db.First(&rep, id).Error; err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *ReportRepo) List(filter ReportFilter) ([]IntelligenceReport, int64, error) {
	var items []IntelligenceReport
	q := r.db.Model(&IntelligenceReport{})
	if filter.RelatedCaseID > 0 {
		q = q.Where("related_case_id = ?", filter.RelatedCaseID)
	}
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		q = q.Where("title LIKE ? OR summary LIKE ?", like, like)
	}
	total, err := paginate(q, &filter.Page, &items, "title")
	return items, total, err
}

func (r *ReportRepo) ListAll() ([]IntelligenceReport, error) {
	var items []IntelligenceReport
	err := r.db.Order("created_at desc, id desc").Find(&items).Error
	return items, err
}

func (r *ReportRepo) Delete(id uint) error {
	res := r.db.Delete(&IntelligenceReport{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type ReportFilter struct {
	Page
	RelatedCaseID uint
	Keyword       string
}
