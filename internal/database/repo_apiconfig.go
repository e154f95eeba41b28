package database

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// APIConfigRepo stores third-party service credentials. Keys are stored as given;
// encryption at rest is applied by the caller.
type APIConfigRepo struct {
	db *gorm.DB
}

func NewAPIConfigRepo() *APIConfigRepo {
	return &APIConfigRepo{db: DB}
}

func (r *APIConfigRepo) List() ([]APIConfig, error) {
	var items []APIConfig
	err := r.db.Order("service_name asc").Find(&items).Error
	return items, err
}

// GetByService returns gorm.ErrRecordNotFound when no row exists.
func (r *APIConfigRepo) GetByService(name string) (*APIConfig, error) {
	var cfg APIConfig
	if err := r.db.Where("service_name = ?", name).First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Upsert creates or replaces the row keyed by service_name.
func (r *APIConfigRepo) Upsert(cfg *APIConfig) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "service_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"api_key", "base_url", "is_enabled", "rate_limit", "notes", "credentials", "updated_at",
		}),
	}).Create(cfg).Error
}

func (r *APIConfigRepo) Delete(name string) error {
	res := r.db.Where("service_name = ?", name).Delete(&APIConfig{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
