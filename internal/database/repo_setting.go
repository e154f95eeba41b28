package database

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepo 系统设置数据仓库
type SettingRepo struct {
	db *gorm.DB
}

func NewSettingRepo() *SettingRepo {
	return &SettingRepo{db: DB}
}

// Get 获取单个设置项
func (r *SettingRepo) Get(key string) (string, error) {
	var setting Setting
	if err := r.db.Where(&Setting{Key: key}).First(&setting).Error; err != nil {
		return "", err
	}
	return setting.Value, nil
}

// Set 设置单个配置项（存在则更新，不存在则创建）
func (r *SettingRepo) Set(key, value string) error {
	return r.db.Clauses(upsertSetting).Create(&Setting{Key: key, Value: value}).Error
}

// GetAll 获取所有设置项
func (r *SettingRepo) GetAll() (map[string]string, error) {
	var settings []Setting
	if err := r.db.Find(&settings).Error; err != nil {
		return nil, err
	}
	result := make(map[string]string, len(settings))
	for _, s := range settings {
		result[s.Key] = s.Value
	}
	return result, nil
}

// SetBatch 批量设置
func (r *SettingRepo) SetBatch(items map[string]string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for key, value := range items {
			if err := tx.Clauses(upsertSetting).Create(&Setting{Key: key, Value: value}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

var upsertSetting = clause.OnConflict{
	Columns:   []clause.Column{{Name: "key"}},
	DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
}
