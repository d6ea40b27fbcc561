package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"Decibel/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PrefsRepository 模块偏好设置的存取接口
// Values are stored as JSON, one row per (module, key).
type PrefsRepository interface {
	// Get decodes the stored value into dst. It reports false when the key was never set.
	Get(ctx context.Context, module, key string, dst any) (bool, error)
	Set(ctx context.Context, module, key string, value any) error
	Delete(ctx context.Context, module, key string) error
	// List returns the raw JSON values of a module, keyed by preference name.
	List(ctx context.Context, module string) (map[string]string, error)
}

type gormPrefsRepository struct {
	db *gorm.DB
}

// NewGormPrefsRepository 创建 GORM 偏好设置仓库
func NewGormPrefsRepository(db *gorm.DB) PrefsRepository {
	return &gormPrefsRepository{db: db}
}

func (r *gormPrefsRepository) Get(ctx context.Context, module, key string, dst any) (bool, error) {
	var pref model.Preference
	err := r.db.WithContext(ctx).
		Where("module = ? AND `key` = ?", module, key).
		First(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get preference %s/%s: %w", module, key, err)
	}

	if err := json.Unmarshal([]byte(pref.Value), dst); err != nil {
		return false, fmt.Errorf("decode preference %s/%s: %w", module, key, err)
	}
	return true, nil
}

// Set 写入偏好设置，已存在则覆盖
func (r *gormPrefsRepository) Set(ctx context.Context, module, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode preference %s/%s: %w", module, key, err)
	}

	pref := model.Preference{Module: module, Key: key, Value: string(data)}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "module"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&pref).Error
	if err != nil {
		return fmt.Errorf("set preference %s/%s: %w", module, key, err)
	}
	return nil
}

func (r *gormPrefsRepository) Delete(ctx context.Context, module, key string) error {
	return r.db.WithContext(ctx).
		Where("module = ? AND `key` = ?", module, key).
		Delete(&model.Preference{}).Error
}

func (r *gormPrefsRepository) List(ctx context.Context, module string) (map[string]string, error) {
	var prefs []model.Preference
	err := r.db.WithContext(ctx).
		Where("module = ?", module).
		Order("`key` ASC").
		Find(&prefs).Error
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(prefs))
	for _, p := range prefs {
		values[p.Key] = p.Value
	}
	return values, nil
}
