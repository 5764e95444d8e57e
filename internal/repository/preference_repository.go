package repository

import (
	"order_composer/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PreferenceRepository interface {
	Get(operator, key string) (string, error)
	Set(operator, key, value string) error
	Delete(operator, key string) error
}

type preferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

func (r *preferenceRepository) Get(operator, key string) (string, error) {
	var pref models.OperatorPreference
	err := r.db.Where("operator = ? AND key = ?", operator, key).First(&pref).Error
	if err != nil {
		return "", notFound(err)
	}
	return pref.Value, nil
}

func (r *preferenceRepository) Set(operator, key, value string) error {
	pref := &models.OperatorPreference{Operator: operator, Key: key, Value: value}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operator"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(pref).Error
}

func (r *preferenceRepository) Delete(operator, key string) error {
	return r.db.Where("operator = ? AND key = ?", operator, key).Delete(&models.OperatorPreference{}).Error
}
