package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/taskminder-go-api/internal/models"
)

// PreferenceRepository persists flat key-value preferences per namespace.
type PreferenceRepository interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	All(ctx context.Context, namespace string) (map[string]string, error)
	Set(ctx context.Context, namespace, key, value string) error
	Delete(ctx context.Context, namespace string, keys ...string) error
	Watch() (<-chan struct{}, func())
}

type preferenceRepository struct {
	db   *gorm.DB
	feed *ChangeFeed
}

// NewPreferenceRepository constructs a repository backed by GORM.
func NewPreferenceRepository(db *gorm.DB, feed *ChangeFeed) PreferenceRepository {
	return &preferenceRepository{db: db, feed: feed}
}

func (r *preferenceRepository) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	var pref models.Preference
	err := r.db.WithContext(ctx).
		Where("namespace = ? AND key = ?", namespace, key).
		First(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return pref.Value, true, nil
}

func (r *preferenceRepository) All(ctx context.Context, namespace string) (map[string]string, error) {
	var prefs []models.Preference
	if err := r.db.WithContext(ctx).Where("namespace = ?", namespace).Find(&prefs).Error; err != nil {
		return nil, err
	}

	values := make(map[string]string, len(prefs))
	for _, pref := range prefs {
		values[pref.Key] = pref.Value
	}
	return values, nil
}

func (r *preferenceRepository) Set(ctx context.Context, namespace, key, value string) error {
	pref := models.Preference{Namespace: namespace, Key: key, Value: value}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&pref).Error
}

func (r *preferenceRepository) Delete(ctx context.Context, namespace string, keys ...string) error {
	query := r.db.WithContext(ctx).Where("namespace = ?", namespace)
	if len(keys) > 0 {
		query = query.Where("key IN ?", keys)
	}
	return query.Delete(&models.Preference{}).Error
}

// Watch signals after every committed preference write.
func (r *preferenceRepository) Watch() (<-chan struct{}, func()) {
	return r.feed.Subscribe(preferenceTable)
}

const preferenceTable = "preferences"
