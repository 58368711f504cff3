package sampling

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/models"
	"gorm.io/gorm"
)

var ErrCohortNotFound = errors.New("sampled cohort not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&models.SampledCohort{})
}

func (r *Repository) Save(ctx context.Context, cohort *models.SampledCohort) error {
	return r.db.WithContext(ctx).Create(cohort).Error
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.SampledCohort, error) {
	var cohort models.SampledCohort
	result := r.db.WithContext(ctx).First(&cohort, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrCohortNotFound
	}
	return &cohort, result.Error
}
