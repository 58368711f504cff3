package classify

import (
	"context"

	"github.com/i-dot-ai/medguard-paper-sub001/pkg/codelist"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/models"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&models.ClassifiedEvent{}, &models.MedicationChange{})
}

// LoadEvents returns all coded events, dropping rows whose code is on
// the exclusion list.
func (r *Repository) LoadEvents(ctx context.Context, excluded codelist.CodeSet) ([]models.CodedEvent, error) {
	var events []models.CodedEvent
	if err := r.db.WithContext(ctx).
		Order("patient_id, event_date, id").
		Find(&events).Error; err != nil {
		return nil, err
	}
	if excluded.Len() == 0 {
		return events, nil
	}
	kept := events[:0]
	for _, ev := range events {
		if !excluded.Contains(ev.Code) {
			kept = append(kept, ev)
		}
	}
	return kept, nil
}

func (r *Repository) Replace(ctx context.Context, events []models.ClassifiedEvent, changes []models.MedicationChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := session.Delete(&models.ClassifiedEvent{}).Error; err != nil {
			return err
		}
		if err := session.Delete(&models.MedicationChange{}).Error; err != nil {
			return err
		}
		if len(events) > 0 {
			if err := tx.CreateInBatches(events, 500).Error; err != nil {
				return err
			}
		}
		if len(changes) > 0 {
			if err := tx.CreateInBatches(changes, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ReviewedPatients returns ids of patients with at least one review
// whose outcome matches any of the given values. With no values given,
// any review qualifies.
func (r *Repository) ReviewedPatients(ctx context.Context, outcomes ...string) ([]string, error) {
	var ids []string
	query := r.db.WithContext(ctx).
		Model(&models.ClassifiedEvent{}).
		Distinct("patient_id").
		Where("was_review = ?", true)
	if len(outcomes) > 0 {
		query = query.Where("outcome IN ?", outcomes)
	}
	err := query.Order("patient_id").Pluck("patient_id", &ids).Error
	return ids, err
}

// ChangedPatients returns ids of patients with at least one detected
// medication change.
func (r *Repository) ChangedPatients(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.MedicationChange{}).
		Distinct("patient_id").
		Order("patient_id").
		Pluck("patient_id", &ids).Error
	return ids, err
}
