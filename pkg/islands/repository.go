package islands

import (
	"context"

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
	return r.db.AutoMigrate(&models.MedicationIsland{})
}

// LoadPrescriptions returns all prescription rows ordered so that one
// (patient, medication) group is contiguous. Insertion order within a
// group is preserved for stable tie-breaking.
func (r *Repository) LoadPrescriptions(ctx context.Context) ([]models.PrescriptionRecord, error) {
	var records []models.PrescriptionRecord
	err := r.db.WithContext(ctx).
		Order("patient_id, medication_code, id").
		Find(&records).Error
	return records, err
}

// Replace rebuilds the islands table wholesale. Islands are never
// mutated in place; a failed write leaves the previous table intact.
func (r *Repository) Replace(ctx context.Context, rows []models.MedicationIsland) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&models.MedicationIsland{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 500).Error
	})
}

func (r *Repository) ForPatient(ctx context.Context, patientID string) ([]models.MedicationIsland, error) {
	var rows []models.MedicationIsland
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("medication_code, start_date").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) All(ctx context.Context) ([]models.MedicationIsland, error) {
	var rows []models.MedicationIsland
	err := r.db.WithContext(ctx).
		Order("patient_id, medication_code, start_date").
		Find(&rows).Error
	return rows, err
}
