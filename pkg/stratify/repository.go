package stratify

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
	return r.db.AutoMigrate(&models.StratificationRecord{})
}

func (r *Repository) LoadPatients(ctx context.Context) ([]models.Patient, error) {
	var patients []models.Patient
	err := r.db.WithContext(ctx).Order("patient_id").Find(&patients).Error
	return patients, err
}

func (r *Repository) Replace(ctx context.Context, rows []models.StratificationRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&models.StratificationRecord{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 500).Error
	})
}

func (r *Repository) Get(ctx context.Context, patientID string) (*models.StratificationRecord, error) {
	var record models.StratificationRecord
	if err := r.db.WithContext(ctx).First(&record, "patient_id = ?", patientID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ByStratum returns patient ids in the given stratum, sorted.
func (r *Repository) ByStratum(ctx context.Context, stratumKey string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.StratificationRecord{}).
		Where("stratum_key = ?", stratumKey).
		Order("patient_id").
		Pluck("patient_id", &ids).Error
	return ids, err
}

func (r *Repository) All(ctx context.Context) ([]models.StratificationRecord, error) {
	var rows []models.StratificationRecord
	err := r.db.WithContext(ctx).Order("patient_id").Find(&rows).Error
	return rows, err
}

func (r *Repository) AllPatientIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.StratificationRecord{}).
		Order("patient_id").
		Pluck("patient_id", &ids).Error
	return ids, err
}
