package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Raw input tables. Owned by the ingestion layer; read-only here.

type Patient struct {
	PatientID string     `gorm:"column:patient_id;primaryKey" json:"patient_id"`
	BirthDate *time.Time `gorm:"column:birth_date" json:"birth_date,omitempty"`
	Gender    string     `gorm:"column:gender" json:"gender,omitempty"`
}

func (Patient) TableName() string { return "patients" }

type PrescriptionRecord struct {
	ID             int64      `gorm:"column:id;primaryKey" json:"id"`
	PatientID      string     `gorm:"column:patient_id;index" json:"patient_id"`
	MedicationCode string     `gorm:"column:medication_code;index" json:"medication_code"`
	MedicationName string     `gorm:"column:medication_name" json:"medication_name"`
	Dosage         string     `gorm:"column:dosage" json:"dosage,omitempty"`
	Units          string     `gorm:"column:units" json:"units,omitempty"`
	Quantity       float64    `gorm:"column:quantity" json:"quantity,omitempty"`
	StartDate      *time.Time `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate        *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`
	CourseDays     int        `gorm:"column:course_days" json:"course_days,omitempty"`
	IsRepeat       bool       `gorm:"column:is_repeat" json:"is_repeat"`
}

func (PrescriptionRecord) TableName() string { return "prescriptions" }

type CodedEvent struct {
	ID          int64      `gorm:"column:id;primaryKey" json:"id"`
	PatientID   string     `gorm:"column:patient_id;index" json:"patient_id"`
	Code        string     `gorm:"column:code;index" json:"code"`
	Description string     `gorm:"column:description" json:"description,omitempty"`
	EventDate   *time.Time `gorm:"column:event_date" json:"event_date,omitempty"`
}

func (CodedEvent) TableName() string { return "coded_events" }

// Derived tables. Rebuilt wholesale on every derivation run.

type MedicationIsland struct {
	ID                int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PatientID         string    `gorm:"column:patient_id;index:idx_island_patient_med" json:"patient_id"`
	MedicationCode    string    `gorm:"column:medication_code;index:idx_island_patient_med" json:"medication_code"`
	MedicationName    string    `gorm:"column:medication_name" json:"medication_name"`
	StartDate         time.Time `gorm:"column:start_date" json:"start_date"`
	EndDate           time.Time `gorm:"column:end_date" json:"end_date"`
	Dosage            string    `gorm:"column:dosage" json:"dosage,omitempty"`
	Units             string    `gorm:"column:units" json:"units,omitempty"`
	TotalQuantity     float64   `gorm:"column:total_quantity" json:"total_quantity"`
	PrescriptionCount int       `gorm:"column:prescription_count" json:"prescription_count"`
	IsRepeat          bool      `gorm:"column:is_repeat" json:"is_repeat"`
}

func (MedicationIsland) TableName() string { return "medication_islands" }

// Outcome values for a classified review day. Empty when no review
// occurred or when the review carries no outcome code.
const (
	OutcomePositive = "positive"
	OutcomeNegative = "negative"
	OutcomeUnknown  = "unknown"
)

type ClassifiedEvent struct {
	ID                int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PatientID         string    `gorm:"column:patient_id;index:idx_classified_patient_date" json:"patient_id"`
	EventDate         time.Time `gorm:"column:event_date;index:idx_classified_patient_date" json:"event_date"`
	WasReview         bool      `gorm:"column:was_review" json:"was_review"`
	Outcome           *string   `gorm:"column:outcome" json:"outcome,omitempty"`
	MedicationStarted *bool     `gorm:"column:medication_started" json:"medication_started,omitempty"`
	MedicationStopped *bool     `gorm:"column:medication_stopped" json:"medication_stopped,omitempty"`
}

func (ClassifiedEvent) TableName() string { return "classified_events" }

const (
	ChangeStarted = "started"
	ChangeStopped = "stopped"
)

type MedicationChange struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PatientID      string    `gorm:"column:patient_id;index" json:"patient_id"`
	ReviewDate     time.Time `gorm:"column:review_date" json:"review_date"`
	MedicationCode string    `gorm:"column:medication_code" json:"medication_code"`
	MedicationName string    `gorm:"column:medication_name" json:"medication_name"`
	ChangeType     string    `gorm:"column:change_type" json:"change_type"`
}

func (MedicationChange) TableName() string { return "medication_changes" }

type StratificationRecord struct {
	PatientID         string `gorm:"column:patient_id;primaryKey" json:"patient_id"`
	Age               *int   `gorm:"column:age" json:"age,omitempty"`
	Gender            string `gorm:"column:gender" json:"gender"`
	ConditionCount    int    `gorm:"column:condition_count" json:"condition_count"`
	PrescriptionCount int    `gorm:"column:prescription_count" json:"prescription_count"`
	AgeBin            string `gorm:"column:age_bin" json:"age_bin"`
	ConditionBin      string `gorm:"column:condition_bin" json:"condition_bin"`
	PrescriptionBin   string `gorm:"column:prescription_bin" json:"prescription_bin"`
	GenderBin         string `gorm:"column:gender_bin" json:"gender_bin"`
	StratumKey        string `gorm:"column:stratum_key;index" json:"stratum_key"`
}

func (StratificationRecord) TableName() string { return "stratification_records" }

// SampledCohort records one sampling request and its result so the
// review UI can re-fetch a cohort by id. Patient ids are stored sorted.
type SampledCohort struct {
	ID             uuid.UUID      `gorm:"column:id;primaryKey" json:"id"`
	Method         string         `gorm:"column:method" json:"method"`
	Seed           int64          `gorm:"column:seed" json:"seed"`
	RequestedCount int            `gorm:"column:requested_count" json:"requested_count"`
	ReturnedCount  int            `gorm:"column:returned_count" json:"returned_count"`
	Shortfall      int            `gorm:"column:shortfall" json:"shortfall"`
	PatientIDs     datatypes.JSON `gorm:"column:patient_ids" json:"patient_ids"`
	Metadata       datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (SampledCohort) TableName() string { return "sampled_cohorts" }

// RunAudit is the payload published to Kafka after each pipeline stage.
type RunAudit struct {
	RunID      string        `json:"run_id"`
	Stage      string        `json:"stage"`
	Status     string        `json:"status"`
	RowsOut    int           `json:"rows_out"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}
