package sampling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/classify"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/logger"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/models"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/stratify"
	"gorm.io/datatypes"
)

// Named groupings for balanced sampling. Each splits the population
// into patients matching a derived-table predicate and the rest.
const (
	GroupReviewed = "reviewed"
	GroupChanged  = "changed"
)

// Seed is a pointer in all request types so that an omitted seed falls
// back to the server default while any explicit value, zero included,
// is honored as given.

type RandomRequest struct {
	Seed    *int64   `json:"seed,omitempty"`
	Offset  int      `json:"offset"`
	Limit   int      `json:"limit"`
	Exclude []string `json:"exclude,omitempty"`
}

type BalancedRequest struct {
	Seed    *int64   `json:"seed,omitempty"`
	Total   int      `json:"total"`
	GroupBy string   `json:"group_by"`
	Exclude []string `json:"exclude,omitempty"`
}

type StratifiedRequest struct {
	Seed            *int64   `json:"seed,omitempty"`
	TreatmentIDs    []string `json:"treatment_ids"`
	ControlsPerCase int      `json:"controls_per_case"`
	Exclude         []string `json:"exclude,omitempty"`
}

type Service struct {
	classified  *classify.Repository
	strata      *stratify.Repository
	cache       *stratify.Cache
	cohorts     *Repository
	defaultSeed int64
}

func NewService(classified *classify.Repository, strata *stratify.Repository, cache *stratify.Cache, cohorts *Repository, defaultSeed int64) *Service {
	return &Service{
		classified:  classified,
		strata:      strata,
		cache:       cache,
		cohorts:     cohorts,
		defaultSeed: defaultSeed,
	}
}

func (s *Service) RandomSample(ctx context.Context, req RandomRequest) (*models.SampledCohort, error) {
	if req.Limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	ids, err := s.strata.AllPatientIDs(ctx)
	if err != nil {
		return nil, err
	}
	seed := s.seed(req.Seed)
	result := Random(ids, toSet(req.Exclude), seed, req.Offset, req.Limit)
	return s.persist(ctx, MethodRandom, seed, result, map[string]interface{}{
		"offset": req.Offset,
	})
}

func (s *Service) BalancedSample(ctx context.Context, req BalancedRequest) (*models.SampledCohort, error) {
	if req.Total <= 0 {
		return nil, fmt.Errorf("total must be > 0")
	}
	groupA, err := s.groupMembers(ctx, req.GroupBy)
	if err != nil {
		return nil, err
	}
	all, err := s.strata.AllPatientIDs(ctx)
	if err != nil {
		return nil, err
	}
	inA := toSet(groupA)
	groupB := make([]string, 0, len(all))
	for _, id := range all {
		if _, ok := inA[id]; !ok {
			groupB = append(groupB, id)
		}
	}

	seed := s.seed(req.Seed)
	result := Balanced(groupA, groupB, toSet(req.Exclude), seed, req.Total)
	if result.Shortfall > 0 {
		logger.Log.WithFields(map[string]interface{}{
			"group_by":  req.GroupBy,
			"requested": result.Requested,
			"returned":  result.Returned,
		}).Warn("Balanced sample returned fewer patients than requested")
	}
	return s.persist(ctx, MethodBalanced, seed, result, map[string]interface{}{
		"group_by":      req.GroupBy,
		"group_a_count": result.GroupACount,
		"group_b_count": result.GroupBCount,
	})
}

func (s *Service) StratifiedSample(ctx context.Context, req StratifiedRequest) (*models.SampledCohort, error) {
	if len(req.TreatmentIDs) == 0 {
		return nil, fmt.Errorf("treatment_ids must not be empty")
	}

	treatment := make([]TreatmentPatient, 0, len(req.TreatmentIDs))
	for _, id := range req.TreatmentIDs {
		record, err := s.cache.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("no stratification record for treatment patient %s: %w", id, err)
		}
		treatment = append(treatment, TreatmentPatient{PatientID: id, StratumKey: record.StratumKey})
	}

	records, err := s.strata.All(ctx)
	if err != nil {
		return nil, err
	}
	controlsByStratum := make(map[string][]string)
	for _, record := range records {
		controlsByStratum[record.StratumKey] = append(controlsByStratum[record.StratumKey], record.PatientID)
	}

	seed := s.seed(req.Seed)
	result := Stratified(treatment, controlsByStratum, toSet(req.Exclude), seed, req.ControlsPerCase)
	return s.persist(ctx, MethodStratified, seed, result, map[string]interface{}{
		"treatment_count":   len(req.TreatmentIDs),
		"controls_per_case": req.ControlsPerCase,
	})
}

func (s *Service) GetCohort(ctx context.Context, id uuid.UUID) (*models.SampledCohort, error) {
	return s.cohorts.Get(ctx, id)
}

func (s *Service) groupMembers(ctx context.Context, groupBy string) ([]string, error) {
	switch groupBy {
	case GroupReviewed:
		return s.classified.ReviewedPatients(ctx, models.OutcomePositive, models.OutcomeNegative)
	case GroupChanged:
		return s.classified.ChangedPatients(ctx)
	default:
		return nil, fmt.Errorf("unknown group_by %q", groupBy)
	}
}

func (s *Service) seed(requested *int64) int64 {
	if requested != nil {
		return *requested
	}
	return s.defaultSeed
}

func (s *Service) persist(ctx context.Context, method string, seed int64, result Result, metadata map[string]interface{}) (*models.SampledCohort, error) {
	idsJSON, err := json.Marshal(result.PatientIDs)
	if err != nil {
		return nil, err
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	cohort := &models.SampledCohort{
		ID:             uuid.New(),
		Method:         method,
		Seed:           seed,
		RequestedCount: result.Requested,
		ReturnedCount:  result.Returned,
		Shortfall:      result.Shortfall,
		PatientIDs:     datatypes.JSON(idsJSON),
		Metadata:       datatypes.JSON(metaJSON),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.cohorts.Save(ctx, cohort); err != nil {
		return nil, err
	}
	return cohort, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
