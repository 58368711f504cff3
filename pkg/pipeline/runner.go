package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/classify"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/codelist"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/config"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/kafka"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/logger"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/models"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/islands"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/stratify"
)

// Runner executes the batch derivation: islands, then classified
// events and medication changes, then stratification features. Each
// stage reads fully materialized inputs, computes in parallel across
// per-patient partitions, and writes its output table wholesale. A
// failed stage aborts the run; the derivation is deterministic, so a
// retry without upstream changes would fail identically.
type Runner struct {
	cfg          *config.Config
	lists        codelist.Lists
	islandsRepo  *islands.Repository
	classifyRepo *classify.Repository
	strataRepo   *stratify.Repository
	cache        *stratify.Cache
	producer     *kafka.Producer
}

func NewRunner(cfg *config.Config, lists codelist.Lists, islandsRepo *islands.Repository, classifyRepo *classify.Repository, strataRepo *stratify.Repository, cache *stratify.Cache, producer *kafka.Producer) *Runner {
	return &Runner{
		cfg:          cfg,
		lists:        lists,
		islandsRepo:  islandsRepo,
		classifyRepo: classifyRepo,
		strataRepo:   strataRepo,
		cache:        cache,
		producer:     producer,
	}
}

func (r *Runner) Run(ctx context.Context, referenceDate time.Time) error {
	runID := uuid.New().String()
	log := logger.WithField("run_id", runID)
	log.Info("Derivation run started")

	if err := r.stage(ctx, runID, "islands", func() (int, error) {
		return r.buildIslands(ctx)
	}); err != nil {
		return err
	}
	if err := r.stage(ctx, runID, "classify", func() (int, error) {
		return r.classifyEvents(ctx)
	}); err != nil {
		return err
	}
	if err := r.stage(ctx, runID, "stratify", func() (int, error) {
		return r.buildStrata(ctx, referenceDate)
	}); err != nil {
		return err
	}

	log.Info("Derivation run completed")
	return nil
}

func (r *Runner) stage(ctx context.Context, runID, name string, fn func() (int, error)) error {
	started := time.Now()
	rows, err := fn()
	audit := models.RunAudit{
		RunID:      runID,
		Stage:      name,
		Status:     "completed",
		RowsOut:    rows,
		Duration:   time.Since(started),
		FinishedAt: time.Now().UTC(),
	}
	if err != nil {
		audit.Status = "failed"
		audit.Error = err.Error()
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"run_id": runID,
			"stage":  name,
		}).Error("Derivation stage failed")
	} else {
		logger.Log.WithFields(map[string]interface{}{
			"run_id":   runID,
			"stage":    name,
			"rows_out": rows,
			"duration": audit.Duration.String(),
		}).Info("Derivation stage completed")
	}
	if r.producer != nil {
		// Audit delivery failures never fail the run.
		_ = r.producer.PublishAudit(ctx, audit)
	}
	return err
}

// medGroup is one (patient, medication) partition of the prescription
// table.
type medGroup struct {
	records []models.PrescriptionRecord
}

func (r *Runner) buildIslands(ctx context.Context) (int, error) {
	records, err := r.islandsRepo.LoadPrescriptions(ctx)
	if err != nil {
		return 0, err
	}

	// Records arrive ordered by (patient, medication), so partitions
	// are contiguous slices.
	var groups []medGroup
	start := 0
	for i := 1; i <= len(records); i++ {
		if i == len(records) ||
			records[i].PatientID != records[start].PatientID ||
			records[i].MedicationCode != records[start].MedicationCode {
			groups = append(groups, medGroup{records: records[start:i]})
			start = i
		}
	}

	opts := islands.Options{
		GapThresholdDays:   r.cfg.GapThresholdDays,
		FallbackCourseDays: r.cfg.FallbackCourseDays,
	}
	partitioned, err := mapGroups(groups, r.cfg.WorkerCount, func(g medGroup) ([]models.MedicationIsland, error) {
		return islands.Build(g.records, opts)
	})
	if err != nil {
		return 0, err
	}

	var rows []models.MedicationIsland
	for _, part := range partitioned {
		rows = append(rows, part...)
	}
	if err := r.islandsRepo.Replace(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

type patientPartition struct {
	patientID string
	events    []models.CodedEvent
	islands   []models.MedicationIsland
}

type classifyOutput struct {
	events  []models.ClassifiedEvent
	changes []models.MedicationChange
}

func (r *Runner) classifyEvents(ctx context.Context) (int, error) {
	events, err := r.classifyRepo.LoadEvents(ctx, r.lists.ExcludedEvents)
	if err != nil {
		return 0, err
	}
	islandRows, err := r.islandsRepo.All(ctx)
	if err != nil {
		return 0, err
	}

	partitions := partitionByPatient(events, islandRows)
	detector := classify.NewChangeDetector(r.cfg.ChangeWindowMonths)
	correlator := classify.NewCorrelator(r.lists, detector)

	outputs, err := mapGroups(partitions, r.cfg.WorkerCount, func(p patientPartition) (classifyOutput, error) {
		classified, changes := correlator.Classify(p.patientID, p.events, p.islands)
		return classifyOutput{events: classified, changes: changes}, nil
	})
	if err != nil {
		return 0, err
	}

	var classified []models.ClassifiedEvent
	var changes []models.MedicationChange
	for _, out := range outputs {
		classified = append(classified, out.events...)
		changes = append(changes, out.changes...)
	}
	if err := r.classifyRepo.Replace(ctx, classified, changes); err != nil {
		return 0, err
	}
	return len(classified), nil
}

func (r *Runner) buildStrata(ctx context.Context, referenceDate time.Time) (int, error) {
	patients, err := r.strataRepo.LoadPatients(ctx)
	if err != nil {
		return 0, err
	}
	events, err := r.classifyRepo.LoadEvents(ctx, r.lists.ExcludedEvents)
	if err != nil {
		return 0, err
	}
	islandRows, err := r.islandsRepo.All(ctx)
	if err != nil {
		return 0, err
	}

	eventsByPatient := make(map[string][]models.CodedEvent)
	for _, ev := range events {
		eventsByPatient[ev.PatientID] = append(eventsByPatient[ev.PatientID], ev)
	}
	islandsByPatient := make(map[string][]models.MedicationIsland)
	for _, island := range islandRows {
		islandsByPatient[island.PatientID] = append(islandsByPatient[island.PatientID], island)
	}

	builder := stratify.NewBuilder(r.cfg.CorpusStartDate, referenceDate)
	rows, err := mapGroups(patients, r.cfg.WorkerCount, func(p models.Patient) (models.StratificationRecord, error) {
		return builder.Build(p, eventsByPatient[p.PatientID], islandsByPatient[p.PatientID]), nil
	})
	if err != nil {
		return 0, err
	}
	if err := r.strataRepo.Replace(ctx, rows); err != nil {
		return 0, err
	}

	if r.cache != nil {
		if err := r.cache.Invalidate(ctx); err != nil {
			logger.Log.WithError(err).Warn("Failed to invalidate stratum cache")
		}
	}
	return len(rows), nil
}

// partitionByPatient groups events and islands by patient id, sorted
// for deterministic output order.
func partitionByPatient(events []models.CodedEvent, islandRows []models.MedicationIsland) []patientPartition {
	byPatient := make(map[string]*patientPartition)
	var order []string
	get := func(patientID string) *patientPartition {
		p, ok := byPatient[patientID]
		if !ok {
			p = &patientPartition{patientID: patientID}
			byPatient[patientID] = p
			order = append(order, patientID)
		}
		return p
	}
	for _, ev := range events {
		p := get(ev.PatientID)
		p.events = append(p.events, ev)
	}
	for _, island := range islandRows {
		p := get(island.PatientID)
		p.islands = append(p.islands, island)
	}
	sort.Strings(order)

	partitions := make([]patientPartition, 0, len(order))
	for _, id := range order {
		partitions = append(partitions, *byPatient[id])
	}
	return partitions
}

// mapGroups fans the groups across a fixed worker pool. Each worker
// writes results into its own index of the output slice, so no locks
// are needed; the first error cancels remaining work.
func mapGroups[In any, Out any](groups []In, workers int, fn func(In) (Out, error)) ([]Out, error) {
	if workers <= 0 {
		workers = 1
	}
	out := make([]Out, len(groups))
	jobs := make(chan int)
	errOnce := sync.Once{}
	var firstErr error
	done := make(chan struct{})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				result, err := fn(groups[i])
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						close(done)
					})
					return
				}
				out[i] = result
			}
		}()
	}

feed:
	for i := range groups {
		select {
		case jobs <- i:
		case <-done:
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
