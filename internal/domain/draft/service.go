package draft

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrBusy is returned when a draft is already being submitted.
var ErrBusy = errors.New("draft submission already in progress")

// ErrNotFinal is returned when submission is attempted before the wizard
// reached its last step.
var ErrNotFinal = errors.New("draft has not reached the final step")

// Submitter is the outbound side of report submission. The three ensure and
// finalize calls map onto the backend's patient and report resources;
// GenerateDocument is best-effort.
type Submitter interface {
	EnsurePatient(ctx context.Context, rec *ReportRecord, existing *int64) (int64, error)
	EnsureReport(ctx context.Context, rec *ReportRecord, patientID int64, existing *int64) (int64, error)
	FinalizeReport(ctx context.Context, reportID int64) error
	GenerateDocument(ctx context.Context, reportID int64) error
}

// FinishResult reports a completed submission. Warning carries non-blocking
// problems such as a failed document generation.
type FinishResult struct {
	PatientID int64  `json:"patient_id"`
	ReportID  int64  `json:"report_id"`
	Warning   string `json:"warning,omitempty"`
}

// Service drives the five-step wizard: validation-gated forward navigation,
// free backward navigation, patch-based saves and the final submission
// sequence.
type Service struct {
	store     Store
	submitter Submitter

	mu   sync.Mutex
	busy map[uuid.UUID]bool
}

func NewService(store Store, submitter Submitter) *Service {
	return &Service{
		store:     store,
		submitter: submitter,
		busy:      make(map[uuid.UUID]bool),
	}
}

func (s *Service) Create(ctx context.Context, owner string) (*ReportDraft, error) {
	return s.store.Create(ctx, owner)
}

func (s *Service) Get(ctx context.Context, owner string, id uuid.UUID) (*ReportDraft, error) {
	return s.store.Get(ctx, owner, id)
}

func (s *Service) List(ctx context.Context, owner string, limit, offset int) ([]*ReportDraft, int, error) {
	return s.store.List(ctx, owner, limit, offset)
}

func (s *Service) Current(ctx context.Context, owner string) (*ReportDraft, error) {
	return s.store.Current(ctx, owner)
}

// Select makes the given draft the owner's current one, resuming where its
// saved step left off.
func (s *Service) Select(ctx context.Context, owner string, id uuid.UUID) (*ReportDraft, error) {
	if err := s.store.SetCurrent(ctx, owner, id); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, owner, id)
}

func (s *Service) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	return s.store.Delete(ctx, owner, id)
}

// Save merges the patch into the current draft's record and optionally moves
// the step pointer. Saving never validates; a draft may hold arbitrary
// partial data between steps.
func (s *Service) Save(ctx context.Context, owner string, patch RecordPatch, step *int) (*ReportDraft, error) {
	d, err := s.store.Current(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(patch) > 0 {
		rec, err := patch.Apply(d.Record)
		if err != nil {
			return nil, fmt.Errorf("apply patch: %w", err)
		}
		d.Record = rec
	}
	if step != nil {
		if *step < FirstStep || *step > LastStep {
			return nil, fmt.Errorf("step out of range: %d", *step)
		}
		d.CurrentStep = *step
	}
	d.LastSavedAt = time.Now().UTC()
	if err := s.store.Update(ctx, owner, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks the current draft against its current step's rules.
func (s *Service) Validate(ctx context.Context, owner string) (*ReportDraft, Errors, error) {
	d, err := s.store.Current(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	return d, Validate(&d.Record, d.CurrentStep), nil
}

// Advance validates the current step and, when clean, moves one step
// forward. Validation errors are reported without advancing.
func (s *Service) Advance(ctx context.Context, owner string) (*ReportDraft, Errors, error) {
	d, err := s.store.Current(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	if errs := Validate(&d.Record, d.CurrentStep); len(errs) > 0 {
		return d, errs, nil
	}
	if d.CurrentStep < LastStep {
		d.CurrentStep++
		d.LastSavedAt = time.Now().UTC()
		if err := s.store.Update(ctx, owner, d); err != nil {
			return nil, nil, err
		}
	}
	return d, nil, nil
}

// Back moves one step backward without validating. Previously entered data
// is kept untouched.
func (s *Service) Back(ctx context.Context, owner string) (*ReportDraft, error) {
	d, err := s.store.Current(ctx, owner)
	if err != nil {
		return nil, err
	}
	if d.CurrentStep > FirstStep {
		d.CurrentStep--
		d.LastSavedAt = time.Now().UTC()
		if err := s.store.Update(ctx, owner, d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Finish submits the report of a draft standing on the last step: the
// patient is ensured first, then the report, then finalization. Every step's
// rules are re-checked first, since saves on the last step may have cleared
// fields an earlier Advance already validated. Backend ids are persisted
// after each step so an interrupted submission resumes instead of
// duplicating resources. On success the draft is removed and the current
// pointer cleared. Document generation failures are downgraded to a warning.
func (s *Service) Finish(ctx context.Context, owner string) (*FinishResult, Errors, error) {
	d, err := s.store.Current(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	if d.CurrentStep != LastStep {
		return nil, nil, ErrNotFinal
	}
	if errs := ValidateAll(&d.Record); len(errs) > 0 {
		return nil, errs, nil
	}

	if !s.acquire(d.ID) {
		return nil, nil, ErrBusy
	}
	defer s.release(d.ID)

	patientID, err := s.submitter.EnsurePatient(ctx, &d.Record, d.BackendPatientID)
	if err != nil {
		return nil, nil, fmt.Errorf("ensure patient: %w", err)
	}
	d.BackendPatientID = &patientID
	s.persistProgress(ctx, owner, d)

	reportID, err := s.submitter.EnsureReport(ctx, &d.Record, patientID, d.BackendReportID)
	if err != nil {
		return nil, nil, fmt.Errorf("ensure report: %w", err)
	}
	d.BackendReportID = &reportID
	s.persistProgress(ctx, owner, d)

	if err := s.submitter.FinalizeReport(ctx, reportID); err != nil {
		return nil, nil, fmt.Errorf("finalize report: %w", err)
	}

	res := &FinishResult{PatientID: patientID, ReportID: reportID}
	if err := s.submitter.GenerateDocument(ctx, reportID); err != nil {
		log.Warn().Err(err).Int64("report_id", reportID).Msg("document generation failed")
		res.Warning = "Der Bericht wurde übermittelt, das Dokument konnte jedoch nicht erzeugt werden"
	}

	if err := s.store.Delete(ctx, owner, d.ID); err != nil && !errors.Is(err, ErrNotFound) {
		log.Warn().Err(err).Str("draft_id", d.ID.String()).Msg("could not remove submitted draft")
	}
	if err := s.store.ClearCurrent(ctx, owner); err != nil {
		log.Warn().Err(err).Str("owner", owner).Msg("could not clear current draft pointer")
	}
	return res, nil, nil
}

// persistProgress saves intermediate submission state. A storage failure
// here must not abort the submission already under way.
func (s *Service) persistProgress(ctx context.Context, owner string, d *ReportDraft) {
	d.LastSavedAt = time.Now().UTC()
	if err := s.store.Update(ctx, owner, d); err != nil {
		log.Warn().Err(err).Str("draft_id", d.ID.String()).Msg("could not persist submission progress")
	}
}

func (s *Service) acquire(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[id] {
		return false
	}
	s.busy[id] = true
	return true
}

func (s *Service) release(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, id)
}
