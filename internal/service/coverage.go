package service

import (
	"fmt"
	"time"

	"rota-engine/internal/apperr"
	"rota-engine/internal/models"
	"rota-engine/internal/repository"
	"rota-engine/pkg/datemath"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// CoverageNeed is a detected unmet duty obligation, not yet persisted as a
// request.
type CoverageNeed struct {
	Date                    time.Time
	Session                 models.Session
	DutyID                  uint
	SupportingConsultantID  *uint
	AbsentClinicianID       uint
	Type                    models.CoverageType
	Reason                  models.CoverageReason
}

// ConsultantImpact reports what an absent consultant's session did to the
// rota: the consultant's own duty needing coverage and the registrars freed
// from supporting work.
type ConsultantImpact struct {
	Needs             []CoverageNeed
	FreedRegistrarIDs []uint
}

// CoverageService detects coverage needs from absences, maintains the
// request lifecycle, and keeps leave records and their rota rows in step.
type CoverageService struct {
	clinicianRepo repository.ClinicianRepository
	leaveRepo     repository.LeaveRepository
	rotaRepo      repository.RotaEntryRepository
	jobPlanRepo   repository.JobPlanRepository
	dutyRepo      repository.DutyRepository
	requestRepo   repository.CoverageRequestRepository
	auditRepo     repository.AuditRepository
	logger        *logrus.Logger
	validate      *validator.Validate
}

func NewCoverageService(
	clinicianRepo repository.ClinicianRepository,
	leaveRepo repository.LeaveRepository,
	rotaRepo repository.RotaEntryRepository,
	jobPlanRepo repository.JobPlanRepository,
	dutyRepo repository.DutyRepository,
	requestRepo repository.CoverageRequestRepository,
	auditRepo repository.AuditRepository,
) *CoverageService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &CoverageService{
		clinicianRepo: clinicianRepo,
		leaveRepo:     leaveRepo,
		rotaRepo:      rotaRepo,
		jobPlanRepo:   jobPlanRepo,
		dutyRepo:      dutyRepo,
		requestRepo:   requestRepo,
		auditRepo:     auditRepo,
		logger:        logger,
		validate:      validator.New(),
	}
}

// DetectNeeds finds the registrar's weekday leave sessions that collide with
// a duty obligation. A manual rota override wins over the job-plan template;
// duties flagged requires_coverage=false never raise a need. Consultant
// absences go through DetectConsultantImpact instead.
func (s *CoverageService) DetectNeeds(clinicianID uint, from, to time.Time) ([]CoverageNeed, error) {
	clinician, err := s.clinicianRepo.GetByID(clinicianID)
	if err != nil {
		return nil, err
	}
	if clinician == nil {
		return nil, apperr.NotFound("clinician", clinicianID)
	}
	if !clinician.IsRegistrar() {
		return nil, nil
	}

	leaves, err := s.leaveRepo.FindForClinician(clinicianID, from, to)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var needs []CoverageNeed

	for _, leave := range leaves {
		if !datemath.IsWeekday(leave.Date) {
			continue
		}
		for _, session := range leave.Session.HalfDays() {
			need, err := s.needForSession(clinician, leave.Date, session)
			if err != nil {
				return nil, err
			}
			if need == nil {
				continue
			}
			key := needDedupKey(*need)
			if seen[key] {
				continue
			}
			seen[key] = true
			needs = append(needs, *need)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"clinician_id": clinicianID,
		"from":         datemath.Format(from),
		"to":           datemath.Format(to),
		"needs":        len(needs),
	}).Info("Detected coverage needs")

	return needs, nil
}

// needForSession resolves one registrar leave session to a need, or nil.
func (s *CoverageService) needForSession(clinician *models.Clinician, date time.Time, session models.Session) (*CoverageNeed, error) {
	var dutyID *uint
	var supportingID *uint

	entry, err := s.rotaRepo.GetByKey(date, clinician.ID, session)
	if err != nil {
		return nil, err
	}
	if entry != nil && entry.Source == models.SourceManual {
		dutyID = entry.DutyID
		supportingID = entry.SupportingClinicianID
	} else {
		cell, err := s.jobPlanRepo.GetCell(clinician.ID, datemath.WeekOfMonth(date), datemath.ISOWeekday(date))
		if err != nil {
			return nil, err
		}
		if cell != nil {
			dutyID = cell.DutyFor(session)
			supportingID = cell.SupportingFor(session)
		}
	}

	if dutyID == nil {
		return nil, nil
	}

	duty, err := s.dutyRepo.GetByID(*dutyID)
	if err != nil {
		return nil, err
	}
	if duty == nil {
		// Stale duty reference; skip rather than abort the range.
		s.logger.WithField("duty_id", *dutyID).Warn("Coverage check references missing duty")
		return nil, nil
	}
	if !duty.NeedsCoverage() {
		return nil, nil
	}

	return &CoverageNeed{
		Date:                   datemath.DateOnly(date),
		Session:                session,
		DutyID:                 *dutyID,
		SupportingConsultantID: supportingID,
		AbsentClinicianID:      clinician.ID,
		Type:                   models.CoverageTypeRegistrar,
		Reason:                 models.CoverageReasonLeave,
	}, nil
}

func needDedupKey(n CoverageNeed) string {
	supporting := "independent"
	if n.SupportingConsultantID != nil {
		supporting = fmt.Sprintf("%d", *n.SupportingConsultantID)
	}
	return fmt.Sprintf("%s|%s|%d|%s", datemath.Format(n.Date), n.Session, n.DutyID, supporting)
}

// DetectConsultantImpact handles an absent consultant's session: raise a
// need for the consultant's own duty unless the duty opts out, and free
// every registrar whose rota entry supports this consultant by deleting the
// now-moot entry. Manual entries are deleted too (the registrar's free time
// takes priority), with an audit record so the deletion is reversible.
func (s *CoverageService) DetectConsultantImpact(consultantID uint, date time.Time, session models.Session, reason models.CoverageReason) (*ConsultantImpact, error) {
	consultant, err := s.clinicianRepo.GetByID(consultantID)
	if err != nil {
		return nil, err
	}
	if consultant == nil {
		return nil, apperr.NotFound("clinician", consultantID)
	}
	if !consultant.IsConsultant() {
		return nil, apperr.Validationf("clinician %d is not a consultant", consultantID)
	}

	impact := &ConsultantImpact{}
	freed := make(map[uint]bool)

	for _, half := range session.HalfDays() {
		need, err := s.consultantOwnDutyNeed(consultant, date, half, reason)
		if err != nil {
			return nil, err
		}
		if need != nil {
			impact.Needs = append(impact.Needs, *need)
		}

		entries, err := s.rotaRepo.FindBySupporting(date, half, consultantID)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			entry := entries[i]
			if err := s.rotaRepo.DeleteByKey(entry.Date, entry.ClinicianID, entry.Session); err != nil {
				return nil, err
			}
			s.auditRepo.Record("free_registrar", "rota_entry",
				fmt.Sprintf("%s/%d/%s", datemath.Format(entry.Date), entry.ClinicianID, entry.Session),
				&entry, nil)
			if !freed[entry.ClinicianID] {
				freed[entry.ClinicianID] = true
				impact.FreedRegistrarIDs = append(impact.FreedRegistrarIDs, entry.ClinicianID)
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"consultant_id": consultantID,
		"date":          datemath.Format(date),
		"session":       session,
		"needs":         len(impact.Needs),
		"freed":         len(impact.FreedRegistrarIDs),
	}).Info("Detected consultant impact")

	return impact, nil
}

func (s *CoverageService) consultantOwnDutyNeed(consultant *models.Clinician, date time.Time, session models.Session, reason models.CoverageReason) (*CoverageNeed, error) {
	var dutyID *uint

	entry, err := s.rotaRepo.GetByKey(date, consultant.ID, session)
	if err != nil {
		return nil, err
	}
	if entry != nil && entry.Source == models.SourceManual {
		dutyID = entry.DutyID
	} else {
		cell, err := s.jobPlanRepo.GetCell(consultant.ID, datemath.WeekOfMonth(date), datemath.ISOWeekday(date))
		if err != nil {
			return nil, err
		}
		if cell != nil {
			dutyID = cell.DutyFor(session)
		}
	}
	if dutyID == nil {
		return nil, nil
	}

	duty, err := s.dutyRepo.GetByID(*dutyID)
	if err != nil {
		return nil, err
	}
	if duty == nil || !duty.NeedsCoverage() {
		return nil, nil
	}

	return &CoverageNeed{
		Date:              datemath.DateOnly(date),
		Session:           session,
		DutyID:            *dutyID,
		AbsentClinicianID: consultant.ID,
		Type:              models.CoverageTypeConsultant,
		Reason:            reason,
	}, nil
}

// RestoreConsultantImpact is the exact inverse of the registrar-freeing in
// DetectConsultantImpact, applied when the triggering consultant absence is
// withdrawn. It regenerates job-plan entries only where no entry currently
// exists for the slot, so re-running it is harmless.
func (s *CoverageService) RestoreConsultantImpact(consultantID uint, date time.Time, session models.Session) error {
	for _, half := range session.HalfDays() {
		cells, err := s.jobPlanRepo.FindSupporting(consultantID, datemath.WeekOfMonth(date), datemath.ISOWeekday(date), half)
		if err != nil {
			return err
		}
		for _, cell := range cells {
			existing, err := s.rotaRepo.GetByKey(date, cell.ClinicianID, half)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			entry := &models.RotaEntry{
				Date:                  datemath.DateOnly(date),
				ClinicianID:           cell.ClinicianID,
				Session:               half,
				Source:                models.SourceJobPlan,
				DutyID:                cell.DutyFor(half),
				SupportingClinicianID: cell.SupportingFor(half),
			}
			if entry.DutyID == nil {
				continue
			}
			if err := s.rotaRepo.Upsert(entry); err != nil {
				return err
			}
			s.auditRepo.Record("restore_registrar", "rota_entry",
				fmt.Sprintf("%s/%d/%s", datemath.Format(date), cell.ClinicianID, half),
				nil, entry)
		}
	}
	return nil
}

// CreateCoverageRequests persists needs as pending requests, skipping any
// need for which a request already exists with the same key. The existence
// check and insert are serialized so re-running the detector is safe.
func (s *CoverageService) CreateCoverageRequests(needs []CoverageNeed) ([]models.CoverageRequest, error) {
	unlock := lockOp("coverage-create")
	defer unlock()

	var created []models.CoverageRequest
	for _, need := range needs {
		exists, err := s.requestRepo.Exists(need.Date, need.Session, need.DutyID, need.AbsentClinicianID, need.Type)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		request := &models.CoverageRequest{
			Date:              need.Date,
			Session:           need.Session,
			Type:              need.Type,
			DutyID:            need.DutyID,
			AbsentClinicianID: need.AbsentClinicianID,
			Status:            models.CoverageStatusPending,
			Reason:            need.Reason,
		}
		if err := s.requestRepo.Create(request); err != nil {
			return created, err
		}
		s.auditRepo.Record("create", "coverage_request", fmt.Sprintf("%d", request.ID), nil, request)
		created = append(created, *request)
	}

	if len(created) > 0 {
		s.logger.WithField("count", len(created)).Info("Coverage requests created")
	}
	return created, nil
}

// CancelCoverageRequestsForLeave removes pending leave-reason requests that
// the withdrawn leave produced. Assigned or manually raised requests are
// never touched.
func (s *CoverageService) CancelCoverageRequestsForLeave(clinicianID uint, date time.Time, session models.Session) (int, error) {
	requests, err := s.requestRepo.FindPendingForLeave(clinicianID, date, session)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for i := range requests {
		request := requests[i]
		if err := s.requestRepo.Delete(request.ID); err != nil {
			return cancelled, err
		}
		s.auditRepo.Record("cancel", "coverage_request", fmt.Sprintf("%d", request.ID), &request, nil)
		cancelled++
	}

	if cancelled > 0 {
		s.logger.WithFields(logrus.Fields{
			"clinician_id": clinicianID,
			"date":         datemath.Format(date),
			"cancelled":    cancelled,
		}).Info("Cancelled coverage requests for withdrawn leave")
	}
	return cancelled, nil
}

type LeaveInput struct {
	ClinicianID uint           `validate:"required"`
	Date        time.Time      `validate:"required"`
	Session     models.Session `validate:"required,oneof=AM PM FULL"`
	Type        string         `validate:"required,oneof=annual study sick other"`
}

// RecordLeave stores a leave row, pins matching rota sessions as leave, and
// runs the appropriate detector for the clinician's role.
func (s *CoverageService) RecordLeave(input LeaveInput) (*models.Leave, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, apperr.Validationf("invalid leave: %s", err.Error())
	}

	clinician, err := s.clinicianRepo.GetByID(input.ClinicianID)
	if err != nil {
		return nil, err
	}
	if clinician == nil {
		return nil, apperr.NotFound("clinician", input.ClinicianID)
	}

	leave := &models.Leave{
		ClinicianID: input.ClinicianID,
		Date:        datemath.DateOnly(input.Date),
		Session:     input.Session,
		Type:        input.Type,
	}
	if err := s.leaveRepo.Create(leave); err != nil {
		s.logger.WithError(err).Error("Failed to create leave")
		return nil, err
	}
	s.auditRepo.Record("create", "leave", datemath.Format(leave.Date), nil, leave)

	for _, half := range input.Session.HalfDays() {
		entry := &models.RotaEntry{
			Date:        leave.Date,
			ClinicianID: leave.ClinicianID,
			Session:     half,
			Source:      models.SourceLeave,
			Note:        leave.Type,
		}
		if err := s.rotaRepo.Upsert(entry); err != nil {
			return nil, err
		}
	}

	if clinician.IsRegistrar() {
		needs, err := s.DetectNeeds(clinician.ID, leave.Date, leave.Date)
		if err != nil {
			return nil, err
		}
		if _, err := s.CreateCoverageRequests(needs); err != nil {
			return nil, err
		}
	} else {
		impact, err := s.DetectConsultantImpact(clinician.ID, leave.Date, leave.Session, models.CoverageReasonLeave)
		if err != nil {
			return nil, err
		}
		if _, err := s.CreateCoverageRequests(impact.Needs); err != nil {
			return nil, err
		}
	}

	return leave, nil
}

// WithdrawLeave deletes a leave row and unwinds its side effects: the leave
// rota rows go, pending leave-reason requests are cancelled, and a
// consultant's freed registrars get their job-plan entries back.
func (s *CoverageService) WithdrawLeave(leaveID uint) error {
	leave, err := s.leaveRepo.GetByID(leaveID)
	if err != nil {
		return err
	}
	if leave == nil {
		return apperr.NotFound("leave", leaveID)
	}

	clinician, err := s.clinicianRepo.GetByID(leave.ClinicianID)
	if err != nil {
		return err
	}

	if err := s.leaveRepo.Delete(leaveID); err != nil {
		return err
	}
	s.auditRepo.Record("delete", "leave", datemath.Format(leave.Date), leave, nil)

	for _, half := range leave.Session.HalfDays() {
		entry, err := s.rotaRepo.GetByKey(leave.Date, leave.ClinicianID, half)
		if err != nil {
			return err
		}
		if entry != nil && entry.Source == models.SourceLeave {
			if err := s.rotaRepo.DeleteByKey(leave.Date, leave.ClinicianID, half); err != nil {
				return err
			}
		}
	}

	if _, err := s.CancelCoverageRequestsForLeave(leave.ClinicianID, leave.Date, leave.Session); err != nil {
		return err
	}

	if clinician != nil && clinician.IsConsultant() {
		if err := s.RestoreConsultantImpact(clinician.ID, leave.Date, leave.Session); err != nil {
			return err
		}
	}

	return nil
}
