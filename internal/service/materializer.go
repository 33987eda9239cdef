package service

import (
	"fmt"
	"time"

	"rota-engine/internal/apperr"
	"rota-engine/internal/models"
	"rota-engine/internal/repository"
	"rota-engine/pkg/datemath"

	"github.com/sirupsen/logrus"
)

// MaterializerService persists the composed rota as durable rows. It is the
// write-path twin of the composer: same precedence, but pinned rows (manual,
// leave, rest) are never overwritten, and only jobplan/oncall rows are
// upserted. Re-running over a materialized range is a no-op unless upstream
// configuration changed.
type MaterializerService struct {
	clinicianRepo repository.ClinicianRepository
	leaveRepo     repository.LeaveRepository
	rotaRepo      repository.RotaEntryRepository
	jobPlanRepo   repository.JobPlanRepository
	rotation      *RotationService
	restDays      *RestDayService
	coverage      *CoverageService
	horizonMonths int
	logger        *logrus.Logger
}

func NewMaterializerService(
	clinicianRepo repository.ClinicianRepository,
	leaveRepo repository.LeaveRepository,
	rotaRepo repository.RotaEntryRepository,
	jobPlanRepo repository.JobPlanRepository,
	rotation *RotationService,
	restDays *RestDayService,
	coverage *CoverageService,
	horizonMonths int,
) *MaterializerService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if horizonMonths <= 0 {
		horizonMonths = 3
	}

	return &MaterializerService{
		clinicianRepo: clinicianRepo,
		leaveRepo:     leaveRepo,
		rotaRepo:      rotaRepo,
		jobPlanRepo:   jobPlanRepo,
		rotation:      rotation,
		restDays:      restDays,
		coverage:      coverage,
		horizonMonths: horizonMonths,
		logger:        logger,
	}
}

// GenerateRota materializes [from, to]. Serialized process-wide: concurrent
// runs over overlapping ranges would race their check-then-upsert on the
// (date, clinician, session) unique key. Every write is an idempotent
// upsert, so a failed run is resumed by re-invocation, not rollback.
func (s *MaterializerService) GenerateRota(from, to time.Time) error {
	unlock := lockOp("generate-rota")
	defer unlock()

	from = datemath.DateOnly(from)
	to = datemath.DateOnly(to)
	if from.After(to) {
		return apperr.Validationf("invalid range %s..%s", datemath.Format(from), datemath.Format(to))
	}
	if datemath.DaysBetween(from, to) > maxComposeDays {
		return apperr.Validationf("range exceeds %d days", maxComposeDays)
	}

	s.logger.WithFields(logrus.Fields{
		"from": datemath.Format(from),
		"to":   datemath.Format(to),
	}).Info("Generating rota")

	clinicians, err := s.clinicianRepo.GetAllActive()
	if err != nil {
		return err
	}

	existing := make(map[string]models.RotaEntry)
	rows, err := s.rotaRepo.FindInRange(from, to)
	if err != nil {
		return err
	}
	for _, row := range rows {
		existing[cellKey(row.Date, row.ClinicianID, row.Session)] = row
	}

	leaves := make(map[string][]models.Leave)
	leaveRows, err := s.leaveRepo.FindInRange(from, to)
	if err != nil {
		return err
	}
	for _, l := range leaveRows {
		key := fmt.Sprintf("%s|%d", datemath.Format(l.Date), l.ClinicianID)
		leaves[key] = append(leaves[key], l)
	}

	jobPlan := make(map[string]models.JobPlanWeek)
	cells, err := s.jobPlanRepo.FindAll()
	if err != nil {
		return err
	}
	for _, c := range cells {
		jobPlan[fmt.Sprintf("%d|%d|%d", c.ClinicianID, c.WeekNo, c.DayOfWeek)] = c
	}

	onCall := make(map[string]uint)
	for _, day := range datemath.Range(from, to) {
		for _, role := range []models.Role{models.RoleConsultant, models.RoleRegistrar} {
			clinician, err := s.rotation.WhoIsOnCall(day, role)
			if err != nil {
				return err
			}
			if clinician != nil {
				onCall[fmt.Sprintf("%s|%s", datemath.Format(day), role)] = clinician.ID
			}
		}
	}

	rest, err := s.restDays.DeriveRestDays(from, to)
	if err != nil {
		return err
	}
	restIdx := IndexRestDays(rest)

	for _, day := range datemath.Range(from, to) {
		for _, clinician := range clinicians {
			for _, session := range models.HalfDaySessions {
				if err := s.materializeCell(day, clinician, session, existing, leaves, jobPlan, onCall, restIdx); err != nil {
					return err
				}
			}
		}
	}

	// Proactive sweep: a consultant's full on-call day both needs coverage
	// for their planned duties and frees their supporting registrars.
	for _, day := range datemath.Range(from, to) {
		consultantID, ok := onCall[fmt.Sprintf("%s|%s", datemath.Format(day), models.RoleConsultant)]
		if !ok {
			continue
		}
		impact, err := s.coverage.DetectConsultantImpact(consultantID, day, models.SessionFull, models.CoverageReasonOnCall)
		if err != nil {
			return err
		}
		if _, err := s.coverage.CreateCoverageRequests(impact.Needs); err != nil {
			return err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"from": datemath.Format(from),
		"to":   datemath.Format(to),
	}).Info("Rota generation finished")

	return nil
}

// materializeCell applies the write-side precedence for one cell. Pinned
// rows are immutable within the run; everything else is derived fresh.
func (s *MaterializerService) materializeCell(
	day time.Time,
	clinician models.Clinician,
	session models.Session,
	existing map[string]models.RotaEntry,
	leaves map[string][]models.Leave,
	jobPlan map[string]models.JobPlanWeek,
	onCall map[string]uint,
	restIdx RestDayIndex,
) error {
	key := cellKey(day, clinician.ID, session)
	current, hasCurrent := existing[key]
	if hasCurrent && current.Source.Pinned() {
		return nil
	}

	desired := s.deriveCell(day, clinician, session, leaves, jobPlan, onCall, restIdx)

	if desired == nil {
		if hasCurrent {
			return s.rotaRepo.DeleteByKey(day, clinician.ID, session)
		}
		return nil
	}

	if hasCurrent && sameDerivedEntry(&current, desired) {
		return nil
	}
	return s.rotaRepo.Upsert(desired)
}

func (s *MaterializerService) deriveCell(
	day time.Time,
	clinician models.Clinician,
	session models.Session,
	leaves map[string][]models.Leave,
	jobPlan map[string]models.JobPlanWeek,
	onCall map[string]uint,
	restIdx RestDayIndex,
) *models.RotaEntry {
	for _, leave := range leaves[fmt.Sprintf("%s|%d", datemath.Format(day), clinician.ID)] {
		if leave.Session.Covers(session) {
			return &models.RotaEntry{
				Date:        day,
				ClinicianID: clinician.ID,
				Session:     session,
				Source:      models.SourceLeave,
				Note:        leave.Type,
			}
		}
	}

	if clinician.IsRegistrar() {
		if rest, ok := restIdx.Lookup(day, clinician.ID, session); ok {
			return &models.RotaEntry{
				Date:        day,
				ClinicianID: clinician.ID,
				Session:     session,
				Source:      models.SourceRest,
				Note:        rest.DutyName,
			}
		}
	}

	if onCall[fmt.Sprintf("%s|%s", datemath.Format(day), clinician.Role)] == clinician.ID {
		return &models.RotaEntry{
			Date:        day,
			ClinicianID: clinician.ID,
			Session:     session,
			Source:      models.SourceOnCall,
			IsOnCall:    true,
		}
	}

	if datemath.IsWeekday(day) {
		cellID := fmt.Sprintf("%d|%d|%d", clinician.ID, datemath.WeekOfMonth(day), datemath.ISOWeekday(day))
		if cell, ok := jobPlan[cellID]; ok {
			if dutyID := cell.DutyFor(session); dutyID != nil {
				return &models.RotaEntry{
					Date:                  day,
					ClinicianID:           clinician.ID,
					Session:               session,
					Source:                models.SourceJobPlan,
					DutyID:                dutyID,
					SupportingClinicianID: cell.SupportingFor(session),
				}
			}
		}
	}

	return nil
}

func sameDerivedEntry(a, b *models.RotaEntry) bool {
	return a.Source == b.Source &&
		a.IsOnCall == b.IsOnCall &&
		uintPtrEq(a.DutyID, b.DutyID) &&
		uintPtrEq(a.SupportingClinicianID, b.SupportingClinicianID) &&
		a.Note == b.Note
}

func uintPtrEq(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// GenerateRollingHorizon materializes from today through the end of the
// configured horizon. This is the entry point an external scheduler invokes
// on a cadence; the engine only guarantees it is idempotent.
func (s *MaterializerService) GenerateRollingHorizon() error {
	today := datemath.DateOnly(time.Now())
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := monthStart.AddDate(0, s.horizonMonths+1, -1)
	return s.GenerateRota(today, to)
}
