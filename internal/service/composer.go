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

// maxComposeDays bounds one schedule computation; longer spans must be
// requested in pieces.
const maxComposeDays = 370

// OnCallDutyName labels composed on-call sessions for display.
const OnCallDutyName = "On Call"

// ScheduleEntry is the composed truth for one clinician half-day, ready for
// the API, ICS export or suggestion UI.
type ScheduleEntry struct {
	Date                    string             `json:"date"`
	ClinicianID             uint               `json:"clinician_id"`
	ClinicianName           string             `json:"clinician_name"`
	Role                    models.Role        `json:"role"`
	Session                 models.Session     `json:"session"`
	DutyID                  *uint              `json:"duty_id"`
	DutyName                string             `json:"duty_name"`
	IsOnCall                bool               `json:"is_oncall"`
	IsLeave                 bool               `json:"is_leave"`
	LeaveType               string             `json:"leave_type"`
	IsRest                  bool               `json:"is_rest"`
	SupportingClinicianID   *uint              `json:"supporting_clinician_id"`
	SupportingClinicianName string             `json:"supporting_clinician_name"`
	Source                  models.EntrySource `json:"source"`
	Note                    string             `json:"note"`
}

// ComposerService merges every schedule source into one ordered list of
// entries, one per (clinician, date, session). Pure read; safe to call
// freely.
type ComposerService struct {
	clinicianRepo repository.ClinicianRepository
	leaveRepo     repository.LeaveRepository
	rotaRepo      repository.RotaEntryRepository
	jobPlanRepo   repository.JobPlanRepository
	dutyRepo      repository.DutyRepository
	requestRepo   repository.CoverageRequestRepository
	rotation      *RotationService
	restDays      *RestDayService
	logger        *logrus.Logger
}

func NewComposerService(
	clinicianRepo repository.ClinicianRepository,
	leaveRepo repository.LeaveRepository,
	rotaRepo repository.RotaEntryRepository,
	jobPlanRepo repository.JobPlanRepository,
	dutyRepo repository.DutyRepository,
	requestRepo repository.CoverageRequestRepository,
	rotation *RotationService,
	restDays *RestDayService,
) *ComposerService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &ComposerService{
		clinicianRepo: clinicianRepo,
		leaveRepo:     leaveRepo,
		rotaRepo:      rotaRepo,
		jobPlanRepo:   jobPlanRepo,
		dutyRepo:      dutyRepo,
		requestRepo:   requestRepo,
		rotation:      rotation,
		restDays:      restDays,
		logger:        logger,
	}
}

// composeIndex holds the read-only lookup maps built once per call from
// batch fetches. A performance device only; never persisted.
type composeIndex struct {
	clinicians []models.Clinician
	names      map[uint]string
	duties     map[uint]models.Duty
	leaves     map[string][]models.Leave            // date|clinician
	manual     map[string]models.RotaEntry          // date|clinician|session, manual source only
	coverage   map[string]models.CoverageRequest    // date|assignee|session
	jobPlan    map[string]models.JobPlanWeek        // clinician|week|dow
	onCall     map[string]uint                      // date|role -> clinician id
	rest       RestDayIndex
}

// ComputeSchedule produces exactly one entry per active clinician, date and
// half-day session in [from, to]. Precedence, highest first: leave, manual
// override, rest (registrars), assigned coverage, on-call, job plan
// (weekdays), explicit empty. Leave is checked first because a recorded
// absence must stay visible whatever else was scheduled.
func (s *ComposerService) ComputeSchedule(from, to time.Time) ([]ScheduleEntry, error) {
	from = datemath.DateOnly(from)
	to = datemath.DateOnly(to)
	if from.After(to) {
		return nil, apperr.Validationf("invalid range %s..%s", datemath.Format(from), datemath.Format(to))
	}
	if datemath.DaysBetween(from, to) > maxComposeDays {
		return nil, apperr.Validationf("range exceeds %d days", maxComposeDays)
	}

	idx, err := s.buildIndex(from, to)
	if err != nil {
		return nil, err
	}

	var entries []ScheduleEntry
	for _, day := range datemath.Range(from, to) {
		for _, clinician := range idx.clinicians {
			for _, session := range models.HalfDaySessions {
				entries = append(entries, s.composeEntry(idx, clinician, day, session))
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"from":    datemath.Format(from),
		"to":      datemath.Format(to),
		"entries": len(entries),
	}).Debug("Composed schedule")

	return entries, nil
}

func (s *ComposerService) buildIndex(from, to time.Time) (*composeIndex, error) {
	idx := &composeIndex{
		names:    make(map[uint]string),
		duties:   make(map[uint]models.Duty),
		leaves:   make(map[string][]models.Leave),
		manual:   make(map[string]models.RotaEntry),
		coverage: make(map[string]models.CoverageRequest),
		jobPlan:  make(map[string]models.JobPlanWeek),
		onCall:   make(map[string]uint),
	}

	var err error
	if idx.clinicians, err = s.clinicianRepo.GetAllActive(); err != nil {
		return nil, err
	}
	all, err := s.clinicianRepo.GetAll()
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		idx.names[c.ID] = c.Name
	}

	duties, err := s.dutyRepo.GetAll()
	if err != nil {
		return nil, err
	}
	for _, d := range duties {
		idx.duties[d.ID] = d
	}

	leaves, err := s.leaveRepo.FindInRange(from, to)
	if err != nil {
		return nil, err
	}
	for _, l := range leaves {
		key := fmt.Sprintf("%s|%d", datemath.Format(l.Date), l.ClinicianID)
		idx.leaves[key] = append(idx.leaves[key], l)
	}

	rotaRows, err := s.rotaRepo.FindInRange(from, to)
	if err != nil {
		return nil, err
	}
	for _, e := range rotaRows {
		if e.Source != models.SourceManual {
			continue
		}
		idx.manual[cellKey(e.Date, e.ClinicianID, e.Session)] = e
	}

	assigned, err := s.requestRepo.FindAssignedInRange(from, to)
	if err != nil {
		return nil, err
	}
	for _, r := range assigned {
		if r.AssignedClinicianID == nil {
			continue
		}
		idx.coverage[cellKey(r.Date, *r.AssignedClinicianID, r.Session)] = r
	}

	cells, err := s.jobPlanRepo.FindAll()
	if err != nil {
		return nil, err
	}
	for _, c := range cells {
		idx.jobPlan[fmt.Sprintf("%d|%d|%d", c.ClinicianID, c.WeekNo, c.DayOfWeek)] = c
	}

	for _, day := range datemath.Range(from, to) {
		for _, role := range []models.Role{models.RoleConsultant, models.RoleRegistrar} {
			clinician, err := s.rotation.WhoIsOnCall(day, role)
			if err != nil {
				return nil, err
			}
			if clinician != nil {
				idx.onCall[fmt.Sprintf("%s|%s", datemath.Format(day), role)] = clinician.ID
			}
		}
	}

	rest, err := s.restDays.DeriveRestDays(from, to)
	if err != nil {
		return nil, err
	}
	idx.rest = IndexRestDays(rest)

	return idx, nil
}

func cellKey(date time.Time, clinicianID uint, session models.Session) string {
	return fmt.Sprintf("%s|%d|%s", datemath.Format(date), clinicianID, session)
}

// composeEntry runs the precedence switch for one cell. Exactly one branch
// fires.
func (s *ComposerService) composeEntry(idx *composeIndex, clinician models.Clinician, day time.Time, session models.Session) ScheduleEntry {
	entry := ScheduleEntry{
		Date:          datemath.Format(day),
		ClinicianID:   clinician.ID,
		ClinicianName: clinician.Name,
		Role:          clinician.Role,
		Session:       session,
	}

	// 1. Leave
	for _, leave := range idx.leaves[fmt.Sprintf("%s|%d", datemath.Format(day), clinician.ID)] {
		if leave.Session.Covers(session) {
			entry.IsLeave = true
			entry.LeaveType = leave.Type
			entry.Source = models.SourceLeave
			return entry
		}
	}

	// 2. Manual override
	if manual, ok := idx.manual[cellKey(day, clinician.ID, session)]; ok {
		entry.DutyID = manual.DutyID
		entry.IsOnCall = manual.IsOnCall
		entry.SupportingClinicianID = manual.SupportingClinicianID
		entry.Note = manual.Note
		entry.Source = models.SourceManual
		s.resolveDisplay(idx, &entry)
		return entry
	}

	// 3. Rest day (registrars only)
	if clinician.IsRegistrar() {
		if rest, ok := idx.rest.Lookup(day, clinician.ID, session); ok {
			entry.IsRest = true
			entry.DutyName = rest.DutyName
			entry.Source = models.SourceRest
			return entry
		}
	}

	// 4. Assigned coverage. Surfaced as manual: it is an explicit
	// assignment even though it originates in the coverage subsystem.
	if request, ok := idx.coverage[cellKey(day, clinician.ID, session)]; ok {
		if _, exists := idx.duties[request.DutyID]; exists {
			dutyID := request.DutyID
			entry.DutyID = &dutyID
			entry.Note = "covering"
			entry.Source = models.SourceManual
			s.resolveDisplay(idx, &entry)
			return entry
		}
		// Request references a vanished duty: skip it, fall through.
		s.logger.WithField("request_id", request.ID).Warn("Assigned coverage references missing duty")
	}

	// 5. On-call
	if idx.onCall[fmt.Sprintf("%s|%s", datemath.Format(day), clinician.Role)] == clinician.ID {
		entry.IsOnCall = true
		entry.DutyName = OnCallDutyName
		entry.Source = models.SourceOnCall
		return entry
	}

	// 6. Job plan, weekdays only
	if datemath.IsWeekday(day) {
		key := fmt.Sprintf("%d|%d|%d", clinician.ID, datemath.WeekOfMonth(day), datemath.ISOWeekday(day))
		if cell, ok := idx.jobPlan[key]; ok {
			if dutyID := cell.DutyFor(session); dutyID != nil {
				entry.DutyID = dutyID
				entry.SupportingClinicianID = cell.SupportingFor(session)
				entry.Source = models.SourceJobPlan
				s.resolveDisplay(idx, &entry)
				return entry
			}
		}
	}

	// 7. Explicit empty: a non-duty session, not an absence.
	return entry
}

func (s *ComposerService) resolveDisplay(idx *composeIndex, entry *ScheduleEntry) {
	if entry.DutyID != nil {
		if duty, ok := idx.duties[*entry.DutyID]; ok {
			entry.DutyName = duty.Name
		}
	}
	if entry.IsOnCall && entry.DutyName == "" {
		entry.DutyName = OnCallDutyName
	}
	if entry.SupportingClinicianID != nil {
		entry.SupportingClinicianName = idx.names[*entry.SupportingClinicianID]
	}
}
