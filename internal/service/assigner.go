package service

import (
	"fmt"
	"sort"
	"time"

	"rota-engine/internal/apperr"
	"rota-engine/internal/models"
	"rota-engine/internal/repository"
	"rota-engine/pkg/datemath"

	"github.com/sirupsen/logrus"
)

// ScoringParams are the unit prices of the coverage scorer. The raw bounds
// are empirically chosen normalization constants, not invariants, so they
// remain configurable.
type ScoringParams struct {
	WindowDays            int
	CreditCapDays         int
	CoverageCreditPerDay  int
	OnCallCreditPerDay    int
	OnCallPenalty         int
	DutyPenalty           int
	CoveragePenalty       int
	RecentCoverageDays    int
	RecentCoveragePenalty int
	YesterdayPenalty      int
	RawMin                int
	RawMax                int
	ConsultantBase        int
}

// DefaultScoringParams mirrors the historically tuned values.
var DefaultScoringParams = ScoringParams{
	WindowDays:            30,
	CreditCapDays:         30,
	CoverageCreditPerDay:  2,
	OnCallCreditPerDay:    1,
	OnCallPenalty:         8,
	DutyPenalty:           3,
	CoveragePenalty:       5,
	RecentCoverageDays:    3,
	RecentCoveragePenalty: 15,
	YesterdayPenalty:      10,
	RawMin:                -150,
	RawMax:                90,
	ConsultantBase:        100,
}

// ScoredCandidate is one available clinician ranked for a coverage slot.
type ScoredCandidate struct {
	ClinicianID uint   `json:"clinician_id"`
	Name        string `json:"name"`
	Score       int    `json:"score"`
}

// UnavailableCandidate names a clinician excluded from scoring and why.
type UnavailableCandidate struct {
	ClinicianID uint   `json:"clinician_id"`
	Name        string `json:"name"`
	Reason      string `json:"reason"`
}

// Suggestion is the assigner's answer for one coverage slot.
type Suggestion struct {
	Available   []ScoredCandidate      `json:"available"`
	Unavailable []UnavailableCandidate `json:"unavailable"`
}

// AssignerService ranks candidates for open coverage slots and performs the
// pending -> assigned transition.
type AssignerService struct {
	clinicianRepo repository.ClinicianRepository
	leaveRepo     repository.LeaveRepository
	rotaRepo      repository.RotaEntryRepository
	requestRepo   repository.CoverageRequestRepository
	dutyRepo      repository.DutyRepository
	rotation      *RotationService
	restDays      *RestDayService
	auditRepo     repository.AuditRepository
	params        ScoringParams
	logger        *logrus.Logger
}

func NewAssignerService(
	clinicianRepo repository.ClinicianRepository,
	leaveRepo repository.LeaveRepository,
	rotaRepo repository.RotaEntryRepository,
	requestRepo repository.CoverageRequestRepository,
	dutyRepo repository.DutyRepository,
	rotation *RotationService,
	restDays *RestDayService,
	auditRepo repository.AuditRepository,
	params ScoringParams,
) *AssignerService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &AssignerService{
		clinicianRepo: clinicianRepo,
		leaveRepo:     leaveRepo,
		rotaRepo:      rotaRepo,
		requestRepo:   requestRepo,
		dutyRepo:      dutyRepo,
		rotation:      rotation,
		restDays:      restDays,
		auditRepo:     auditRepo,
		params:        params,
		logger:        logger,
	}
}

// SuggestRegistrars ranks available registrars for one coverage slot.
// Unavailability is checked in fixed priority (leave, rest day, on call,
// already covering); the first match wins. Ranking is score descending,
// clinician id ascending on ties.
func (s *AssignerService) SuggestRegistrars(date time.Time, session models.Session, excludeIDs []uint) (*Suggestion, error) {
	return s.suggest(date, session, models.RoleRegistrar, excludeIDs)
}

// SuggestConsultants is the consultant variant: same availability checks, a
// flat base score reduced by workload penalties. Consultant coverage is
// rarer and less contended, so recency credit is not modelled.
func (s *AssignerService) SuggestConsultants(date time.Time, session models.Session, excludeIDs []uint) (*Suggestion, error) {
	return s.suggest(date, session, models.RoleConsultant, excludeIDs)
}

func (s *AssignerService) suggest(date time.Time, session models.Session, role models.Role, excludeIDs []uint) (*Suggestion, error) {
	date = datemath.DateOnly(date)
	if session != models.SessionAM && session != models.SessionPM {
		return nil, apperr.Validationf("suggestions need a half-day session, got %q", session)
	}

	excluded := make(map[uint]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	candidates, err := s.clinicianRepo.GetActiveByRole(role)
	if err != nil {
		return nil, err
	}

	onCallByDay, err := s.onCallWindow(role, datemath.AddDays(date, -s.params.WindowDays), date)
	if err != nil {
		return nil, err
	}

	restIdx := RestDayIndex{}
	if role == models.RoleRegistrar {
		rest, err := s.restDays.DeriveRestDays(date, date)
		if err != nil {
			return nil, err
		}
		restIdx = IndexRestDays(rest)
	}

	suggestion := &Suggestion{}
	for _, candidate := range candidates {
		if excluded[candidate.ID] {
			continue
		}

		reason, err := s.unavailableReason(candidate, date, session, onCallByDay, restIdx)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			suggestion.Unavailable = append(suggestion.Unavailable, UnavailableCandidate{
				ClinicianID: candidate.ID,
				Name:        candidate.Name,
				Reason:      reason,
			})
			continue
		}

		var score int
		if role == models.RoleRegistrar {
			score, err = s.scoreRegistrar(candidate.ID, date, onCallByDay)
		} else {
			score, err = s.scoreConsultant(candidate.ID, date, onCallByDay)
		}
		if err != nil {
			return nil, err
		}

		suggestion.Available = append(suggestion.Available, ScoredCandidate{
			ClinicianID: candidate.ID,
			Name:        candidate.Name,
			Score:       score,
		})
	}

	// Deterministic ranking: score descending, then clinician id ascending.
	sort.SliceStable(suggestion.Available, func(i, j int) bool {
		a, b := suggestion.Available[i], suggestion.Available[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.ClinicianID < b.ClinicianID
	})

	return suggestion, nil
}

// onCallWindow maps each day in [from, to] to the on-call clinician id for
// the role, computed once and shared across candidates.
func (s *AssignerService) onCallWindow(role models.Role, from, to time.Time) (map[string]uint, error) {
	window := make(map[string]uint)
	for _, day := range datemath.Range(from, to) {
		clinician, err := s.rotation.WhoIsOnCall(day, role)
		if err != nil {
			return nil, err
		}
		if clinician != nil {
			window[datemath.Format(day)] = clinician.ID
		}
	}
	return window, nil
}

func (s *AssignerService) unavailableReason(candidate models.Clinician, date time.Time, session models.Session, onCallByDay map[string]uint, restIdx RestDayIndex) (string, error) {
	leaves, err := s.leaveRepo.FindForClinician(candidate.ID, date, date)
	if err != nil {
		return "", err
	}
	for _, leave := range leaves {
		if leave.Session.Covers(session) {
			return "on leave", nil
		}
	}

	if _, ok := restIdx.Lookup(date, candidate.ID, session); ok {
		return "rest day", nil
	}

	if onCallByDay[datemath.Format(date)] == candidate.ID {
		return "on call", nil
	}

	covering, err := s.requestRepo.FindAssignedTo(candidate.ID, date, date)
	if err != nil {
		return "", err
	}
	for _, request := range covering {
		if request.Session.Covers(session) {
			return "already covering", nil
		}
	}

	return "", nil
}

// scoreRegistrar prices the trailing window: credit for days since the last
// coverage assignment and last on-call (candidates with no history get the
// full cap), penalties per on-call, duty and coverage assignment in the
// window, and extra penalties for very recent coverage. The raw sum is
// rescaled from [RawMin, RawMax] to [0, 100] and clamped.
func (s *AssignerService) scoreRegistrar(clinicianID uint, date time.Time, onCallByDay map[string]uint) (int, error) {
	p := s.params
	windowFrom := datemath.AddDays(date, -p.WindowDays)
	windowTo := datemath.AddDays(date, -1)

	assigned, err := s.requestRepo.FindAssignedTo(clinicianID, windowFrom, windowTo)
	if err != nil {
		return 0, err
	}
	coverageCount := len(assigned)
	daysSinceCoverage := p.CreditCapDays
	coveredRecently := false
	coveredYesterday := false
	for _, request := range assigned {
		gap := datemath.DaysBetween(request.Date, date)
		if gap < daysSinceCoverage {
			daysSinceCoverage = gap
		}
		if gap <= p.RecentCoverageDays {
			coveredRecently = true
		}
		if gap == 1 {
			coveredYesterday = true
		}
	}

	onCallCount := 0
	daysSinceOnCall := p.CreditCapDays
	for _, day := range datemath.Range(windowFrom, windowTo) {
		if onCallByDay[datemath.Format(day)] != clinicianID {
			continue
		}
		onCallCount++
		gap := datemath.DaysBetween(day, date)
		if gap < daysSinceOnCall {
			daysSinceOnCall = gap
		}
	}

	entries, err := s.rotaRepo.FindForClinician(clinicianID, windowFrom, windowTo)
	if err != nil {
		return 0, err
	}
	dutyCount := 0
	for _, entry := range entries {
		if entry.DutyID != nil {
			dutyCount++
		}
	}

	raw := p.CoverageCreditPerDay*daysSinceCoverage +
		p.OnCallCreditPerDay*daysSinceOnCall -
		p.OnCallPenalty*onCallCount -
		p.DutyPenalty*dutyCount -
		p.CoveragePenalty*coverageCount
	if coveredRecently {
		raw -= p.RecentCoveragePenalty
	}
	if coveredYesterday {
		raw -= p.YesterdayPenalty
	}

	return normalizeScore(raw, p.RawMin, p.RawMax), nil
}

func (s *AssignerService) scoreConsultant(clinicianID uint, date time.Time, onCallByDay map[string]uint) (int, error) {
	p := s.params
	windowFrom := datemath.AddDays(date, -p.WindowDays)
	windowTo := datemath.AddDays(date, -1)

	onCallCount := 0
	for _, day := range datemath.Range(windowFrom, windowTo) {
		if onCallByDay[datemath.Format(day)] == clinicianID {
			onCallCount++
		}
	}

	assigned, err := s.requestRepo.FindAssignedTo(clinicianID, windowFrom, windowTo)
	if err != nil {
		return 0, err
	}

	entries, err := s.rotaRepo.FindForClinician(clinicianID, windowFrom, windowTo)
	if err != nil {
		return 0, err
	}
	dutyCount := 0
	for _, entry := range entries {
		if entry.DutyID != nil {
			dutyCount++
		}
	}

	score := p.ConsultantBase -
		p.OnCallPenalty*onCallCount -
		p.DutyPenalty*dutyCount -
		p.CoveragePenalty*len(assigned)
	return clampScore(score), nil
}

func normalizeScore(raw, rawMin, rawMax int) int {
	span := rawMax - rawMin
	if span <= 0 {
		return 0
	}
	return clampScore((raw - rawMin) * 100 / span)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// AutoAssign transitions a pending request to assigned using the top-ranked
// candidate, and pins a manual rota row for the assignee.
func (s *AssignerService) AutoAssign(requestID uint) (*models.CoverageRequest, error) {
	request, err := s.requestRepo.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperr.NotFound("coverage request", requestID)
	}
	if !request.IsPending() {
		return nil, apperr.Conflictf("coverage request %d is %s, not pending", requestID, request.Status)
	}

	exclude := []uint{request.AbsentClinicianID}
	var suggestion *Suggestion
	if request.Type == models.CoverageTypeConsultant {
		suggestion, err = s.SuggestConsultants(request.Date, request.Session, exclude)
	} else {
		suggestion, err = s.SuggestRegistrars(request.Date, request.Session, exclude)
	}
	if err != nil {
		return nil, err
	}
	if len(suggestion.Available) == 0 {
		return nil, fmt.Errorf("no available candidates for coverage request %d", requestID)
	}

	top := suggestion.Available[0]
	before := *request
	now := time.Now()
	request.Status = models.CoverageStatusAssigned
	request.AssignedClinicianID = &top.ClinicianID
	request.AssignedAt = &now

	if err := s.requestRepo.Update(request); err != nil {
		s.logger.WithError(err).Error("Failed to assign coverage request")
		return nil, err
	}
	s.auditRepo.Record("assign", "coverage_request", fmt.Sprintf("%d", request.ID), &before, request)

	dutyID := request.DutyID
	entry := &models.RotaEntry{
		Date:        request.Date,
		ClinicianID: top.ClinicianID,
		Session:     request.Session,
		Source:      models.SourceManual,
		DutyID:      &dutyID,
		Note:        "covering",
	}
	if err := s.rotaRepo.Upsert(entry); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"request_id":   request.ID,
		"clinician_id": top.ClinicianID,
		"score":        top.Score,
	}).Info("Coverage request auto-assigned")

	return request, nil
}

// BulkAutoAssign assigns every pending request in the range, skipping the
// ones with no available candidate. Returns (assigned, skipped).
func (s *AssignerService) BulkAutoAssign(from, to time.Time) (int, int, error) {
	pending, err := s.requestRepo.FindPendingInRange(from, to)
	if err != nil {
		return 0, 0, err
	}

	assigned, skipped := 0, 0
	for _, request := range pending {
		if _, err := s.AutoAssign(request.ID); err != nil {
			s.logger.WithError(err).WithField("request_id", request.ID).Warn("Skipping coverage request")
			skipped++
			continue
		}
		assigned++
	}

	s.logger.WithFields(logrus.Fields{
		"assigned": assigned,
		"skipped":  skipped,
	}).Info("Bulk auto-assign finished")

	return assigned, skipped, nil
}
