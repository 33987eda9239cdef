package service

import (
	"time"

	"rota-engine/internal/apperr"
	"rota-engine/internal/models"
	"rota-engine/internal/repository"
	"rota-engine/pkg/datemath"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// RotationService resolves the cyclic on-call rotation: who occupies the
// on-call duty on a given date for a given role, plus the administrative
// operations that maintain slots and their time-bounded assignments.
type RotationService struct {
	configRepo     repository.OnCallConfigRepository
	slotRepo       repository.OnCallSlotRepository
	patternRepo    repository.OnCallPatternRepository
	assignmentRepo repository.SlotAssignmentRepository
	clinicianRepo  repository.ClinicianRepository
	auditRepo      repository.AuditRepository
	logger         *logrus.Logger
	validate       *validator.Validate
}

func NewRotationService(
	configRepo repository.OnCallConfigRepository,
	slotRepo repository.OnCallSlotRepository,
	patternRepo repository.OnCallPatternRepository,
	assignmentRepo repository.SlotAssignmentRepository,
	clinicianRepo repository.ClinicianRepository,
	auditRepo repository.AuditRepository,
) *RotationService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &RotationService{
		configRepo:     configRepo,
		slotRepo:       slotRepo,
		patternRepo:    patternRepo,
		assignmentRepo: assignmentRepo,
		clinicianRepo:  clinicianRepo,
		auditRepo:      auditRepo,
		logger:         logger,
		validate:       validator.New(),
	}
}

// WhoIsOnCall returns the clinician on call for date and role, or nil when
// no slot or assignment resolves. Day arithmetic happens on normalized
// date-only values so timezone and DST never shift the cycle.
func (s *RotationService) WhoIsOnCall(date time.Time, role models.Role) (*models.Clinician, error) {
	if !role.Valid() {
		return nil, apperr.Validationf("unknown role %q", role)
	}

	cfg, err := s.configRepo.GetByRole(role)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load on-call config")
		return nil, err
	}
	if cfg == nil || cfg.CycleLength <= 0 {
		return nil, nil
	}

	days := datemath.DaysBetween(cfg.StartDate, date)

	slot, err := s.resolveSlot(days, role, cfg)
	if err != nil || slot == nil {
		return nil, err
	}

	assignment, err := s.assignmentRepo.FindActiveAt(slot.ID, date)
	if err != nil {
		s.logger.WithError(err).Error("Failed to find slot assignment")
		return nil, err
	}
	if assignment == nil {
		return nil, nil
	}

	clinician, err := s.clinicianRepo.GetByID(assignment.ClinicianID)
	if err != nil {
		return nil, err
	}
	if clinician == nil {
		// Assignment points at a clinician that no longer exists. Not fatal
		// to schedule computation; treat the slot as unoccupied.
		s.logger.WithFields(logrus.Fields{
			"assignment_id": assignment.ID,
			"clinician_id":  assignment.ClinicianID,
		}).Warn("Slot assignment references missing clinician")
		return nil, nil
	}

	return clinician, nil
}

// resolveSlot maps the day offset onto a rotation slot. Consultants rotate
// weekly by position; registrars rotate daily, through the explicit pattern
// table when one exists, otherwise round-robin by position.
func (s *RotationService) resolveSlot(days int, role models.Role, cfg *models.OnCallConfig) (*models.OnCallSlot, error) {
	if role == models.RoleConsultant {
		weekOfCycle := datemath.PosMod(datemath.FloorDiv(days, 7), cfg.CycleLength)
		return s.slotRepo.GetActiveByRoleAndPosition(role, weekOfCycle+1)
	}

	dayOfCycle := datemath.PosMod(days, cfg.CycleLength) + 1

	patterns, err := s.patternRepo.FindAll()
	if err != nil {
		return nil, err
	}
	if len(patterns) > 0 {
		for _, p := range patterns {
			if p.DayOfCycle == dayOfCycle {
				return s.slotRepo.GetByID(p.SlotID)
			}
		}
		return nil, nil
	}

	slots, err := s.slotRepo.GetActiveByRole(role)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, nil
	}
	position := datemath.PosMod(dayOfCycle-1, len(slots)) + 1
	for i := range slots {
		if slots[i].Position == position {
			return &slots[i], nil
		}
	}
	return nil, nil
}

type CreateSlotAssignmentInput struct {
	SlotID        uint       `validate:"required"`
	ClinicianID   uint       `validate:"required"`
	EffectiveFrom time.Time  `validate:"required"`
	EffectiveTo   *time.Time `validate:"omitempty,gtfield=EffectiveFrom"`
}

// CreateSlotAssignment adds a clinician's tenure in a slot, rejecting
// overlaps with any existing tenure of the slot or the clinician.
func (s *RotationService) CreateSlotAssignment(input CreateSlotAssignmentInput) (*models.SlotAssignment, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, apperr.Validationf("invalid slot assignment: %s", err.Error())
	}

	slot, err := s.slotRepo.GetByID(input.SlotID)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, apperr.NotFound("slot", input.SlotID)
	}

	clinician, err := s.clinicianRepo.GetByID(input.ClinicianID)
	if err != nil {
		return nil, err
	}
	if clinician == nil {
		return nil, apperr.NotFound("clinician", input.ClinicianID)
	}
	if clinician.Role != slot.Role {
		return nil, apperr.Validationf("clinician %d has role %s, slot %q expects %s",
			clinician.ID, clinician.Role, slot.Name, slot.Role)
	}

	conflicts, err := s.assignmentRepo.FindOverlapping(
		input.SlotID, input.ClinicianID, input.EffectiveFrom, input.EffectiveTo, 0)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		c := conflicts[0]
		return nil, apperr.Conflictf(
			"assignment overlaps existing assignment %d (slot %d, clinician %d, from %s)",
			c.ID, c.SlotID, c.ClinicianID, datemath.Format(c.EffectiveFrom))
	}

	assignment := &models.SlotAssignment{
		SlotID:        input.SlotID,
		ClinicianID:   input.ClinicianID,
		EffectiveFrom: datemath.DateOnly(input.EffectiveFrom),
	}
	if input.EffectiveTo != nil {
		to := datemath.DateOnly(*input.EffectiveTo)
		assignment.EffectiveTo = &to
	}

	if err := s.assignmentRepo.Create(assignment); err != nil {
		s.logger.WithError(err).Error("Failed to create slot assignment")
		return nil, err
	}

	s.auditRepo.Record("create", "slot_assignment", datemath.Format(assignment.EffectiveFrom), nil, assignment)
	s.logger.WithFields(logrus.Fields{
		"id":           assignment.ID,
		"slot_id":      assignment.SlotID,
		"clinician_id": assignment.ClinicianID,
	}).Info("Slot assignment created")

	return assignment, nil
}

// EndSlotAssignment closes an open-ended tenure at endDate.
func (s *RotationService) EndSlotAssignment(id uint, endDate time.Time) (*models.SlotAssignment, error) {
	assignment, err := s.assignmentRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, apperr.NotFound("slot assignment", id)
	}

	end := datemath.DateOnly(endDate)
	if end.Before(datemath.DateOnly(assignment.EffectiveFrom)) {
		return nil, apperr.Validationf("end date %s precedes assignment start %s",
			datemath.Format(end), datemath.Format(assignment.EffectiveFrom))
	}

	before := *assignment
	assignment.EffectiveTo = &end
	if err := s.assignmentRepo.Update(assignment); err != nil {
		s.logger.WithError(err).Error("Failed to end slot assignment")
		return nil, err
	}

	s.auditRepo.Record("update", "slot_assignment", datemath.Format(assignment.EffectiveFrom), &before, assignment)
	return assignment, nil
}

// DeactivateSlot soft-deletes a slot. Slots with live or future assignments
// are protected; history stays resolvable either way.
func (s *RotationService) DeactivateSlot(id uint, asOf time.Time) error {
	slot, err := s.slotRepo.GetByID(id)
	if err != nil {
		return err
	}
	if slot == nil {
		return apperr.NotFound("slot", id)
	}

	busy, err := s.assignmentRepo.HasLiveOrFuture(id, asOf)
	if err != nil {
		return err
	}
	if busy {
		return apperr.Conflictf("slot %q has live or future assignments", slot.Name)
	}

	if err := s.slotRepo.Deactivate(id); err != nil {
		s.logger.WithError(err).Error("Failed to deactivate slot")
		return err
	}

	s.auditRepo.Record("deactivate", "oncall_slot", slot.Name, slot, nil)
	s.logger.WithField("slot", slot.Name).Info("Slot deactivated")
	return nil
}
