package service

import (
	"time"

	"rota-engine/internal/models"
	"rota-engine/pkg/datemath"
)

// testEnv wires every service onto the in-memory fakes.
type testEnv struct {
	clinicians  *fakeClinicianRepo
	duties      *fakeDutyRepo
	jobPlans    *fakeJobPlanRepo
	configs     *fakeOnCallConfigRepo
	slots       *fakeOnCallSlotRepo
	patterns    *fakeOnCallPatternRepo
	assignments *fakeSlotAssignmentRepo
	leaves      *fakeLeaveRepo
	rota        *fakeRotaRepo
	requests    *fakeCoverageRequestRepo
	audit       *fakeAuditRepo

	rotation     *RotationService
	restDays     *RestDayService
	coverage     *CoverageService
	composer     *ComposerService
	assigner     *AssignerService
	materializer *MaterializerService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		clinicians:  newFakeClinicianRepo(),
		duties:      newFakeDutyRepo(),
		jobPlans:    &fakeJobPlanRepo{},
		configs:     newFakeOnCallConfigRepo(),
		slots:       newFakeOnCallSlotRepo(),
		patterns:    &fakeOnCallPatternRepo{},
		assignments: newFakeSlotAssignmentRepo(),
		leaves:      newFakeLeaveRepo(),
		rota:        newFakeRotaRepo(),
		requests:    newFakeCoverageRequestRepo(),
		audit:       &fakeAuditRepo{},
	}

	env.rotation = NewRotationService(
		env.configs, env.slots, env.patterns, env.assignments, env.clinicians, env.audit)
	env.restDays = NewRestDayService(env.rotation)
	env.coverage = NewCoverageService(
		env.clinicians, env.leaves, env.rota, env.jobPlans, env.duties, env.requests, env.audit)
	env.composer = NewComposerService(
		env.clinicians, env.leaves, env.rota, env.jobPlans, env.duties, env.requests,
		env.rotation, env.restDays)
	env.assigner = NewAssignerService(
		env.clinicians, env.leaves, env.rota, env.requests, env.duties,
		env.rotation, env.restDays, env.audit, DefaultScoringParams)
	env.materializer = NewMaterializerService(
		env.clinicians, env.leaves, env.rota, env.jobPlans,
		env.rotation, env.restDays, env.coverage, 3)

	return env
}

func (env *testEnv) addClinician(name string, role models.Role) models.Clinician {
	c := models.Clinician{Name: name, Role: role, Active: true}
	_ = env.clinicians.Create(&c)
	return c
}

func (env *testEnv) addDuty(name string, requiresCoverage bool) models.Duty {
	d := models.Duty{Name: name, RequiresCoverage: &requiresCoverage}
	_ = env.duties.Create(&d)
	return d
}

func (env *testEnv) addSlot(role models.Role, name string, position int) models.OnCallSlot {
	s := models.OnCallSlot{Role: role, Name: name, Position: position, Active: true}
	_ = env.slots.Create(&s)
	return s
}

func (env *testEnv) assignSlot(slotID, clinicianID uint, from string) models.SlotAssignment {
	a := models.SlotAssignment{SlotID: slotID, ClinicianID: clinicianID, EffectiveFrom: date(from)}
	_ = env.assignments.Create(&a)
	return a
}

func (env *testEnv) setConfig(role models.Role, start string, cycleLength int) {
	_ = env.configs.Upsert(&models.OnCallConfig{
		Role: role, StartDate: date(start), CycleLength: cycleLength,
	})
}

func (env *testEnv) planDuty(clinicianID uint, weekNo, dayOfWeek int, session models.Session, dutyID uint, supportingID *uint) {
	cell, _ := env.jobPlans.GetCell(clinicianID, weekNo, dayOfWeek)
	if cell == nil {
		cell = &models.JobPlanWeek{ClinicianID: clinicianID, WeekNo: weekNo, DayOfWeek: dayOfWeek}
	}
	if session == models.SessionAM {
		cell.AMDutyID = &dutyID
		cell.AMSupportingID = supportingID
	} else {
		cell.PMDutyID = &dutyID
		cell.PMSupportingID = supportingID
	}
	_ = env.jobPlans.Upsert(cell)
}

func date(s string) time.Time {
	d, err := datemath.Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptr(v uint) *uint {
	return &v
}
