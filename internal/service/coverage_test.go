package service

import (
	"testing"

	"rota-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectNeedsFromJobPlan(t *testing.T) {
	env := newTestEnv()
	reg := env.addClinician("Reg 1", models.RoleRegistrar)
	clinic := env.addDuty("Fracture Clinic", true)
	consultant := env.addClinician("Dr A", models.RoleConsultant)

	// 2024-03-04 is Monday, week 1 of the month.
	env.planDuty(reg.ID, 1, 1, models.SessionAM, clinic.ID, ptr(consultant.ID))
	require.NoError(t, env.leaves.Create(&models.Leave{
		ClinicianID: reg.ID, Date: date("2024-03-04"), Session: models.SessionAM, Type: models.LeaveTypeAnnual,
	}))

	needs, err := env.coverage.DetectNeeds(reg.ID, date("2024-03-01"), date("2024-03-08"))
	require.NoError(t, err)
	require.Len(t, needs, 1)
	assert.Equal(t, clinic.ID, needs[0].DutyID)
	assert.Equal(t, models.SessionAM, needs[0].Session)
	assert.Equal(t, reg.ID, needs[0].AbsentClinicianID)
	require.NotNil(t, needs[0].SupportingConsultantID)
	assert.Equal(t, consultant.ID, *needs[0].SupportingConsultantID)
	assert.Equal(t, models.CoverageTypeRegistrar, needs[0].Type)
}

func TestDetectNeedsPrefersManualOverride(t *testing.T) {
	env := newTestEnv()
	reg := env.addClinician("Reg 1", models.RoleRegistrar)
	clinic := env.addDuty("Fracture Clinic", true)
	theatre := env.addDuty("Theatre List", true)

	env.planDuty(reg.ID, 1, 1, models.SessionAM, clinic.ID, nil)
	// Manual override swaps the registrar onto the theatre list that day.
	theatreID := theatre.ID
	require.NoError(t, env.rota.Upsert(&models.RotaEntry{
		Date: date("2024-03-04"), ClinicianID: reg.ID, Session: models.SessionAM,
		Source: models.SourceManual, DutyID: &theatreID,
	}))
	require.NoError(t, env.leaves.Create(&models.Leave{
		ClinicianID: reg.ID, Date: date("2024-03-04"), Session: models.SessionFull, Type: models.LeaveTypeSick,
	}))

	needs, err := env.coverage.DetectNeeds(reg.ID, date("2024-03-04"), date("2024-03-04"))
	require.NoError(t, err)
	require.Len(t, needs, 1)
	assert.Equal(t, theatre.ID, needs[0].DutyID)
	assert.Nil(t, needs[0].SupportingConsultantID)
}

func TestDetectNeedsSkipsOptedOutDutyAndWeekends(t *testing.T) {
	env := newTestEnv()
	reg := env.addClinician("Reg 1", models.RoleRegistrar)
	admin := env.addDuty("Admin", false)

	env.planDuty(reg.ID, 1, 1, models.SessionAM, admin.ID, nil)
	require.NoError(t, env.leaves.Create(&models.Leave{
		ClinicianID: reg.ID, Date: date("2024-03-04"), Session: models.SessionAM, Type: models.LeaveTypeAnnual,
	}))
	// Weekend leave never produces a need.
	require.NoError(t, env.leaves.Create(&models.Leave{
		ClinicianID: reg.ID, Date: date("2024-03-09"), Session: models.SessionFull, Type: models.LeaveTypeAnnual,
	}))

	needs, err := env.coverage.DetectNeeds(reg.ID, date("2024-03-01"), date("2024-03-10"))
	require.NoError(t, err)
	assert.Empty(t, needs)
}

func TestDetectNeedsIgnoresConsultants(t *testing.T) {
	env := newTestEnv()
	consultant := env.addClinician("Dr A", models.RoleConsultant)
	clinic := env.addDuty("Clinic", true)
	env.planDuty(consultant.ID, 1, 1, models.SessionAM, clinic.ID, nil)
	require.NoError(t, env.leaves.Create(&models.Leave{
		ClinicianID: consultant.ID, Date: date("2024-03-04"), Session: models.SessionAM, Type: models.LeaveTypeAnnual,
	}))

	needs, err := env.coverage.DetectNeeds(consultant.ID, date("2024-03-01"), date("2024-03-08"))
	require.NoError(t, err)
	assert.Empty(t, needs)
}

func TestCreateCoverageRequestsIsIdempotent(t *testing.T) {
	env := newTestEnv()
	reg := env.addClinician("Reg 1", models.RoleRegistrar)
	clinic := env.addDuty("Clinic", true)

	needs := []CoverageNeed{{
		Date: date("2024-03-04"), Session: models.SessionAM, DutyID: clinic.ID,
		AbsentClinicianID: reg.ID, Type: models.CoverageTypeRegistrar,
		Reason: models.CoverageReasonLeave,
	}}

	created, err := env.coverage.CreateCoverageRequests(needs)
	require.NoError(t, err)
	require.Len(t, created, 1)

	created, err = env.coverage.CreateCoverageRequests(needs)
	require.NoError(t, err)
	assert.Empty(t, created)

	all, err := env.requests.FindInRange(date("2024-03-01"), date("2024-03-08"))
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConsultantLeaveFreesSupportingRegistrarAndRaisesOwnNeed(t *testing.T) {
	env := newTestEnv()
	consultant := env.addClinician("Dr X", models.RoleConsultant)
	reg := env.addClinician("Reg Y", models.RoleRegistrar)
	clinic := env.addDuty("Clinic", true)
	assisting := env.addDuty("Assisting", true)

	// 2024-03-04 is Monday, week 1. X runs the clinic, Y assists X.
	env.planDuty(consultant.ID, 1, 1, models.SessionAM, clinic.ID, nil)
	env.planDuty(reg.ID, 1, 1, models.SessionAM, assisting.ID, ptr(consultant.ID))

	// Y's materialized job-plan entry names X as supporting clinician.
	assistingID := assisting.ID
	consultantID := consultant.ID
	require.NoError(t, env.rota.Upsert(&models.RotaEntry{
		Date: date("2024-03-04"), ClinicianID: reg.ID, Session: models.SessionAM,
		Source: models.SourceJobPlan, DutyID: &assistingID, SupportingClinicianID: &consultantID,
	}))

	_, err := env.coverage.RecordLeave(LeaveInput{
		ClinicianID: consultant.ID, Date: date("2024-03-04"),
		Session: models.SessionFull, Type: models.LeaveTypeAnnual,
	})
	require.NoError(t, err)

	// Y's AM entry is gone.
	entry, err := env.rota.GetByKey(date("2024-03-04"), reg.ID, models.SessionAM)
	require.NoError(t, err)
	assert.Nil(t, entry)

	// Exactly one request, for X's own AM clinic.
	all, err := env.requests.FindInRange(date("2024-03-04"), date("2024-03-04"))
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, clinic.ID, all[0].DutyID)
	assert.Equal(t, consultant.ID, all[0].AbsentClinicianID)
	assert.Equal(t, models.CoverageTypeConsultant, all[0].Type)
	assert.Equal(t, models.CoverageReasonLeave, all[0].Reason)
	assert.Equal(t, models.SessionAM, all[0].Session)
}

func TestWithdrawConsultantLeaveRestoresRegistrarEntries(t *testing.T) {
	env := newTestEnv()
	consultant := env.addClinician("Dr X", models.RoleConsultant)
	reg := env.addClinician("Reg Y", models.RoleRegistrar)
	assisting := env.addDuty("Assisting", true)
	env.planDuty(reg.ID, 1, 1, models.SessionAM, assisting.ID, ptr(consultant.ID))

	assistingID := assisting.ID
	consultantID := consultant.ID
	require.NoError(t, env.rota.Upsert(&models.RotaEntry{
		Date: date("2024-03-04"), ClinicianID: reg.ID, Session: models.SessionAM,
		Source: models.SourceJobPlan, DutyID: &assistingID, SupportingClinicianID: &consultantID,
	}))

	leave, err := env.coverage.RecordLeave(LeaveInput{
		ClinicianID: consultant.ID, Date: date("2024-03-04"),
		Session: models.SessionAM, Type: models.LeaveTypeStudy,
	})
	require.NoError(t, err)

	entry, err := env.rota.GetByKey(date("2024-03-04"), reg.ID, models.SessionAM)
	require.NoError(t, err)
	require.Nil(t, entry)

	require.NoError(t, env.coverage.WithdrawLeave(leave.ID))

	// Restore regenerated the job-plan entry.
	entry, err = env.rota.GetByKey(date("2024-03-04"), reg.ID, models.SessionAM)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.SourceJobPlan, entry.Source)
	require.NotNil(t, entry.DutyID)
	assert.Equal(t, assisting.ID, *entry.DutyID)

	// Restoring twice is harmless.
	require.NoError(t, env.coverage.RestoreConsultantImpact(consultant.ID, date("2024-03-04"), models.SessionAM))
	entry2, err := env.rota.GetByKey(date("2024-03-04"), reg.ID, models.SessionAM)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, entry2.ID)
}

func TestCancelCoverageRequestsOnlyTouchesPendingLeaveRequests(t *testing.T) {
	env := newTestEnv()
	reg := env.addClinician("Reg 1", models.RoleRegistrar)
	clinic := env.addDuty("Clinic", true)
	env.planDuty(reg.ID, 1, 1, models.SessionAM, clinic.ID, nil)
	env.planDuty(reg.ID, 1, 1, models.SessionPM, clinic.ID, nil)

	leave, err := env.coverage.RecordLeave(LeaveInput{
		ClinicianID: reg.ID, Date: date("2024-03-04"),
		Session: models.SessionFull, Type: models.LeaveTypeAnnual,
	})
	require.NoError(t, err)

	pending, err := env.requests.FindPendingInRange(date("2024-03-04"), date("2024-03-04"))
	require.NoError(t, err)
	require.Len(t, pending, 2)

	// Assign the AM request; a manual request exists alongside.
	assigned := pending[0]
	other := env.addClinician("Reg 2", models.RoleRegistrar)
	assigned.Status = models.CoverageStatusAssigned
	assigned.AssignedClinicianID = &other.ID
	require.NoError(t, env.requests.Update(&assigned))
	require.NoError(t, env.requests.Create(&models.CoverageRequest{
		Date: date("2024-03-04"), Session: models.SessionAM, Type: models.CoverageTypeRegistrar,
		DutyID: clinic.ID, AbsentClinicianID: reg.ID,
		Status: models.CoverageStatusPending, Reason: models.CoverageReasonManual,
	}))

	require.NoError(t, env.coverage.WithdrawLeave(leave.ID))

	remaining, err := env.requests.FindInRange(date("2024-03-04"), date("2024-03-04"))
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	for _, request := range remaining {
		stillPendingLeave := request.Status == models.CoverageStatusPending &&
			request.Reason == models.CoverageReasonLeave
		assert.False(t, stillPendingLeave, "request %d", request.ID)
	}
}
