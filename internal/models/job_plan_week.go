package models

import "time"

// JobPlanWeek is one cell of a clinician's recurring weekly template, keyed
// by week-of-month (1..5) and ISO day-of-week (1..7). Static configuration;
// read-only to the engine.
type JobPlanWeek struct {
	ID          uint `gorm:"primarykey" json:"id"`
	ClinicianID uint `gorm:"not null;index:idx_jobplan_cell,unique" json:"clinician_id"`
	WeekNo      int  `gorm:"not null;check:week_no >= 1 AND week_no <= 5;index:idx_jobplan_cell,unique" json:"week_no"`
	DayOfWeek   int  `gorm:"not null;check:day_of_week >= 1 AND day_of_week <= 7;index:idx_jobplan_cell,unique" json:"day_of_week"`

	AMDutyID       *uint `json:"am_duty_id"`
	PMDutyID       *uint `json:"pm_duty_id"`
	AMSupportingID *uint `json:"am_supporting_id"`
	PMSupportingID *uint `json:"pm_supporting_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (JobPlanWeek) TableName() string {
	return "job_plan_weeks"
}

// DutyFor returns the duty planned for the given half-day session.
func (j *JobPlanWeek) DutyFor(s Session) *uint {
	if s == SessionAM {
		return j.AMDutyID
	}
	return j.PMDutyID
}

// SupportingFor returns the consultant the session's duty supports, if any.
func (j *JobPlanWeek) SupportingFor(s Session) *uint {
	if s == SessionAM {
		return j.AMSupportingID
	}
	return j.PMSupportingID
}

func (j *JobPlanWeek) IsValid() bool {
	return j.ClinicianID != 0 &&
		j.WeekNo >= 1 && j.WeekNo <= 5 &&
		j.DayOfWeek >= 1 && j.DayOfWeek <= 7
}
