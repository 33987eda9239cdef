package service

import (
	"fmt"
	"time"

	"rota-engine/internal/models"
	"rota-engine/pkg/datemath"

	"gorm.io/gorm"
)

// In-memory repository fakes. They implement the repository interfaces with
// the same contracts as the GORM implementations (not-found getters return
// nil, nil) so services can be exercised without a database.

type fakeClinicianRepo struct {
	clinicians map[uint]models.Clinician
	nextID     uint
}

func newFakeClinicianRepo() *fakeClinicianRepo {
	return &fakeClinicianRepo{clinicians: make(map[uint]models.Clinician), nextID: 1}
}

func (r *fakeClinicianRepo) Create(c *models.Clinician) error {
	if c.ID == 0 {
		c.ID = r.nextID
		r.nextID++
	} else if c.ID >= r.nextID {
		r.nextID = c.ID + 1
	}
	r.clinicians[c.ID] = *c
	return nil
}

func (r *fakeClinicianRepo) GetByID(id uint) (*models.Clinician, error) {
	c, ok := r.clinicians[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *fakeClinicianRepo) GetAll() ([]models.Clinician, error) {
	return r.sorted(func(c models.Clinician) bool { return true }), nil
}

func (r *fakeClinicianRepo) GetAllActive() ([]models.Clinician, error) {
	return r.sorted(func(c models.Clinician) bool { return c.Active }), nil
}

func (r *fakeClinicianRepo) GetActiveByRole(role models.Role) ([]models.Clinician, error) {
	return r.sorted(func(c models.Clinician) bool { return c.Active && c.Role == role }), nil
}

func (r *fakeClinicianRepo) sorted(keep func(models.Clinician) bool) []models.Clinician {
	var out []models.Clinician
	for id := uint(1); id < r.nextID; id++ {
		if c, ok := r.clinicians[id]; ok && keep(c) {
			out = append(out, c)
		}
	}
	return out
}

type fakeDutyRepo struct {
	duties map[uint]models.Duty
	nextID uint
}

func newFakeDutyRepo() *fakeDutyRepo {
	return &fakeDutyRepo{duties: make(map[uint]models.Duty), nextID: 1}
}

func (r *fakeDutyRepo) Create(d *models.Duty) error {
	if d.ID == 0 {
		d.ID = r.nextID
		r.nextID++
	} else if d.ID >= r.nextID {
		r.nextID = d.ID + 1
	}
	r.duties[d.ID] = *d
	return nil
}

func (r *fakeDutyRepo) GetByID(id uint) (*models.Duty, error) {
	d, ok := r.duties[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r *fakeDutyRepo) GetAll() ([]models.Duty, error) {
	var out []models.Duty
	for id := uint(1); id < r.nextID; id++ {
		if d, ok := r.duties[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeJobPlanRepo struct {
	cells []models.JobPlanWeek
}

func (r *fakeJobPlanRepo) Upsert(cell *models.JobPlanWeek) error {
	for i := range r.cells {
		c := &r.cells[i]
		if c.ClinicianID == cell.ClinicianID && c.WeekNo == cell.WeekNo && c.DayOfWeek == cell.DayOfWeek {
			*c = *cell
			return nil
		}
	}
	cell.ID = uint(len(r.cells) + 1)
	r.cells = append(r.cells, *cell)
	return nil
}

func (r *fakeJobPlanRepo) GetCell(clinicianID uint, weekNo, dayOfWeek int) (*models.JobPlanWeek, error) {
	for i := range r.cells {
		c := r.cells[i]
		if c.ClinicianID == clinicianID && c.WeekNo == weekNo && c.DayOfWeek == dayOfWeek {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeJobPlanRepo) FindForClinician(clinicianID uint) ([]models.JobPlanWeek, error) {
	var out []models.JobPlanWeek
	for _, c := range r.cells {
		if c.ClinicianID == clinicianID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeJobPlanRepo) FindSupporting(consultantID uint, weekNo, dayOfWeek int, session models.Session) ([]models.JobPlanWeek, error) {
	var out []models.JobPlanWeek
	for _, c := range r.cells {
		if c.WeekNo != weekNo || c.DayOfWeek != dayOfWeek {
			continue
		}
		supporting := c.SupportingFor(session)
		if supporting != nil && *supporting == consultantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeJobPlanRepo) FindAll() ([]models.JobPlanWeek, error) {
	return append([]models.JobPlanWeek(nil), r.cells...), nil
}

type fakeOnCallConfigRepo struct {
	configs map[models.Role]models.OnCallConfig
}

func newFakeOnCallConfigRepo() *fakeOnCallConfigRepo {
	return &fakeOnCallConfigRepo{configs: make(map[models.Role]models.OnCallConfig)}
}

func (r *fakeOnCallConfigRepo) Upsert(config *models.OnCallConfig) error {
	r.configs[config.Role] = *config
	return nil
}

func (r *fakeOnCallConfigRepo) GetByRole(role models.Role) (*models.OnCallConfig, error) {
	c, ok := r.configs[role]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

type fakeOnCallSlotRepo struct {
	slots  map[uint]models.OnCallSlot
	nextID uint
}

func newFakeOnCallSlotRepo() *fakeOnCallSlotRepo {
	return &fakeOnCallSlotRepo{slots: make(map[uint]models.OnCallSlot), nextID: 1}
}

func (r *fakeOnCallSlotRepo) Create(slot *models.OnCallSlot) error {
	if slot.ID == 0 {
		slot.ID = r.nextID
		r.nextID++
	} else if slot.ID >= r.nextID {
		r.nextID = slot.ID + 1
	}
	r.slots[slot.ID] = *slot
	return nil
}

func (r *fakeOnCallSlotRepo) GetByID(id uint) (*models.OnCallSlot, error) {
	s, ok := r.slots[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *fakeOnCallSlotRepo) GetActiveByRole(role models.Role) ([]models.OnCallSlot, error) {
	var out []models.OnCallSlot
	for id := uint(1); id < r.nextID; id++ {
		if s, ok := r.slots[id]; ok && s.Active && s.Role == role {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeOnCallSlotRepo) GetActiveByRoleAndPosition(role models.Role, position int) (*models.OnCallSlot, error) {
	for id := uint(1); id < r.nextID; id++ {
		if s, ok := r.slots[id]; ok && s.Active && s.Role == role && s.Position == position {
			return &s, nil
		}
	}
	return nil, nil
}

func (r *fakeOnCallSlotRepo) Deactivate(id uint) error {
	s, ok := r.slots[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Active = false
	r.slots[id] = s
	return nil
}

type fakeOnCallPatternRepo struct {
	patterns []models.OnCallPattern
}

func (r *fakeOnCallPatternRepo) Upsert(pattern *models.OnCallPattern) error {
	for i := range r.patterns {
		if r.patterns[i].DayOfCycle == pattern.DayOfCycle {
			r.patterns[i].SlotID = pattern.SlotID
			return nil
		}
	}
	pattern.ID = uint(len(r.patterns) + 1)
	r.patterns = append(r.patterns, *pattern)
	return nil
}

func (r *fakeOnCallPatternRepo) FindAll() ([]models.OnCallPattern, error) {
	return append([]models.OnCallPattern(nil), r.patterns...), nil
}

type fakeSlotAssignmentRepo struct {
	assignments map[uint]models.SlotAssignment
	nextID      uint
}

func newFakeSlotAssignmentRepo() *fakeSlotAssignmentRepo {
	return &fakeSlotAssignmentRepo{assignments: make(map[uint]models.SlotAssignment), nextID: 1}
}

func (r *fakeSlotAssignmentRepo) Create(a *models.SlotAssignment) error {
	if a.ID == 0 {
		a.ID = r.nextID
		r.nextID++
	}
	r.assignments[a.ID] = *a
	return nil
}

func (r *fakeSlotAssignmentRepo) Update(a *models.SlotAssignment) error {
	r.assignments[a.ID] = *a
	return nil
}

func (r *fakeSlotAssignmentRepo) GetByID(id uint) (*models.SlotAssignment, error) {
	a, ok := r.assignments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *fakeSlotAssignmentRepo) FindActiveAt(slotID uint, date time.Time) (*models.SlotAssignment, error) {
	for id := uint(1); id < r.nextID; id++ {
		a, ok := r.assignments[id]
		if ok && a.SlotID == slotID && a.ActiveAt(date) {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *fakeSlotAssignmentRepo) FindBySlot(slotID uint) ([]models.SlotAssignment, error) {
	var out []models.SlotAssignment
	for id := uint(1); id < r.nextID; id++ {
		if a, ok := r.assignments[id]; ok && a.SlotID == slotID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeSlotAssignmentRepo) FindOverlapping(slotID, clinicianID uint, from time.Time, to *time.Time, excludeID uint) ([]models.SlotAssignment, error) {
	var out []models.SlotAssignment
	for id := uint(1); id < r.nextID; id++ {
		a, ok := r.assignments[id]
		if !ok || a.ID == excludeID {
			continue
		}
		if a.SlotID != slotID && a.ClinicianID != clinicianID {
			continue
		}
		if rangesIntersect(a.EffectiveFrom, a.EffectiveTo, from, to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func rangesIntersect(f1 time.Time, t1 *time.Time, f2 time.Time, t2 *time.Time) bool {
	if t1 != nil && datemath.DateOnly(*t1).Before(datemath.DateOnly(f2)) {
		return false
	}
	if t2 != nil && datemath.DateOnly(*t2).Before(datemath.DateOnly(f1)) {
		return false
	}
	return true
}

func (r *fakeSlotAssignmentRepo) HasLiveOrFuture(slotID uint, asOf time.Time) (bool, error) {
	for _, a := range r.assignments {
		if a.SlotID != slotID {
			continue
		}
		if a.EffectiveTo == nil || !datemath.DateOnly(*a.EffectiveTo).Before(datemath.DateOnly(asOf)) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSlotAssignmentRepo) Delete(id uint) error {
	if _, ok := r.assignments[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.assignments, id)
	return nil
}

type fakeLeaveRepo struct {
	leaves map[uint]models.Leave
	nextID uint
}

func newFakeLeaveRepo() *fakeLeaveRepo {
	return &fakeLeaveRepo{leaves: make(map[uint]models.Leave), nextID: 1}
}

func (r *fakeLeaveRepo) Create(l *models.Leave) error {
	if l.ID == 0 {
		l.ID = r.nextID
		r.nextID++
	}
	r.leaves[l.ID] = *l
	return nil
}

func (r *fakeLeaveRepo) GetByID(id uint) (*models.Leave, error) {
	l, ok := r.leaves[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r *fakeLeaveRepo) FindInRange(from, to time.Time) ([]models.Leave, error) {
	return r.filter(func(l models.Leave) bool { return inRange(l.Date, from, to) }), nil
}

func (r *fakeLeaveRepo) FindForClinician(clinicianID uint, from, to time.Time) ([]models.Leave, error) {
	return r.filter(func(l models.Leave) bool {
		return l.ClinicianID == clinicianID && inRange(l.Date, from, to)
	}), nil
}

func (r *fakeLeaveRepo) filter(keep func(models.Leave) bool) []models.Leave {
	var out []models.Leave
	for id := uint(1); id < r.nextID; id++ {
		if l, ok := r.leaves[id]; ok && keep(l) {
			out = append(out, l)
		}
	}
	return out
}

func (r *fakeLeaveRepo) Delete(id uint) error {
	if _, ok := r.leaves[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.leaves, id)
	return nil
}

func inRange(d, from, to time.Time) bool {
	d = datemath.DateOnly(d)
	return !d.Before(datemath.DateOnly(from)) && !d.After(datemath.DateOnly(to))
}

type fakeRotaRepo struct {
	entries map[string]models.RotaEntry
	nextID  uint
}

func newFakeRotaRepo() *fakeRotaRepo {
	return &fakeRotaRepo{entries: make(map[string]models.RotaEntry), nextID: 1}
}

func rotaKey(date time.Time, clinicianID uint, session models.Session) string {
	return fmt.Sprintf("%s|%d|%s", datemath.Format(date), clinicianID, session)
}

func (r *fakeRotaRepo) Upsert(entry *models.RotaEntry) error {
	entry.Date = datemath.DateOnly(entry.Date)
	key := rotaKey(entry.Date, entry.ClinicianID, entry.Session)
	if existing, ok := r.entries[key]; ok {
		entry.ID = existing.ID
	} else {
		entry.ID = r.nextID
		r.nextID++
	}
	r.entries[key] = *entry
	return nil
}

func (r *fakeRotaRepo) GetByKey(date time.Time, clinicianID uint, session models.Session) (*models.RotaEntry, error) {
	e, ok := r.entries[rotaKey(date, clinicianID, session)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *fakeRotaRepo) FindInRange(from, to time.Time) ([]models.RotaEntry, error) {
	return r.filter(func(e models.RotaEntry) bool { return inRange(e.Date, from, to) }), nil
}

func (r *fakeRotaRepo) FindForClinician(clinicianID uint, from, to time.Time) ([]models.RotaEntry, error) {
	return r.filter(func(e models.RotaEntry) bool {
		return e.ClinicianID == clinicianID && inRange(e.Date, from, to)
	}), nil
}

func (r *fakeRotaRepo) FindBySupporting(date time.Time, session models.Session, supportingID uint) ([]models.RotaEntry, error) {
	return r.filter(func(e models.RotaEntry) bool {
		return datemath.SameDay(e.Date, date) && e.Session == session &&
			e.SupportingClinicianID != nil && *e.SupportingClinicianID == supportingID
	}), nil
}

func (r *fakeRotaRepo) filter(keep func(models.RotaEntry) bool) []models.RotaEntry {
	byID := make(map[uint]models.RotaEntry)
	var maxID uint
	for _, e := range r.entries {
		if keep(e) {
			byID[e.ID] = e
			if e.ID > maxID {
				maxID = e.ID
			}
		}
	}
	var out []models.RotaEntry
	for id := uint(1); id <= maxID; id++ {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (r *fakeRotaRepo) DeleteByKey(date time.Time, clinicianID uint, session models.Session) error {
	delete(r.entries, rotaKey(date, clinicianID, session))
	return nil
}

type fakeCoverageRequestRepo struct {
	requests map[uint]models.CoverageRequest
	nextID   uint
}

func newFakeCoverageRequestRepo() *fakeCoverageRequestRepo {
	return &fakeCoverageRequestRepo{requests: make(map[uint]models.CoverageRequest), nextID: 1}
}

func (r *fakeCoverageRequestRepo) Create(request *models.CoverageRequest) error {
	request.Date = datemath.DateOnly(request.Date)
	if request.ID == 0 {
		request.ID = r.nextID
		r.nextID++
	}
	r.requests[request.ID] = *request
	return nil
}

func (r *fakeCoverageRequestRepo) Update(request *models.CoverageRequest) error {
	r.requests[request.ID] = *request
	return nil
}

func (r *fakeCoverageRequestRepo) GetByID(id uint) (*models.CoverageRequest, error) {
	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (r *fakeCoverageRequestRepo) Exists(date time.Time, session models.Session, dutyID, absentID uint, ctype models.CoverageType) (bool, error) {
	for _, req := range r.requests {
		if datemath.SameDay(req.Date, date) && req.Session == session &&
			req.DutyID == dutyID && req.AbsentClinicianID == absentID && req.Type == ctype {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCoverageRequestRepo) FindInRange(from, to time.Time) ([]models.CoverageRequest, error) {
	return r.filter(func(req models.CoverageRequest) bool { return inRange(req.Date, from, to) }), nil
}

func (r *fakeCoverageRequestRepo) FindPendingInRange(from, to time.Time) ([]models.CoverageRequest, error) {
	return r.filter(func(req models.CoverageRequest) bool {
		return req.Status == models.CoverageStatusPending && inRange(req.Date, from, to)
	}), nil
}

func (r *fakeCoverageRequestRepo) FindAssignedInRange(from, to time.Time) ([]models.CoverageRequest, error) {
	return r.filter(func(req models.CoverageRequest) bool {
		return req.Status == models.CoverageStatusAssigned && inRange(req.Date, from, to)
	}), nil
}

func (r *fakeCoverageRequestRepo) FindAssignedTo(clinicianID uint, from, to time.Time) ([]models.CoverageRequest, error) {
	return r.filter(func(req models.CoverageRequest) bool {
		return req.Status == models.CoverageStatusAssigned &&
			req.AssignedClinicianID != nil && *req.AssignedClinicianID == clinicianID &&
			inRange(req.Date, from, to)
	}), nil
}

func (r *fakeCoverageRequestRepo) FindPendingForLeave(clinicianID uint, date time.Time, session models.Session) ([]models.CoverageRequest, error) {
	return r.filter(func(req models.CoverageRequest) bool {
		if req.Status != models.CoverageStatusPending || req.Reason != models.CoverageReasonLeave {
			return false
		}
		if req.AbsentClinicianID != clinicianID || !datemath.SameDay(req.Date, date) {
			return false
		}
		return session == models.SessionFull || req.Session == session
	}), nil
}

func (r *fakeCoverageRequestRepo) filter(keep func(models.CoverageRequest) bool) []models.CoverageRequest {
	var out []models.CoverageRequest
	for id := uint(1); id < r.nextID; id++ {
		if req, ok := r.requests[id]; ok && keep(req) {
			out = append(out, req)
		}
	}
	return out
}

func (r *fakeCoverageRequestRepo) Delete(id uint) error {
	if _, ok := r.requests[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.requests, id)
	return nil
}

type auditRecord struct {
	Action    string
	Entity    string
	EntityRef string
}

type fakeAuditRepo struct {
	records []auditRecord
}

func (r *fakeAuditRepo) Record(action, entity, entityRef string, before, after any) {
	r.records = append(r.records, auditRecord{Action: action, Entity: entity, EntityRef: entityRef})
}
