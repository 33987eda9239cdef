package service

import (
	"fmt"
	"time"

	"rota-engine/internal/apperr"
	"rota-engine/internal/models"
	"rota-engine/pkg/datemath"

	"github.com/sirupsen/logrus"
)

// SPADutyName is the fixed administrative duty a registrar works the
// morning after a weekday on-call.
const SPADutyName = "SPA"

// restWindowPadding extends the requested window on both sides so that
// on-call stints just outside it still produce their rest days inside it.
const restWindowPadding = 3

// RestDay is a derived recovery entry for one registrar half-day. It is
// never persisted by the deriver itself; the composer reads it directly and
// the materializer turns it into a rota row.
type RestDay struct {
	Date        time.Time
	ClinicianID uint
	Session     models.Session
	DutyName    string
	IsOff       bool
}

// RestDayService derives mandatory registrar rest days from the on-call
// rotation.
type RestDayService struct {
	rotation *RotationService
	logger   *logrus.Logger
}

func NewRestDayService(rotation *RotationService) *RestDayService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &RestDayService{rotation: rotation, logger: logger}
}

// DeriveRestDays computes rest entries for every registrar on-call stint
// whose rest falls inside [from, to]:
//
//   - Saturday on-call: the preceding Friday and the following Monday and
//     Tuesday are full days off.
//   - Monday-Thursday on-call: the next day is SPA in the morning, off in
//     the afternoon.
//   - Friday and Sunday on-call earn nothing; the weekend itself is rest.
func (s *RestDayService) DeriveRestDays(from, to time.Time) ([]RestDay, error) {
	from = datemath.DateOnly(from)
	to = datemath.DateOnly(to)
	if from.After(to) {
		return nil, apperr.Validationf("invalid range %s..%s", datemath.Format(from), datemath.Format(to))
	}

	seen := make(map[string]bool)
	var out []RestDay

	add := func(date time.Time, clinicianID uint, session models.Session, dutyName string, off bool) {
		if date.Before(from) || date.After(to) {
			return
		}
		key := fmt.Sprintf("%s|%d|%s", datemath.Format(date), clinicianID, session)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, RestDay{
			Date:        date,
			ClinicianID: clinicianID,
			Session:     session,
			DutyName:    dutyName,
			IsOff:       off,
		})
	}

	extFrom := datemath.AddDays(from, -restWindowPadding)
	extTo := datemath.AddDays(to, restWindowPadding)

	for _, day := range datemath.Range(extFrom, extTo) {
		clinician, err := s.rotation.WhoIsOnCall(day, models.RoleRegistrar)
		if err != nil {
			return nil, err
		}
		if clinician == nil {
			continue
		}

		switch datemath.ISOWeekday(day) {
		case 6: // Saturday stint: Friday before, Monday and Tuesday after
			for _, offset := range []int{-1, 2, 3} {
				rest := datemath.AddDays(day, offset)
				add(rest, clinician.ID, models.SessionAM, "", true)
				add(rest, clinician.ID, models.SessionPM, "", true)
			}
		case 1, 2, 3, 4: // weekday stint: next morning SPA, afternoon off
			next := datemath.AddDays(day, 1)
			add(next, clinician.ID, models.SessionAM, SPADutyName, false)
			add(next, clinician.ID, models.SessionPM, "", true)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"from":  datemath.Format(from),
		"to":    datemath.Format(to),
		"count": len(out),
	}).Debug("Derived rest days")

	return out, nil
}

// RestDayIndex keys derived rest days for constant-time lookup.
type RestDayIndex map[string]RestDay

func restKey(date time.Time, clinicianID uint, session models.Session) string {
	return fmt.Sprintf("%s|%d|%s", datemath.Format(date), clinicianID, session)
}

// IndexRestDays builds the per-call lookup map the composer and assigner use.
func IndexRestDays(days []RestDay) RestDayIndex {
	idx := make(RestDayIndex, len(days))
	for _, d := range days {
		idx[restKey(d.Date, d.ClinicianID, d.Session)] = d
	}
	return idx
}

// Lookup returns the rest day for the key, if derived.
func (idx RestDayIndex) Lookup(date time.Time, clinicianID uint, session models.Session) (RestDay, bool) {
	d, ok := idx[restKey(date, clinicianID, session)]
	return d, ok
}
