package models

type Session string

const (
	SessionAM   Session = "AM"
	SessionPM   Session = "PM"
	SessionFull Session = "FULL"
)

func (s Session) Valid() bool {
	return s == SessionAM || s == SessionPM || s == SessionFull
}

// Covers reports whether a record stored with session s applies to the
// half-day session other. A FULL record covers both halves.
func (s Session) Covers(other Session) bool {
	if s == SessionFull || other == SessionFull {
		return true
	}
	return s == other
}

// HalfDays returns the half-day sessions a record with session s expands to.
func (s Session) HalfDays() []Session {
	if s == SessionFull {
		return []Session{SessionAM, SessionPM}
	}
	return []Session{s}
}

// HalfDaySessions is the fixed per-day session order used when iterating a
// rota: AM then PM.
var HalfDaySessions = []Session{SessionAM, SessionPM}
