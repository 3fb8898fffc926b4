package model

import (
	"time"

	"consult/shared/constant"
	"consult/shared/failure"
)

var (
	ErrInvalidDate         = failure.BadRequestFromString("start and end must be valid RFC3339 timestamps")
	ErrWrongDuration       = failure.BadRequestFromString("booking must be exactly one hour")
	ErrCrossesMidnight     = failure.BadRequestFromString("booking must start and end on the same day")
	ErrOutsideServiceHours = failure.BadRequestFromString("booking must be within service hours")
	ErrSlotInPast          = failure.BadRequestFromString("booking slot is in the past")
)

// Interval is a half-open [StartAt, EndAt) time range.
type Interval struct {
	StartAt time.Time `db:"start_at"`
	EndAt   time.Time `db:"end_at"`
}

// NewInterval parses the raw timestamps into the service calendar's location.
func NewInterval(startRaw, endRaw string, loc *time.Location) (Interval, error) {
	start, err := time.Parse(constant.DateFormat, startRaw)
	if err != nil {
		return Interval{}, ErrInvalidDate
	}

	end, err := time.Parse(constant.DateFormat, endRaw)
	if err != nil {
		return Interval{}, ErrInvalidDate
	}

	return Interval{StartAt: start.In(loc), EndAt: end.In(loc)}, nil
}

// Overlaps reports whether two half-open intervals intersect.
func (i Interval) Overlaps(other Interval) bool {
	return i.StartAt.Before(other.EndAt) && other.StartAt.Before(i.EndAt)
}

// ValidateWindow checks the interval against the service calendar. Rules are
// applied in order and the first violation wins.
func (i Interval) ValidateWindow(now time.Time, openHour, closeHour int) error {
	if i.EndAt.Sub(i.StartAt) != time.Hour {
		return ErrWrongDuration
	}

	sy, sm, sd := i.StartAt.Date()
	ey, em, ed := i.EndAt.Date()

	if sy != ey || sm != em || sd != ed {
		return ErrCrossesMidnight
	}

	if i.StartAt.Hour() < openHour || i.EndAt.Hour() > closeHour {
		return ErrOutsideServiceHours
	}

	if !i.EndAt.After(now) {
		return ErrSlotInPast
	}

	return nil
}
