package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"consult/internal/domains/booking/model"
)

func TestNewInterval(t *testing.T) {
	tests := []struct {
		name     string
		startRaw string
		endRaw   string
		wantErr  error
	}{
		{
			name:     "valid timestamps",
			startRaw: "2026-09-01T10:00:00Z",
			endRaw:   "2026-09-01T11:00:00Z",
		},
		{
			name:     "garbage start",
			startRaw: "not-a-date",
			endRaw:   "2026-09-01T11:00:00Z",
			wantErr:  model.ErrInvalidDate,
		},
		{
			name:     "garbage end",
			startRaw: "2026-09-01T10:00:00Z",
			endRaw:   "11 o'clock",
			wantErr:  model.ErrInvalidDate,
		},
		{
			name:     "empty inputs",
			startRaw: "",
			endRaw:   "",
			wantErr:  model.ErrInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interval, err := model.NewInterval(tt.startRaw, tt.endRaw, time.UTC)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			assert.NoError(t, err)
			assert.Equal(t, time.Hour, interval.EndAt.Sub(interval.StartAt))
		})
	}
}

func TestInterval_ValidateWindow(t *testing.T) {
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	at := func(hour, minute int) time.Time {
		return time.Date(2026, 9, 1, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		wantErr error
	}{
		{
			name:  "first slot of the day",
			start: at(9, 0),
			end:   at(10, 0),
		},
		{
			name:  "last slot of the day",
			start: at(20, 0),
			end:   at(21, 0),
		},
		{
			name:    "ninety minutes",
			start:   at(10, 0),
			end:     at(11, 30),
			wantErr: model.ErrWrongDuration,
		},
		{
			name:    "thirty minutes",
			start:   at(10, 0),
			end:     at(10, 30),
			wantErr: model.ErrWrongDuration,
		},
		{
			name:    "end before start",
			start:   at(11, 0),
			end:     at(10, 0),
			wantErr: model.ErrWrongDuration,
		},
		{
			name:    "crosses midnight",
			start:   time.Date(2026, 9, 1, 23, 30, 0, 0, time.UTC),
			end:     time.Date(2026, 9, 2, 0, 30, 0, 0, time.UTC),
			wantErr: model.ErrCrossesMidnight,
		},
		{
			name:    "before opening",
			start:   at(8, 0),
			end:     at(9, 0),
			wantErr: model.ErrOutsideServiceHours,
		},
		{
			name:    "after closing",
			start:   at(21, 30),
			end:     at(22, 30),
			wantErr: model.ErrOutsideServiceHours,
		},
		{
			name:    "slot already over",
			start:   time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
			end:     time.Date(2026, 8, 31, 11, 0, 0, 0, time.UTC),
			wantErr: model.ErrSlotInPast,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interval := model.Interval{StartAt: tt.start, EndAt: tt.end}

			err := interval.ValidateWindow(now, 9, 21)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInterval_Overlaps(t *testing.T) {
	base := model.Interval{
		StartAt: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC),
	}

	shift := func(d time.Duration) model.Interval {
		return model.Interval{StartAt: base.StartAt.Add(d), EndAt: base.EndAt.Add(d)}
	}

	tests := []struct {
		name  string
		other model.Interval
		want  bool
	}{
		{name: "identical", other: base, want: true},
		{name: "partial overlap before", other: shift(-30 * time.Minute), want: true},
		{name: "partial overlap after", other: shift(30 * time.Minute), want: true},
		{name: "back to back earlier", other: shift(-time.Hour), want: false},
		{name: "back to back later", other: shift(time.Hour), want: false},
		{name: "fully disjoint", other: shift(3 * time.Hour), want: false},
		{
			name: "contained",
			other: model.Interval{
				StartAt: base.StartAt.Add(15 * time.Minute),
				EndAt:   base.EndAt.Add(-15 * time.Minute),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, model.CanTransition(model.StatusPending, model.StatusSuccess))
	assert.True(t, model.CanTransition(model.StatusPending, model.StatusFailed))
	assert.True(t, model.CanTransition(model.StatusPending, model.StatusCancelled))

	for _, terminal := range []string{model.StatusSuccess, model.StatusFailed, model.StatusCancelled} {
		for _, to := range model.Statuses {
			assert.False(t, model.CanTransition(terminal, to), "%s -> %s", terminal, to)
		}
	}

	assert.False(t, model.CanTransition("unknown", model.StatusSuccess))
}
