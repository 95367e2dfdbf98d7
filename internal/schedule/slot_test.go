package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInterval(t *testing.T) {
	iv, err := ToInterval(date(2025, 3, 10), TimeOfDay{Hour: 15}, 30, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, datetime(2025, 3, 10, 15, 0), iv.Start)
	assert.Equal(t, datetime(2025, 3, 10, 15, 30), iv.End)

	_, err = ToInterval(date(2025, 3, 10), TimeOfDay{Hour: 15}, 0, time.UTC)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = ToInterval(date(2025, 3, 10), TimeOfDay{Hour: 24}, 30, time.UTC)
	assert.Error(t, err)
}

func TestToInterval_BusinessZone(t *testing.T) {
	loc := time.FixedZone("EAT", 3*60*60)
	iv, err := ToInterval(date(2025, 3, 10), TimeOfDay{Hour: 9, Minute: 45}, 60, loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 45, 0, 0, loc), iv.Start)
	assert.True(t, iv.Start.Equal(datetime(2025, 3, 10, 6, 45)))
}

func TestInterval_Overlaps(t *testing.T) {
	existing := Interval{Start: datetime(2025, 3, 10, 15, 0), End: datetime(2025, 3, 10, 16, 0)}

	tests := []struct {
		name string
		iv   Interval
		want bool
	}{
		{"before", Interval{datetime(2025, 3, 10, 13, 0), datetime(2025, 3, 10, 14, 0)}, false},
		{"back to back before", Interval{datetime(2025, 3, 10, 14, 30), datetime(2025, 3, 10, 15, 0)}, false},
		{"back to back after", Interval{datetime(2025, 3, 10, 16, 0), datetime(2025, 3, 10, 16, 30)}, false},
		{"starts during", Interval{datetime(2025, 3, 10, 15, 45), datetime(2025, 3, 10, 16, 15)}, true},
		{"ends during", Interval{datetime(2025, 3, 10, 14, 45), datetime(2025, 3, 10, 15, 15)}, true},
		{"contained", Interval{datetime(2025, 3, 10, 15, 15), datetime(2025, 3, 10, 15, 30)}, true},
		{"covers", Interval{datetime(2025, 3, 10, 14, 0), datetime(2025, 3, 10, 17, 0)}, true},
		{"identical", existing, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.iv.Overlaps(existing))
			assert.Equal(t, tt.want, existing.Overlaps(tt.iv))
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:05:00")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 5}, tod)
	assert.Equal(t, "09:05", tod.String())

	_, err = ParseTimeOfDay("9")
	assert.Error(t, err)
	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	day := DayBounds(date(2025, 3, 10), loc)
	assert.True(t, day.Start.Equal(datetime(2025, 3, 10, 5, 0)))
	assert.Equal(t, 24*time.Hour, day.End.Sub(day.Start))
}
