package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveDueYear(t *testing.T) {
	tests := []struct {
		name    string
		dateDue string
		now     time.Time
		want    time.Time
	}{
		{
			name:    "past year, month already gone this year",
			dateDue: "2 April 1958",
			now:     date(2024, time.November, 27),
			want:    date(2025, time.April, 2),
		},
		{
			name:    "past year, month still ahead",
			dateDue: "2 April 1958",
			now:     date(2025, time.March, 1),
			want:    date(2025, time.April, 2),
		},
		{
			name:    "due exactly today is not advanced",
			dateDue: "27 November 1960",
			now:     date(2024, time.November, 27),
			want:    date(2024, time.November, 27),
		},
		{
			name:    "earlier day in the current month has passed",
			dateDue: "5 November 1990",
			now:     date(2024, time.November, 27),
			want:    date(2025, time.November, 5),
		},
		{
			name:    "current year, future month left alone",
			dateDue: "25 December 2024",
			now:     date(2024, time.November, 27),
			want:    date(2024, time.December, 25),
		},
		{
			name:    "later day in the current month left alone",
			dateDue: "30 November 1990",
			now:     date(2024, time.November, 27),
			want:    date(2024, time.November, 30),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveDueYear(tt.dateDue, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDueYearMalformed(t *testing.T) {
	_, err := ResolveDueYear("April 2nd 1958", date(2024, time.November, 27))
	require.Error(t, err)

	_, err = ResolveDueYear("", date(2024, time.November, 27))
	require.Error(t, err)
}

func TestDueInstant(t *testing.T) {
	now := date(2024, time.November, 27)

	got, err := DueInstant("2 April 1958", "14:30", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.April, 2, 14, 30, 0, 0, time.UTC), got)
}

func TestDueInstantBadTime(t *testing.T) {
	now := date(2024, time.November, 27)

	_, err := DueInstant("2 April 1958", "2:30 pm", now)
	require.Error(t, err)

	_, err = DueInstant("not a date", "14:30", now)
	require.Error(t, err)
}
