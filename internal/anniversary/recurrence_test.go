package anniversary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRecurrencesEmptyWhenEndNotAfterOrigin(t *testing.T) {
	origin := date(1990, time.June, 15)

	assert.Empty(t, Recurrences(origin, origin))
	assert.Empty(t, Recurrences(origin, date(1989, time.January, 1)))
	// Same year, later date: the first recurrence is a year away.
	assert.Empty(t, Recurrences(origin, date(1990, time.December, 31)))
}

func TestRecurrencesPreservesMonthAndDay(t *testing.T) {
	origin := date(1990, time.June, 15)

	got := Recurrences(origin, date(1993, time.December, 31))

	require.Len(t, got, 3)
	for i, d := range got {
		assert.Equal(t, 1991+i, d.Year())
		assert.Equal(t, time.June, d.Month())
		assert.Equal(t, 15, d.Day())
	}
}

func TestRecurrencesExcludesDatesPastEnd(t *testing.T) {
	origin := date(1990, time.June, 15)

	// End falls in 1993 but before June 15: the 1993 occurrence is out.
	got := Recurrences(origin, date(1993, time.March, 1))

	require.Len(t, got, 2)
	assert.Equal(t, date(1992, time.June, 15), got[1])
}

func TestRecurrencesLeapDayFallsBackToMarchFirst(t *testing.T) {
	origin := date(2020, time.February, 29)

	got := Recurrences(origin, date(2024, time.December, 31))

	require.Len(t, got, 4)
	assert.Equal(t, date(2021, time.March, 1), got[0])
	assert.Equal(t, date(2022, time.March, 1), got[1])
	assert.Equal(t, date(2023, time.March, 1), got[2])
	// 2024 is a leap year again.
	assert.Equal(t, date(2024, time.February, 29), got[3])
}

func TestRecurrencesLeapDayRespectsEndBeforeMarchFirst(t *testing.T) {
	origin := date(2020, time.February, 29)

	// In 2021 the anniversary lands on March 1, past this end date.
	got := Recurrences(origin, date(2021, time.February, 28))

	assert.Empty(t, got)
}
