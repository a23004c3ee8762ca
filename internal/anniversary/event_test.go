package anniversary

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainLocalizer renders English strings without pulling in the i18n bundle.
type plainLocalizer struct{}

func (plainLocalizer) T(id string, data map[string]interface{}) string {
	switch id {
	case "BirthOf":
		return fmt.Sprintf("Birth of %s", data["Name"])
	case "DeathOf":
		return fmt.Sprintf("Death of %s", data["Name"])
	case "WasBornToday":
		return fmt.Sprintf("%s was born today.", data["Name"])
	case "DiedToday":
		return fmt.Sprintf("%s died today.", data["Name"])
	case "WasBornOn":
		return fmt.Sprintf("%s was born on %s,", data["Name"], data["Date"])
	case "DiedOn":
		return fmt.Sprintf("%s died on %s,", data["Name"], data["Date"])
	}
	return id
}

func (plainLocalizer) N(id string, count int) string {
	switch id {
	case "Years":
		if count == 1 {
			return "1 year"
		}
		return fmt.Sprintf("%d years", count)
	case "YearsAgo":
		if count == 1 {
			return "one year ago."
		}
		return fmt.Sprintf("%d years ago.", count)
	}
	return id
}

func (plainLocalizer) FormatDate(t time.Time) string { return t.Format("January 2, 2006") }

func (plainLocalizer) Language() string { return "en" }

func timePtr(t time.Time) *time.Time { return &t }

func TestBirthEventsTexts(t *testing.T) {
	s := Subject{
		ID:          "11111111-1111-1111-1111-111111111111",
		ShortName:   "Ada",
		FullName:    "Ada Lovelace",
		DateOfBirth: timePtr(date(1990, time.June, 15)),
	}

	got := BirthEvents(s, date(1992, time.December, 31), plainLocalizer{})

	require.Len(t, got, 3)

	assert.Equal(t, "🎉 Birth of Ada", got[0].Summary)
	assert.Equal(t, "Ada Lovelace was born today.", got[0].Description)
	assert.Equal(t, date(1990, time.June, 15), got[0].Date)

	assert.Equal(t, "🎂 Ada (1 year)", got[1].Summary)
	assert.Equal(t, "Ada Lovelace was born on June 15, 1990, one year ago.", got[1].Description)

	assert.Equal(t, "🎂 Ada (2 years)", got[2].Summary)
	assert.Equal(t, "Ada Lovelace was born on June 15, 1990, 2 years ago.", got[2].Description)
}

func TestBirthEventsStopAtDeath(t *testing.T) {
	s := Subject{
		ID:          "p1",
		ShortName:   "Ada",
		FullName:    "Ada Lovelace",
		DateOfBirth: timePtr(date(1990, time.June, 15)),
		DateOfDeath: timePtr(date(1994, time.March, 10)),
	}

	got := BirthEvents(s, date(2030, time.December, 31), plainLocalizer{})

	// Birth plus the 1991-1993 birthdays; June 1994 is past the death date.
	require.Len(t, got, 4)
	assert.Equal(t, date(1993, time.June, 15), got[3].Date)
}

func TestBirthEventsEmptyWithoutDateOfBirth(t *testing.T) {
	s := Subject{ID: "p1", ShortName: "Ada", FullName: "Ada Lovelace"}

	assert.Empty(t, BirthEvents(s, date(2030, time.December, 31), plainLocalizer{}))
}

func TestDeathEventsTexts(t *testing.T) {
	s := Subject{
		ID:          "p1",
		ShortName:   "Ada",
		FullName:    "Ada Lovelace",
		DateOfBirth: timePtr(date(1910, time.January, 2)),
		DateOfDeath: timePtr(date(1994, time.March, 10)),
	}

	got := DeathEvents(s, date(1996, time.December, 31), plainLocalizer{})

	require.Len(t, got, 3)
	assert.Equal(t, "🪦 Death of Ada", got[0].Summary)
	assert.Equal(t, "Ada Lovelace died today.", got[0].Description)
	assert.Equal(t, "🪦 Ada (2 years)", got[2].Summary)
	assert.Equal(t, "Ada Lovelace died on March 10, 1994, 2 years ago.", got[2].Description)
}

func TestDeathEventsEmptyForLiving(t *testing.T) {
	s := Subject{
		ID:          "p1",
		ShortName:   "Ada",
		FullName:    "Ada Lovelace",
		DateOfBirth: timePtr(date(1990, time.June, 15)),
	}

	assert.Empty(t, DeathEvents(s, date(2030, time.December, 31), plainLocalizer{}))
}

func TestEventUIDsAreStable(t *testing.T) {
	s := Subject{
		ID:          "3f2a",
		ShortName:   "Ada",
		FullName:    "Ada Lovelace",
		DateOfBirth: timePtr(date(1990, time.June, 15)),
	}

	first := BirthEvents(s, date(1995, time.December, 31), plainLocalizer{})
	second := BirthEvents(s, date(1998, time.December, 31), plainLocalizer{})

	require.True(t, len(second) > len(first))
	for i := range first {
		assert.Equal(t, first[i].UID(), second[i].UID())
	}
	assert.Equal(t, "3f2a_birthday_0", first[0].UID())
	assert.Equal(t, "3f2a_birthday_2", first[2].UID())

	dead := Subject{
		ID:          "3f2a",
		ShortName:   "Ada",
		FullName:    "Ada Lovelace",
		DateOfDeath: timePtr(date(1994, time.March, 10)),
	}
	deaths := DeathEvents(dead, date(1995, time.December, 31), plainLocalizer{})
	require.NotEmpty(t, deaths)
	assert.Equal(t, "3f2a_death_0", deaths[0].UID())
}
