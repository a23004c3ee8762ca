package i18n

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlebunetel/toolbox-api/internal/anniversary"
)

var _ anniversary.Localizer = (*Localizer)(nil)

func newTestLocalizer(t *testing.T, lang string) *Localizer {
	t.Helper()
	bundle, err := NewBundle()
	require.NoError(t, err)
	return NewLocalizer(bundle, lang)
}

func TestLocalizerEnglish(t *testing.T) {
	loc := newTestLocalizer(t, "en")

	assert.Equal(t, "Birth of Ada", loc.T("BirthOf", map[string]interface{}{"Name": "Ada"}))
	assert.Equal(t, "1 year", loc.N("Years", 1))
	assert.Equal(t, "33 years", loc.N("Years", 33))
	assert.Equal(t, "one year ago.", loc.N("YearsAgo", 1))
	assert.Equal(t, "5 years ago.", loc.N("YearsAgo", 5))
	assert.Equal(t, "New event", loc.T("NewEvent", nil))
	assert.Equal(t, "en", loc.Language())
}

func TestLocalizerFrench(t *testing.T) {
	loc := newTestLocalizer(t, "fr")

	assert.Equal(t, "Naissance de Ada", loc.T("BirthOf", map[string]interface{}{"Name": "Ada"}))
	assert.Equal(t, "1 an", loc.N("Years", 1))
	assert.Equal(t, "33 ans", loc.N("Years", 33))
	assert.Equal(t, "il y a un an.", loc.N("YearsAgo", 1))
}

func TestLocalizerFallsBackToEnglish(t *testing.T) {
	loc := newTestLocalizer(t, "de")

	assert.Equal(t, "Birth of Ada", loc.T("BirthOf", map[string]interface{}{"Name": "Ada"}))
}

func TestLocalizerUnknownMessageReturnsID(t *testing.T) {
	loc := newTestLocalizer(t, "en")

	assert.Equal(t, "NoSuchMessage", loc.T("NoSuchMessage", nil))
}

func TestFormatDate(t *testing.T) {
	day := time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "June 15, 1990", newTestLocalizer(t, "en").FormatDate(day))
	assert.Equal(t, "15 juin 1990", newTestLocalizer(t, "fr").FormatDate(day))
}

func TestReminderSubjectLine(t *testing.T) {
	loc := newTestLocalizer(t, "en")

	assert.Equal(t, "Birthdays in the next 7 days", loc.N("BirthdaysNextDays", 7))
	assert.Equal(t, "Birthdays in the next day", loc.N("BirthdaysNextDays", 1))
}
