package anniversary

import (
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes the two anniversary families. The values appear inside
// event UIDs, so they are part of the published feed contract.
type Kind string

const (
	KindBirth Kind = "birthday"
	KindDeath Kind = "death"
)

// Subject is the minimal view of a person the engine needs.
type Subject struct {
	ID          string
	ShortName   string
	FullName    string
	DateOfBirth *time.Time
	DateOfDeath *time.Time
}

// Localizer renders the human readable strings embedded in events. The i18n
// package provides the production implementation.
type Localizer interface {
	// T renders a simple message with template data.
	T(messageID string, data map[string]interface{}) string
	// N renders a pluralized message; count drives the plural form and is
	// also available as {{.Count}}.
	N(messageID string, count int) string
	// FormatDate renders a date the way the active locale writes dates.
	FormatDate(t time.Time) string
	// Language returns the active BCP 47 tag.
	Language() string
}

// Event is one calendar entry, ready for serialization.
type Event struct {
	SubjectID   string
	Kind        Kind
	Index       int
	Date        time.Time
	Summary     string
	Description string
}

// UID returns the stable identifier of the event. Calendar clients key
// updates on this value, so it must never depend on generation time.
func (e Event) UID() string {
	return strings.Join([]string{e.SubjectID, string(e.Kind), fmt.Sprintf("%d", e.Index)}, "_")
}

// BirthDates returns the subject's birthday occurrences up to end: the date
// of birth itself at index 0, then its yearly recurrences. Recurrences stop
// at the date of death when there is one. Nil when the date of birth is
// unknown.
func (s Subject) BirthDates(end time.Time) []time.Time {
	if s.DateOfBirth == nil {
		return nil
	}
	horizon := end
	if s.DateOfDeath != nil {
		horizon = *s.DateOfDeath
	}
	return append([]time.Time{*s.DateOfBirth}, Recurrences(*s.DateOfBirth, horizon)...)
}

// DeathDates returns the subject's death anniversary occurrences up to end,
// the date of death itself first. Nil when the subject is alive.
func (s Subject) DeathDates(end time.Time) []time.Time {
	if s.DateOfDeath == nil {
		return nil
	}
	return append([]time.Time{*s.DateOfDeath}, Recurrences(*s.DateOfDeath, end)...)
}

// BirthEvents builds the subject's birthday events up to end.
func BirthEvents(s Subject, end time.Time, loc Localizer) []Event {
	dates := s.BirthDates(end)
	events := make([]Event, 0, len(dates))
	for i, date := range dates {
		ev := Event{
			SubjectID: s.ID,
			Kind:      KindBirth,
			Index:     i,
			Date:      date,
		}
		if i == 0 {
			ev.Summary = "🎉 " + loc.T("BirthOf", map[string]interface{}{"Name": s.ShortName})
			ev.Description = loc.T("WasBornToday", map[string]interface{}{"Name": s.FullName})
		} else {
			ev.Summary = fmt.Sprintf("🎂 %s (%s)", s.ShortName, loc.N("Years", i))
			ev.Description = fmt.Sprintf("%s %s",
				loc.T("WasBornOn", map[string]interface{}{
					"Name": s.FullName,
					"Date": loc.FormatDate(*s.DateOfBirth),
				}),
				loc.N("YearsAgo", i))
		}
		events = append(events, ev)
	}
	return events
}

// DeathEvents builds the subject's death anniversary events up to end.
func DeathEvents(s Subject, end time.Time, loc Localizer) []Event {
	dates := s.DeathDates(end)
	events := make([]Event, 0, len(dates))
	for i, date := range dates {
		ev := Event{
			SubjectID: s.ID,
			Kind:      KindDeath,
			Index:     i,
			Date:      date,
		}
		if i == 0 {
			ev.Summary = "🪦 " + loc.T("DeathOf", map[string]interface{}{"Name": s.ShortName})
			ev.Description = loc.T("DiedToday", map[string]interface{}{"Name": s.FullName})
		} else {
			ev.Summary = fmt.Sprintf("🪦 %s (%s)", s.ShortName, loc.N("Years", i))
			ev.Description = fmt.Sprintf("%s %s",
				loc.T("DiedOn", map[string]interface{}{
					"Name": s.FullName,
					"Date": loc.FormatDate(*s.DateOfDeath),
				}),
				loc.N("YearsAgo", i))
		}
		events = append(events, ev)
	}
	return events
}
