package models

import "github.com/gosimple/slug"

// DefaultYearsAhead is how many years of recurrences a new calendar exposes.
const DefaultYearsAhead = 3

// Calendar generates an anniversary feed for the people of its families.
type Calendar struct {
	ID                     string `db:"id" json:"id"`
	Icon                   string `db:"icon" json:"icon"`
	Title                  string `db:"title" json:"title"`
	HideDeathAnniversaries bool   `db:"hide_death_anniversaries" json:"hide_death_anniversaries"`
	YearsAhead             int    `db:"years_ahead" json:"years_ahead"`

	Audited

	// FamilyIDs is loaded from the join table.
	FamilyIDs []string `db:"-" json:"family_ids,omitempty"`
}

// DisplayString combines the icon and the title.
func (c Calendar) DisplayString() string {
	return joinNonEmpty(c.Icon, c.Title)
}

// FeedFilename returns the URL- and filesystem-safe download name for the
// iCalendar document.
func (c Calendar) FeedFilename() string {
	return slug.Make(c.Title) + ".ics"
}

// CalendarFilter captures filtering criteria for listing calendars.
type CalendarFilter struct {
	CreatedBy string
	Search    string
	Page      int
	PageSize  int
}
