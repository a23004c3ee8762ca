package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/jlebunetel/toolbox-api/internal/anniversary"
)

// Sex enumerates the declared sex of a person.
type Sex int16

const (
	SexUnknown Sex = 0
	SexMale    Sex = 1
	SexFemale  Sex = 2
)

// Species enumerates the species of a family member. Pets belong to the
// family too.
type Species int16

const (
	SpeciesUnknown Species = 0
	SpeciesHuman   Species = 1
	SpeciesCat     Species = 2
	SpeciesDog     Species = 3
)

// Person represents someone whose anniversaries are tracked.
type Person struct {
	ID            string         `db:"id" json:"id"`
	Nickname      string         `db:"nickname" json:"nickname"`
	FirstName     string         `db:"first_name" json:"first_name"`
	MiddleNames   pq.StringArray `db:"middle_names" json:"middle_names"`
	BirthName     string         `db:"birth_name" json:"birth_name"`
	MarriedName   string         `db:"married_name" json:"married_name"`
	PreferredName string         `db:"preferred_name" json:"preferred_name"`
	DateOfBirth   *time.Time     `db:"date_of_birth" json:"date_of_birth,omitempty"`
	DateOfDeath   *time.Time     `db:"date_of_death" json:"date_of_death,omitempty"`
	Sex           Sex            `db:"sex" json:"sex"`
	Species       Species        `db:"species" json:"species"`

	Audited

	// FamilyIDs is loaded from the join table, not a column.
	FamilyIDs []string `db:"-" json:"family_ids,omitempty"`
}

// LastName picks the preferred name first, then the married name, then the
// birth name.
func (p Person) LastName() string {
	if p.PreferredName != "" {
		return p.PreferredName
	}
	if p.MarriedName != "" {
		return p.MarriedName
	}
	return p.BirthName
}

// FullName combines the first and last names.
func (p Person) FullName() string {
	return joinNonEmpty(p.FirstName, p.LastName())
}

// ShortName returns the nickname when present, the first name otherwise.
func (p Person) ShortName() string {
	if p.Nickname != "" {
		return p.Nickname
	}
	return p.FirstName
}

// CurrentAge returns the age in completed years at the given date, nil when
// the date of birth is unknown. A deceased person's age is frozen at death.
func (p Person) CurrentAge(today time.Time) *int {
	if p.DateOfBirth == nil {
		return nil
	}
	end := today
	if p.DateOfDeath != nil {
		end = *p.DateOfDeath
	}
	age := len(anniversary.Recurrences(*p.DateOfBirth, end))
	return &age
}

// Emoji returns an iconic representation of the person.
func (p Person) Emoji(today time.Time) string {
	switch p.Species {
	case SpeciesUnknown:
		return "🦄"
	case SpeciesCat:
		return "🐱"
	case SpeciesDog:
		return "🐶"
	}

	age := p.CurrentAge(today)
	if age == nil {
		return "🧒"
	}

	switch {
	case *age < 3:
		return "👶"
	case *age < 18:
		return sexEmoji(p.Sex, "👦", "👧", "🧒")
	case *age < 60:
		return sexEmoji(p.Sex, "👨", "👩", "🧑")
	default:
		return sexEmoji(p.Sex, "👴", "👵", "🧓")
	}
}

// DisplayString returns the emoji, the full name and a grave marker for
// deceased people.
func (p Person) DisplayString(today time.Time) string {
	parts := []string{p.Emoji(today), p.FullName()}
	if p.DateOfDeath != nil {
		parts = append(parts, "🪦")
	}
	return joinNonEmpty(parts...)
}

// AnniversarySubject adapts the person for the anniversary engine.
func (p Person) AnniversarySubject() anniversary.Subject {
	return anniversary.Subject{
		ID:          p.ID,
		ShortName:   p.ShortName(),
		FullName:    p.FullName(),
		DateOfBirth: p.DateOfBirth,
		DateOfDeath: p.DateOfDeath,
	}
}

func sexEmoji(sex Sex, male, female, neutral string) string {
	switch sex {
	case SexMale:
		return male
	case SexFemale:
		return female
	default:
		return neutral
	}
}

// PersonFilter captures filtering criteria for listing people. ViewerID
// limits results to records the viewer created or can reach through family
// membership; superadmins list with it empty.
type PersonFilter struct {
	FamilyID string
	Alive    *bool
	Search   string
	ViewerID string
	Page     int
	PageSize int
}
