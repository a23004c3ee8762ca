package models

// Family represents a bunch of Person records shared between users.
type Family struct {
	ID    string `db:"id" json:"id"`
	Icon  string `db:"icon" json:"icon"`
	Title string `db:"title" json:"title"`

	Audited

	// UserIDs lists users authorized to view and edit people linked to this
	// family. Loaded from the join table.
	UserIDs []string `db:"-" json:"user_ids,omitempty"`
}

// DisplayString combines the icon and the title.
func (f Family) DisplayString() string {
	return joinNonEmpty(f.Icon, f.Title)
}

// FamilyFilter captures filtering criteria for listing families.
type FamilyFilter struct {
	Search   string
	Page     int
	PageSize int
}
