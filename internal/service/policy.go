package service

import (
	"github.com/jlebunetel/toolbox-api/internal/models"
)

// Access policy for sensitive records. Superadmins see everything; everyone
// else sees what they created plus what is shared with them through family
// membership. Kept as pure functions so the rules are testable without a
// database.

func isSuperAdmin(role models.UserRole) bool {
	return role == models.RoleSuperAdmin
}

// canAccessFamily reports whether the actor may view or edit the family.
func canAccessFamily(claims *models.JWTClaims, family *models.Family) bool {
	if claims == nil || family == nil {
		return false
	}
	if isSuperAdmin(claims.Role) {
		return true
	}
	if family.CreatedBy == claims.UserID {
		return true
	}
	for _, userID := range family.UserIDs {
		if userID == claims.UserID {
			return true
		}
	}
	return false
}

// canAccessPerson reports whether the actor may view or edit the person.
// authorizedFamilies is the set of family IDs the actor belongs to.
func canAccessPerson(claims *models.JWTClaims, person *models.Person, authorizedFamilies map[string]bool) bool {
	if claims == nil || person == nil {
		return false
	}
	if isSuperAdmin(claims.Role) {
		return true
	}
	if person.CreatedBy == claims.UserID {
		return true
	}
	for _, familyID := range person.FamilyIDs {
		if authorizedFamilies[familyID] {
			return true
		}
	}
	return false
}

// canAccessCalendar reports whether the actor may view or edit the calendar.
func canAccessCalendar(claims *models.JWTClaims, calendar *models.Calendar) bool {
	if claims == nil || calendar == nil {
		return false
	}
	if isSuperAdmin(claims.Role) {
		return true
	}
	return calendar.CreatedBy == claims.UserID
}

// familyIDSet turns a family list into a membership lookup.
func familyIDSet(families []models.Family) map[string]bool {
	set := make(map[string]bool, len(families))
	for _, family := range families {
		set[family.ID] = true
	}
	return set
}
