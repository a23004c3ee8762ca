package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jlebunetel/toolbox-api/internal/models"
)

func TestCanAccessFamily(t *testing.T) {
	family := &models.Family{ID: "f1", UserIDs: []string{"u2"}, Audited: models.Audited{CreatedBy: "u1"}}

	assert.True(t, canAccessFamily(&models.JWTClaims{UserID: "root", Role: models.RoleSuperAdmin}, family))
	assert.True(t, canAccessFamily(memberClaims("u1"), family))
	assert.True(t, canAccessFamily(memberClaims("u2"), family))
	assert.False(t, canAccessFamily(memberClaims("u3"), family))
	assert.False(t, canAccessFamily(nil, family))
}

func TestCanAccessPerson(t *testing.T) {
	person := &models.Person{ID: "p1", FamilyIDs: []string{"f1"}, Audited: models.Audited{CreatedBy: "u1"}}
	memberships := map[string]bool{"f1": true}

	assert.True(t, canAccessPerson(&models.JWTClaims{UserID: "root", Role: models.RoleSuperAdmin}, person, nil))
	assert.True(t, canAccessPerson(memberClaims("u1"), person, nil))
	assert.True(t, canAccessPerson(memberClaims("u2"), person, memberships))
	assert.False(t, canAccessPerson(memberClaims("u2"), person, map[string]bool{"f2": true}))
}

func TestCanAccessCalendar(t *testing.T) {
	calendar := &models.Calendar{ID: "c1", Audited: models.Audited{CreatedBy: "u1"}}

	assert.True(t, canAccessCalendar(&models.JWTClaims{UserID: "root", Role: models.RoleSuperAdmin}, calendar))
	assert.True(t, canAccessCalendar(memberClaims("u1"), calendar))
	assert.False(t, canAccessCalendar(memberClaims("u2"), calendar))
}

func TestFamilyIDSet(t *testing.T) {
	set := familyIDSet([]models.Family{{ID: "f1"}, {ID: "f2"}})
	assert.True(t, set["f1"])
	assert.True(t, set["f2"])
	assert.False(t, set["f3"])
}
