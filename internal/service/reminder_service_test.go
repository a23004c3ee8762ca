package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlebunetel/toolbox-api/internal/mailer"
	"github.com/jlebunetel/toolbox-api/internal/models"
)

type userRepoMock struct {
	users []models.User
}

func (m *userRepoMock) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if filter.Page > 1 {
		return nil, len(m.users), nil
	}
	var out []models.User
	for _, u := range m.users {
		if filter.Active != nil && u.Active != *filter.Active {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

type senderMock struct {
	sent []mailer.Message
	fail bool
}

func (m *senderMock) Send(_ context.Context, msg mailer.Message) error {
	if m.fail {
		return fmt.Errorf("smtp unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newReminderFixture(t *testing.T, sender *senderMock) (*ReminderService, *calendarRepoMock) {
	t.Helper()

	people := &peopleRepoMock{people: []models.Person{
		testPerson("p1", "Alice", time.Date(1990, time.June, 5, 0, 0, 0, 0, time.UTC), nil),
	}}

	repo := newCalendarRepoMock()
	repo.calendars["c1"] = &models.Calendar{ID: "c1", Icon: "🎂", Title: "Family", YearsAhead: 3, Audited: models.Audited{CreatedBy: "u1"}}
	repo.families["c1"] = []string{"f1"}
	repo.calendars["c2"] = &models.Calendar{ID: "c2", Icon: "🎂", Title: "Empty", YearsAhead: 3, Audited: models.Audited{CreatedBy: "u1"}}

	users := &userRepoMock{users: []models.User{
		{ID: "u1", Username: "alice", Email: "alice@example.com", FirstName: "Alice", Active: true},
		{ID: "u2", Username: "bob", Email: "bob@example.com", Active: true},
		{ID: "u3", Username: "carol", Email: "", Active: true},
	}}

	feedsSvc := newCalendarServiceForTest(repo, people, nil, nil, nil)
	svc := NewReminderService(users, repo, feedsSvc, sender, nil, svcLocalizer{}, ReminderConfig{SiteName: "toolbox", DaysAhead: 7}, nil)
	return svc, repo
}

func TestReminderServiceSendDigest(t *testing.T) {
	sender := &senderMock{}
	svc, _ := newReminderFixture(t, sender)

	err := svc.SendDigest(context.Background())
	require.NoError(t, err)

	// One calendar has a birthday in the window, the other is empty. Only
	// the creator gets mail.
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "[toolbox] 🎂 Birthdays in the next 7 days (🎂 Family)", msg.Subject)
	assert.Contains(t, msg.Text, "Hello Alice,")
	assert.Contains(t, msg.Text, "June 5, 2023")
	assert.Contains(t, msg.HTML, "Alice")
}

func TestReminderServiceSendDigestAllFailed(t *testing.T) {
	sender := &senderMock{fail: true}
	svc, _ := newReminderFixture(t, sender)

	err := svc.SendDigest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reminder emails failed")
}

func TestReminderServiceSendDigestNothingToSend(t *testing.T) {
	sender := &senderMock{}
	svc, repo := newReminderFixture(t, sender)
	delete(repo.calendars, "c1")

	err := svc.SendDigest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}
