package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func newSessionFixture(t *testing.T) *SessionService {
	t.Helper()
	s := NewSessionService(openTestDB(t))
	s.now = fixedNow
	return s
}

func sessionInput(name string, start time.Time, end *time.Time) SessionInput {
	return SessionInput{Name: name, StartDate: start, EndDate: end}
}

func TestSessionCreateAndUpdate(t *testing.T) {
	s := newSessionFixture(t)

	session, err := s.Create(sessionInput("Standen", fixedNow().Add(-time.Hour), nil))
	require.NoError(t, err)
	assert.True(t, session.Active)

	off := false
	updated, err := s.Update(session.ID, SessionInput{
		Name:      "Standen 2",
		StartDate: session.StartDate,
		Active:    &off,
	})
	require.NoError(t, err)
	assert.Equal(t, "Standen 2", updated.Name)
	assert.False(t, updated.Active)

	_, err = s.Update(999, sessionInput("x", fixedNow(), nil))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionDelete(t *testing.T) {
	s := newSessionFixture(t)
	session, err := s.Create(sessionInput("Standen", fixedNow(), nil))
	require.NoError(t, err)

	require.NoError(t, s.Delete(session.ID))
	assert.ErrorIs(t, s.Delete(session.ID), ErrSessionNotFound)
}

func TestListActiveFiltersByWindow(t *testing.T) {
	s := newSessionFixture(t)

	past := fixedNow().Add(-time.Hour)
	ended := fixedNow().Add(-time.Minute)
	future := fixedNow().Add(time.Hour)

	_, err := s.Create(sessionInput("running", past, nil))
	require.NoError(t, err)
	_, err = s.Create(sessionInput("over", past.Add(-time.Hour), &ended))
	require.NoError(t, err)
	_, err = s.Create(sessionInput("upcoming", future, nil))
	require.NoError(t, err)
	off := false
	_, err = s.Create(SessionInput{Name: "disabled", StartDate: past, Active: &off})
	require.NoError(t, err)

	active, err := s.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "running", active[0].Name)
}

func TestResolveNoActiveSessions(t *testing.T) {
	s := newSessionFixture(t)

	session, err := s.Resolve(nil)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestResolveSingleActiveAutoSelects(t *testing.T) {
	s := newSessionFixture(t)
	created, err := s.Create(sessionInput("only", fixedNow().Add(-time.Hour), nil))
	require.NoError(t, err)

	session, err := s.Resolve(nil)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, created.ID, session.ID)
}

func TestResolveMultipleActiveRequiresChoice(t *testing.T) {
	s := newSessionFixture(t)
	_, err := s.Create(sessionInput("a", fixedNow().Add(-time.Hour), nil))
	require.NoError(t, err)
	b, err := s.Create(sessionInput("b", fixedNow().Add(-2*time.Hour), nil))
	require.NoError(t, err)

	_, err = s.Resolve(nil)
	assert.ErrorIs(t, err, ErrChoiceRequired)

	session, err := s.Resolve(&b.ID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, b.ID, session.ID)
}

func TestResolveIgnoresInactiveRequestedID(t *testing.T) {
	s := newSessionFixture(t)
	ended := fixedNow().Add(-time.Minute)
	stale, err := s.Create(sessionInput("over", fixedNow().Add(-time.Hour), &ended))
	require.NoError(t, err)
	running, err := s.Create(sessionInput("running", fixedNow().Add(-time.Hour), nil))
	require.NoError(t, err)

	// A stale requested id falls back to the normal selection rules.
	session, err := s.Resolve(&stale.ID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, running.ID, session.ID)
}
