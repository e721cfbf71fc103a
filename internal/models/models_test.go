package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSessionName(t *testing.T) {
	id := uuid.MustParse("7b0f0a4e-5d0e-4a43-9f3c-2d1f4f5b6c7d")
	assert.Equal(t, "shift-7b0f0a4e-5d0e-4a43-9f3c-2d1f4f5b6c7d", SessionName(id))
	assert.Equal(t, SessionName(id), (&Shift{ID: id}).SessionName())
}

func TestRole_CanPublish(t *testing.T) {
	assert.False(t, RoleManager.CanPublish())
	assert.True(t, RoleEmployee.CanPublish())
}

func TestRecording_IsTerminal(t *testing.T) {
	assert.False(t, (&Recording{Status: RecordingStatusRecording}).IsTerminal())
	assert.True(t, (&Recording{Status: RecordingStatusCompleted}).IsTerminal())
	assert.True(t, (&Recording{Status: RecordingStatusFailed}).IsTerminal())
}

func TestUserProfile_DisplayName(t *testing.T) {
	assert.Equal(t, "Ana", (&UserProfile{Name: "Ana", Email: "a@x.io"}).DisplayName())
	assert.Equal(t, "a@x.io", (&UserProfile{Email: "a@x.io"}).DisplayName())
	assert.Equal(t, "Unknown", (&UserProfile{}).DisplayName())
}
