package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	testCases := []struct {
		from    LeadMagnetStatus
		to      LeadMagnetStatus
		allowed bool
	}{
		{StatusActive, StatusArchived, true},
		{StatusArchived, StatusActive, true},
		{StatusDraft, StatusActive, true},
		{StatusActive, StatusActive, true},
		{StatusActive, StatusDraft, false},
		{StatusArchived, StatusDraft, false},
		{StatusDraft, StatusArchived, false},
	}

	for _, testCase := range testCases {
		t.Run(string(testCase.from)+"->"+string(testCase.to), func(t *testing.T) {
			assert.Equal(t, testCase.allowed, testCase.from.CanTransitionTo(testCase.to))
		})
	}
}

func TestParseLeadMagnetStatus(t *testing.T) {
	status, ok := ParseLeadMagnetStatus("archived")
	assert.True(t, ok)
	assert.Equal(t, StatusArchived, status)

	_, ok = ParseLeadMagnetStatus("deleted")
	assert.False(t, ok)

	_, ok = ParseLeadMagnetStatus("")
	assert.False(t, ok)
}

func TestLeadMagnetHelpers(t *testing.T) {
	leadMagnet := &LeadMagnet{Slug: "my-guide", Status: StatusArchived}
	assert.Equal(t, "/lm/my-guide", leadMagnet.URL())
	assert.False(t, leadMagnet.IsAcceptingSubmissions())

	leadMagnet.Status = StatusActive
	assert.True(t, leadMagnet.IsAcceptingSubmissions())
}
