package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/keepsake/internal/model"
)

func intPtr(v int) *int { return &v }

func TestEncodeDecodeStandalone(t *testing.T) {
	target := time.Date(2030, time.May, 1, 0, 0, 0, 0, time.UTC)
	in := model.Standalone{
		Title:        "First marathon",
		Description:  "Berlin",
		Type:         "achievement",
		TargetDate:   &target,
		TargetCount:  intPtr(5),
		ReminderDays: intPtr(3),
	}

	raw, err := EncodeStandalone(in)
	require.NoError(t, err)

	out, err := DecodeStandalone(raw)
	require.NoError(t, err)
	assert.Equal(t, in.Title, out.Title)
	assert.Equal(t, in.Description, out.Description)
	assert.Equal(t, in.Type, out.Type)
	require.NotNil(t, out.TargetDate)
	assert.True(t, target.Equal(*out.TargetDate))
	assert.Equal(t, 5, *out.TargetCount)
	assert.Equal(t, 3, *out.ReminderDays)
}

func TestEncodeStandalone_TargetCountIsANumber(t *testing.T) {
	raw, err := EncodeStandalone(model.Standalone{Title: "x", TargetCount: intPtr(5)})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"target_count":5`)
}

func TestDecodeStandalone_Defaults(t *testing.T) {
	out, err := DecodeStandalone([]byte(`{"title":"Graduation"}`))
	require.NoError(t, err)

	assert.Equal(t, model.DefaultMilestoneType, out.Type)
	require.NotNil(t, out.ReminderDays)
	assert.Equal(t, model.DefaultReminderDays, *out.ReminderDays)
	assert.Nil(t, out.TargetCount)
	assert.Nil(t, out.TargetDate)
}

func TestDecodeStandalone_ExplicitNullReminder(t *testing.T) {
	out, err := DecodeStandalone([]byte(`{"title":"Graduation","reminder_days":null}`))
	require.NoError(t, err)
	assert.Nil(t, out.ReminderDays)
}

func TestDecodeStandalone_Garbage(t *testing.T) {
	_, err := DecodeStandalone([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeStandalone_LegacyEncodings(t *testing.T) {
	out, err := DecodeStandalone([]byte(`{
		"title": "Books read",
		"target_count": "12",
		"target_date": "2030-05-01",
		"reminder_days": "3"
	}`))
	require.NoError(t, err)

	require.NotNil(t, out.TargetCount)
	assert.Equal(t, 12, *out.TargetCount)
	require.NotNil(t, out.TargetDate)
	assert.True(t, time.Date(2030, time.May, 1, 0, 0, 0, 0, time.UTC).Equal(*out.TargetDate))
	require.NotNil(t, out.ReminderDays)
	assert.Equal(t, 3, *out.ReminderDays)
}

func TestDecodeStandalone_UnreadableFieldKeepsTheRest(t *testing.T) {
	out, err := DecodeStandalone([]byte(`{
		"title": "Sobriety",
		"type": "health",
		"target_count": "a dozen",
		"target_date": {"year": 2030},
		"reminder_days": 1
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target_count")
	assert.Contains(t, err.Error(), "target_date")

	assert.Equal(t, "Sobriety", out.Title)
	assert.Equal(t, "health", out.Type)
	assert.Nil(t, out.TargetCount)
	assert.Nil(t, out.TargetDate)
	require.NotNil(t, out.ReminderDays)
	assert.Equal(t, 1, *out.ReminderDays)
}
