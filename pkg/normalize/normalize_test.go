package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxd/pkg/models"
)

func TestNormalizeGraphFiltersNonCustomerEvents(t *testing.T) {
	payload := []byte(`{
		"object": "page",
		"entry": [{
			"time": 1700000000000,
			"messaging": [
				{"sender": {"id": "u1", "name": "Sarah"}, "timestamp": 1700000000001,
				 "message": {"mid": "m1", "text": "hi there"}},
				{"sender": {"id": "page"}, "timestamp": 1700000000002,
				 "message": {"mid": "m2", "text": "echo", "is_echo": true}},
				{"sender": {"id": "u1"}, "timestamp": 1700000000003,
				 "delivery": {"mids": ["m1"]}},
				{"sender": {"id": "u1"}, "timestamp": 1700000000004,
				 "read": {"watermark": 1700000000003}}
			]
		}]
	}`)

	drafts, rejected, err := Normalize(PlatformMessenger, payload)
	require.NoError(t, err)
	assert.Equal(t, 0, rejected)
	require.Len(t, drafts, 1)
	d := drafts[0]
	assert.Equal(t, models.DirectionInbound, d.Direction)
	assert.Equal(t, "u1", d.Sender)
	assert.Equal(t, "hi there", d.Content)
	assert.Equal(t, "m1", d.ExternalID)
	assert.Equal(t, "Sarah", d.CustomerName)
	assert.Equal(t, int64(1700000000001)*1e6, d.CreatedTS)
}

func TestNormalizeGraphCountsInvalidEvents(t *testing.T) {
	// second event has no text and fails validation without sinking the batch
	payload := []byte(`{
		"entry": [{"messaging": [
			{"sender": {"id": "u1"}, "timestamp": 1, "message": {"mid": "m1", "text": "ok"}},
			{"sender": {"id": "u2"}, "timestamp": 2, "message": {"mid": "m2", "text": ""}}
		]}]
	}`)
	drafts, rejected, err := Normalize(PlatformInstagram, payload)
	require.NoError(t, err)
	assert.Len(t, drafts, 1)
	assert.Equal(t, 1, rejected)
}

func TestNormalizeWhatsApp(t *testing.T) {
	payload := []byte(`{
		"entry": [{"changes": [{"value": {
			"contacts": [{"wa_id": "15551234", "profile": {"name": "Marco"}}],
			"messages": [{"from": "15551234", "id": "wamid.X", "timestamp": "1700000000",
				"text": {"body": "is this in stock?"}}]
		}}]}]
	}`)
	drafts, rejected, err := Normalize(PlatformWhatsApp, payload)
	require.NoError(t, err)
	assert.Equal(t, 0, rejected)
	require.Len(t, drafts, 1)
	assert.Equal(t, "15551234", drafts[0].Sender)
	assert.Equal(t, "Marco", drafts[0].CustomerName)
	assert.Equal(t, "wamid.X", drafts[0].ExternalID)
	assert.Equal(t, int64(1700000000)*1e9, drafts[0].CreatedTS)
}

func TestNormalizeXDirectMessages(t *testing.T) {
	payload := []byte(`{
		"direct_message_events": [{
			"id": "dm1", "created_timestamp": "1700000000123",
			"message_create": {"sender_id": "42", "message_data": {"text": "dm hello"}}
		}],
		"users": {"42": {"name": "Dana"}}
	}`)
	drafts, rejected, err := Normalize(PlatformX, payload)
	require.NoError(t, err)
	assert.Equal(t, 0, rejected)
	require.Len(t, drafts, 1)
	assert.Equal(t, "42", drafts[0].Sender)
	assert.Equal(t, "Dana", drafts[0].CustomerName)
	assert.Equal(t, "dm hello", drafts[0].Content)
}

func TestNormalizeRejectsUnknownPlatformAndBadJSON(t *testing.T) {
	_, _, err := Normalize("carrier-pigeon", []byte(`{}`))
	assert.ErrorIs(t, err, models.ErrValidation)

	_, _, err = Normalize(PlatformMessenger, []byte(`{not json`))
	assert.ErrorIs(t, err, models.ErrValidation)
}
