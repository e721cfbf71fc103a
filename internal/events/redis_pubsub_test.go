package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	assert.Equal(t, "shift:11111111-2222-3333-4444-555555555555", Channel(id))
}

func TestEncode(t *testing.T) {
	at := time.Unix(1735700000, 0)
	body, err := encode(EventRecordingCompleted, map[string]string{"job_id": "EG_1"}, at)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"recording_completed","data":{"job_id":"EG_1"},"at":1735700000}`, string(body))

	var m Message
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, EventRecordingCompleted, m.Event)
	assert.Equal(t, int64(1735700000), m.At)
	assert.JSONEq(t, `{"job_id":"EG_1"}`, string(m.Data))

	_, err = encode("x", func() {}, at)
	assert.Error(t, err)
}
