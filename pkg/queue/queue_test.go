package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobEnvelope(t *testing.T) {
	regID := int64(17)
	job, raw, err := newJob(JobTypeEmail, EmailPayload{
		EmailType:      "registration_confirmation",
		RegistrationID: &regID,
		RecipientEmail: "fox@example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Zero(t, job.Attempt)

	var decoded Job
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, JobTypeEmail, decoded.Type)

	var payload EmailPayload
	require.NoError(t, json.Unmarshal(decoded.Payload, &payload))
	assert.Equal(t, "fox@example.com", payload.RecipientEmail)
	require.NotNil(t, payload.RegistrationID)
	assert.Equal(t, int64(17), *payload.RegistrationID)
}
