package intent

import (
	"testing"

	"github.com/kapitalops/intakebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := Decision("key-123", true)
	out, err := Decode(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, TypeDecision, out.Type)
	assert.Equal(t, "key-123", out.ApprovalKey)
	assert.True(t, out.Accept)
}

func TestDecodeRejectsAmbiguousPrefixes(t *testing.T) {
	// The legacy scheme routed on string prefixes, so "approve_large_7"
	// also matched the "approve_" handler. Structured payloads cannot
	// collide that way: each is a distinct closed type.
	a := Decision("onboard-7", true).Encode()
	b := SetActorStatus(7, domain.StatusApproved).Encode()
	assert.NotEqual(t, a, b)

	da, err := Decode(a)
	require.NoError(t, err)
	db, err := Decode(b)
	require.NoError(t, err)
	assert.NotEqual(t, da.Type, db.Type)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "approve_42"},
		{"empty", ""},
		{"wrong version", `{"v":99,"t":"confirm"}`},
		{"unknown type", `{"v":1,"t":"launch_missiles"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.payload)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}
