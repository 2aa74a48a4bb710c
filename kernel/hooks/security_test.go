package hooks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityContextSignAndVerifyRoundTrip(t *testing.T) {
	sec := SecurityContext{
		AuthToken:         "shared-secret",
		TrustedAgents:     []string{"node-a/agent-1"},
		AllowedHookPoints: []HookPoint{BeforeToolExecution},
		AllowedIPs:        []string{"10.0.0.1"},
		Timestamp:         time.Now(),
		Nonce:             "n-1",
	}

	require.NoError(t, sec.Sign())
	assert.NotEmpty(t, sec.Signature)
	assert.NoError(t, sec.Verify())
}

func TestSecurityContextVerifyRejectsTamperedFields(t *testing.T) {
	sec := SecurityContext{
		AuthToken:     "shared-secret",
		TrustedAgents: []string{"node-a/agent-1"},
		Timestamp:     time.Now(),
		Nonce:         "n-1",
	}
	require.NoError(t, sec.Sign())

	sec.TrustedAgents = append(sec.TrustedAgents, "node-b/agent-2")
	assert.Error(t, sec.Verify())
}

func TestSecurityContextVerifyRejectsWrongToken(t *testing.T) {
	sec := SecurityContext{AuthToken: "shared-secret", Nonce: "n-1", Timestamp: time.Now()}
	require.NoError(t, sec.Sign())

	sec.AuthToken = "different-secret"
	assert.Error(t, sec.Verify())
}

func TestSecurityContextVerifyRejectsUnsigned(t *testing.T) {
	sec := SecurityContext{AuthToken: "shared-secret"}
	assert.Error(t, sec.Verify())
}
