package postgres

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invclose/internal/core/clock"
)

func newTestAuditTrail(t *testing.T) *AuditTrail {
	t.Helper()
	a, err := NewAuditTrail(nil, clock.System{})
	require.NoError(t, err)
	return a
}

func TestAuditTrail_PackKeepsSmallPayloadPlain(t *testing.T) {
	a := newTestAuditTrail(t)

	e := a.pack(AuditEntry{Changes: json.RawMessage(`{"count":1}`)})

	assert.Equal(t, CompressionNone, e.CompressionAlgo)
	assert.JSONEq(t, `{"count":1}`, string(e.Changes))
	assert.Nil(t, e.ChangesCompressed)
}

func TestAuditTrail_PackCompressesLargePayload(t *testing.T) {
	a := newTestAuditTrail(t)
	payload := json.RawMessage(`{"note":"` + strings.Repeat("0001", defaultCompressThreshold) + `"}`)

	e := a.pack(AuditEntry{Changes: payload})

	require.Equal(t, CompressionZstd, e.CompressionAlgo)
	assert.Nil(t, e.Changes)
	assert.Less(t, len(e.ChangesCompressed), len(payload))

	require.NoError(t, a.unpack(&e))
	assert.Equal(t, string(payload), string(e.Changes))
	assert.Nil(t, e.ChangesCompressed)
}

func TestAuditTrail_UnpackRejectsCorruptData(t *testing.T) {
	a := newTestAuditTrail(t)
	e := AuditEntry{CompressionAlgo: CompressionZstd, ChangesCompressed: []byte("not zstd")}

	assert.Error(t, a.unpack(&e))
}
