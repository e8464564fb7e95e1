package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNamesSorted(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_schema.sql", names[0])
}

func TestSchemaCarriesIntegrityConstraints(t *testing.T) {
	raw, err := migrationsFS.ReadFile("migrations/001_schema.sql")
	require.NoError(t, err)
	sql := string(raw)

	for _, want := range []string{
		"CONSTRAINT uq_queue_member UNIQUE (queue_name, registration_id)",
		"uq_registrations_external_id",
		"uq_coupon_single_use ON coupon_uses (coupon_id) WHERE single_use",
		"CHECK (NOT checked_in OR status = 'paid')",
	} {
		assert.True(t, strings.Contains(sql, want), "schema missing %q", want)
	}
}

func TestRefundSettlingStateAllowed(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Contains(t, names, "002_refund_settling.sql")

	raw, err := migrationsFS.ReadFile("migrations/002_refund_settling.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "'refund_settling'")
	assert.Contains(t, string(raw), "DROP CONSTRAINT IF EXISTS payments_state_check")
}
