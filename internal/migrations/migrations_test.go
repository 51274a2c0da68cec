package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_OrderedAndNonEmpty(t *testing.T) {
	migrations, err := All()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, "0001_reminders", migrations[0].Version)
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
	for _, table := range []string{"reminder_schedules", "reminders", "medication_events", "adherence_stats", "delivery_events"} {
		assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestAll_ExternalIDsAreText(t *testing.T) {
	migrations, err := All()
	require.NoError(t, err)
	schema := migrations[0].SQL

	// patient and assignment ids come from the catalog and are not UUIDs
	assert.NotContains(t, schema, "patient_id UUID")
	assert.NotContains(t, schema, "medication_assignment_id UUID")
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS medication_assignments (\n    id VARCHAR(255) PRIMARY KEY")
	assert.Contains(t, schema, "patient_id VARCHAR(255) PRIMARY KEY")
}
