package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molkinetics/tsfinder/pkg/errors"
)

const testDSN = "postgres://ts:ts@localhost:5432/tsfinder?sslmode=disable"

func TestRunMigrationsBadSource(t *testing.T) {
	err := RunMigrations(testDSN, "file://does-not-exist")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDatabaseError, errors.GetCode(err))
}

func TestRollbackMigrationsRejectsNonPositiveSteps(t *testing.T) {
	for _, steps := range []int{0, -2} {
		err := RollbackMigrations(testDSN, "file://migrations", steps)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeValidation, errors.GetCode(err))
	}
}
