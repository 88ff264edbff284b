package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molkinetics/tsfinder/internal/domain/calc"
	"github.com/molkinetics/tsfinder/internal/infrastructure/monitoring/logging"
)

func TestCaptureLoggerSharesSinkWithChildren(t *testing.T) {
	log := NewCaptureLogger()
	log.Info("parent")
	log.With(logging.String("k", "v")).Warn("child")
	log.Named("sub").Error("named child")

	entries := log.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"child"}, log.Messages("warn"))
	assert.Equal(t, logging.Field{Key: "k", Value: "v"}, entries[1].Fields[0])
}

func TestScriptedOracleDispatch(t *testing.T) {
	orc := NewScriptedOracle()
	e := -1.5
	orc.Handlers[calc.TaskEnergy] = func(*calc.Request) (*calc.Result, error) {
		return &calc.Result{TerminatedNormally: true, Energy: &e}, nil
	}

	res, err := orc.Run(context.Background(), &calc.Request{Task: calc.TaskEnergy})
	require.NoError(t, err)
	assert.True(t, res.TerminatedNormally)

	// Unhandled tasks fail the attempt without erroring.
	res, err = orc.Run(context.Background(), &calc.Request{Task: calc.TaskOpt})
	require.NoError(t, err)
	assert.False(t, res.TerminatedNormally)

	require.Len(t, orc.Requests(), 2)
	assert.Equal(t, calc.TaskOpt, orc.Requests()[1].Task)
}
