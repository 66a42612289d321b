package convdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectAndMigrate(t *testing.T) {
	db, err := Connect(":memory:", false)
	require.NoError(t, err)
	defer db.Close()

	require.True(t, db.gormDB.Migrator().HasTable(&Run{}))
	require.True(t, db.gormDB.Migrator().HasTable(&Case{}))
}

func TestRecordRunAndHistory(t *testing.T) {
	db, err := Connect(":memory:", false)
	require.NoError(t, err)
	defer db.Close()

	cases := []Case{
		{Name: "arith-basic", Passed: true},
		{Name: "pattern-priority", Passed: false, Message: "wrong rule matched"},
	}
	run, err := db.RecordRun(time.Now(), cases)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Total)
	assert.Equal(t, 1, run.Passed)
	assert.Equal(t, 1, run.Failed)

	history, err := db.History(10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, run.ID, history[0].ID)

	stored, err := db.CasesForRun(run.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
}

func TestRecordRunEmpty(t *testing.T) {
	db, err := Connect(":memory:", false)
	require.NoError(t, err)
	defer db.Close()

	run, err := db.RecordRun(time.Now(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, run.Total)
}
