package runlog_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/infrastructure/runlog"
)

func sampleRecord(runID string, jobIndex int, status model.JobStatus, gate model.AbortGate, abortTick int) *model.JobExecutionRecord {
	job := model.Job{StartTick: 10, EndTick: 120, TargetFlux: 5.0e13, HeaterPowerHint: 400.0}
	state := model.NewJobRuntimeState()
	state.Status = status
	state.Gate = gate
	state.WarmupTicks = 26
	return model.NewJobExecutionRecord(runID, jobIndex, job, state, abortTick)
}

func TestSQLiteRepositoryRoundTrip(t *testing.T) {
	cfg := config.RunLogConfig{
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), "runlog.db"),
	}

	repo, err := runlog.Open(cfg)
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	require.NoError(t, repo.SaveJobRecord(ctx, sampleRecord("run-a", 0, model.JobStatusCompleted, model.AbortGateNone, -1)))
	require.NoError(t, repo.SaveJobRecord(ctx, sampleRecord("run-a", 1, model.JobStatusAborted, model.AbortGateUnderflux, 42)))
	require.NoError(t, repo.SaveJobRecord(ctx, sampleRecord("run-b", 0, model.JobStatusCompleted, model.AbortGateNone, -1)))

	recs, err := repo.FindJobRecords(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, 0, recs[0].JobIndex)
	assert.Equal(t, "COMPLETED", recs[0].FinalStatus)
	assert.Equal(t, -1, recs[0].AbortTick)
	assert.Equal(t, 1, recs[1].JobIndex)
	assert.Equal(t, "ABORTED", recs[1].FinalStatus)
	assert.Equal(t, "UNDERFLUX", recs[1].AbortGate)
	assert.Equal(t, 42, recs[1].AbortTick)

	other, err := repo.FindJobRecords(ctx, "run-c")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestOpenRejectsUnknownDatabaseType(t *testing.T) {
	_, err := runlog.Open(config.RunLogConfig{Type: "cassandra"})
	assert.Error(t, err)
}

func TestSaveJobRecordIssuesInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	repo := runlog.NewGormRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `job_execution_records`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rec := sampleRecord("run-a", 0, model.JobStatusCompleted, model.AbortGateNone, -1)
	require.NoError(t, repo.SaveJobRecord(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoopRepositoryIsInert(t *testing.T) {
	repo := runlog.NoopRepository{}
	ctx := context.Background()

	assert.NoError(t, repo.SaveJobRecord(ctx, sampleRecord("run-a", 0, model.JobStatusCompleted, model.AbortGateNone, -1)))
	recs, err := repo.FindJobRecords(ctx, "run-a")
	assert.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, repo.Close())
}
