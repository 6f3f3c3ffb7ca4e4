package runlog

import (
	"context"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/exception"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/logger"
)

const moduleName = "runlog"

// GormRepository is the GORM-backed implementation of ports.RunLogRepository.
type GormRepository struct {
	db *gorm.DB
}

// Open connects to the configured database, migrates the record schema and
// returns the repository.
func Open(cfg config.RunLogConfig) (*GormRepository, error) {
	factory, err := GetDialectorFactory(cfg.Type)
	if err != nil {
		return nil, exception.NewSimError(moduleName, "unsupported run log database type '"+cfg.Type+"'", err, false)
	}
	dialector, err := factory(cfg)
	if err != nil {
		return nil, exception.NewSimError(moduleName, "failed to build dialector for '"+cfg.Type+"'", err, false)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, exception.NewSimError(moduleName, "failed to open run log database", err, false)
	}

	if err := db.AutoMigrate(&model.JobExecutionRecord{}); err != nil {
		return nil, exception.NewSimError(moduleName, "failed to migrate run log schema", err, false)
	}

	logger.Infof("Run log opened (%s).", cfg.Type)
	return &GormRepository{db: db}, nil
}

// NewGormRepository wraps an existing GORM handle. Used by tests.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// SaveJobRecord stores one terminal job outcome.
func (r *GormRepository) SaveJobRecord(ctx context.Context, rec *model.JobExecutionRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return exception.NewSimError(moduleName, "failed to save job record", err, false)
	}
	return nil
}

// FindJobRecords returns all records for a run, in insertion order.
func (r *GormRepository) FindJobRecords(ctx context.Context, runID string) ([]model.JobExecutionRecord, error) {
	var recs []model.JobExecutionRecord
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at").
		Find(&recs).Error
	if err != nil {
		return nil, exception.NewSimError(moduleName, "failed to query job records", err, false)
	}
	return recs, nil
}

// Close releases the underlying database handle.
func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ ports.RunLogRepository = (*GormRepository)(nil)

// NoopRepository is used when the run log is disabled.
type NoopRepository struct{}

// SaveJobRecord does nothing.
func (NoopRepository) SaveJobRecord(ctx context.Context, rec *model.JobExecutionRecord) error {
	return nil
}

// FindJobRecords returns no records.
func (NoopRepository) FindJobRecords(ctx context.Context, runID string) ([]model.JobExecutionRecord, error) {
	return nil, nil
}

// Close does nothing.
func (NoopRepository) Close() error { return nil }

var _ ports.RunLogRepository = NoopRepository{}
