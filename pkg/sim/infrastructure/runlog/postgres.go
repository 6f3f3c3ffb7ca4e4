package runlog

import (
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
)

// init registers the PostgreSQL dialector factory. A full DSN is required;
// the run log does not synthesize connection strings from parts.
func init() {
	RegisterDialector("postgres", func(cfg config.RunLogConfig) (gorm.Dialector, error) {
		if cfg.DSN == "" {
			return nil, errors.New("PostgreSQL run log requires a DSN")
		}
		return postgres.Open(cfg.DSN), nil
	})
}
