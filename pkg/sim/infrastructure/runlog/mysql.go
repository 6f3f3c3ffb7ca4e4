package runlog

import (
	"errors"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
)

// init registers the MySQL dialector factory. A full DSN is required.
func init() {
	RegisterDialector("mysql", func(cfg config.RunLogConfig) (gorm.Dialector, error) {
		if cfg.DSN == "" {
			return nil, errors.New("MySQL run log requires a DSN")
		}
		return mysql.Open(cfg.DSN), nil
	})
}
