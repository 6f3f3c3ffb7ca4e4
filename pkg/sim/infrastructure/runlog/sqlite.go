package runlog

import (
	"errors"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
)

// init registers the SQLite dialector factory. The GORM SQLite dialector
// expects the file path directly; the parent directory is created on demand.
func init() {
	RegisterDialector("sqlite", func(cfg config.RunLogConfig) (gorm.Dialector, error) {
		path := cfg.DSN
		if path == "" {
			path = cfg.Database
		}
		if path == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		return sqlite.Open(path), nil
	})
}
