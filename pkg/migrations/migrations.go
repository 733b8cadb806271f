package migrations

import (
	"fmt"
	"os"

	"github.com/pressly/goose/v3"
	"github.com/retinalab/retina-dashboard/pkg/log"
	"gorm.io/gorm"
)

// MigrateStore applies the goose migrations found in migrationFolder. Only postgres is
// supported; sqlite databases are created from the models.
func MigrateStore(db *gorm.DB, migrationFolder string) error {
	pending, err := collect(migrationFolder)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return fmt.Errorf("no migrations found in %s", migrationFolder)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	return goose.Up(sqlDB, ".")
}

func collect(migrationFolder string) (goose.Migrations, error) {
	if err := prepare(migrationFolder); err != nil {
		return nil, err
	}
	return goose.CollectMigrations(".", 0, goose.MaxVersion)
}

func prepare(migrationFolder string) error {
	goose.SetLogger(log.NewPrintf("migrations"))

	fi, err := os.Stat(migrationFolder)
	if err != nil {
		return err
	}

	if !fi.Mode().IsDir() {
		return fmt.Errorf("failed to open migration folder: %s is not a folder", migrationFolder)
	}

	goose.SetBaseFS(os.DirFS(migrationFolder))

	return goose.SetDialect("postgres")
}
