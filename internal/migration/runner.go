// Package migration applies schema changes at startup.
package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AutoMigrator creates the gorm-managed tables.
type AutoMigrator interface {
	Migrate() error
}

type Runner struct {
	db       *gorm.DB
	migrator AutoMigrator
	logger   *logrus.Logger
}

func NewRunner(db *gorm.DB, migrator AutoMigrator, logger *logrus.Logger) *Runner {
	return &Runner{
		db:       db,
		migrator: migrator,
		logger:   logger,
	}
}

// RunMigrations executes the SQL files first, since they enable the vector
// extension, then the gorm auto-migrations.
func (r *Runner) RunMigrations(migrationsPath string) error {
	r.logger.Info("Starting database migrations...")

	if err := r.runSQLMigrations(migrationsPath); err != nil {
		return fmt.Errorf("SQL migrations failed: %w", err)
	}

	if err := r.migrator.Migrate(); err != nil {
		return fmt.Errorf("GORM auto-migration failed: %w", err)
	}

	r.logger.Info("Database migrations completed successfully")
	return nil
}

func (r *Runner) runSQLMigrations(migrationsPath string) error {
	files, err := ListSQLFiles(migrationsPath)
	if err != nil {
		return err
	}

	for _, fileName := range files {
		if err := r.runSQLFile(filepath.Join(migrationsPath, fileName)); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", fileName, err)
		}
		r.logger.WithField("file", fileName).Info("Migration executed successfully")
	}

	return nil
}

// ListSQLFiles returns the .sql files of dir in lexical order. A missing
// directory yields no files.
func ListSQLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)
	return sqlFiles, nil
}

func (r *Runner) runSQLFile(filePath string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	// Files may hold several statements, which prepared statements reject.
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	_, err = sqlDB.Exec(string(content))
	return err
}
