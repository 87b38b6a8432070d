package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/pageza/alchemorsel-v2/search/internal/models"
)

// MigrationFiles lists the .sql files of dir in apply order.
func MigrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// RunMigrations applies every migration of dir that is not yet recorded in
// the migrations table. SQLite has no pgvector, so it gets the search
// tables from the models instead and dir is ignored.
func RunMigrations(db *gorm.DB, dir string) error {
	if db.Dialector.Name() == "sqlite" {
		return db.AutoMigrate(
			&models.Recipe{},
			&models.RecipeEmbedding{},
			&models.QueryEmbedding{},
		)
	}

	names, err := MigrationFiles(dir)
	if err != nil {
		return err
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var applied []string
	if err := db.Table("migrations").Pluck("name", &applied).Error; err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	for _, name := range names {
		if done[name] {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		// A failed file leaves no record, so the next run retries it.
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(string(content)).Error; err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", name, err)
			}
			return tx.Exec("INSERT INTO migrations (name) VALUES (?)", name).Error
		})
		if err != nil {
			return err
		}
		log.Printf("Applied migration %s", name)
	}

	return nil
}
