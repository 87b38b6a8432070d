package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pageza/alchemorsel-v2/search/internal/database"
)

func main() {
	// Parse command line flags
	dir := flag.String("dir", "migrations", "Directory holding the .sql migrations")
	status := flag.Bool("status", false, "List migrations and whether they are applied")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if *status {
		if err := printStatus(db, *dir); err != nil {
			log.Fatalf("failed to read migration status: %v", err)
		}
		return
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to open gorm session: %v", err)
	}
	if err := database.RunMigrations(gdb, *dir); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	fmt.Println("All migrations applied successfully.")
}

func printStatus(db *sql.DB, dir string) error {
	names, err := database.MigrationFiles(dir)
	if err != nil {
		return err
	}

	applied := make(map[string]string)
	rows, err := db.Query(`SELECT name, applied_at FROM migrations`)
	if err != nil && !database.IsMissingRelation(err) {
		return err
	}
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var name, at string
			if err := rows.Scan(&name, &at); err != nil {
				return err
			}
			applied[name] = at
		}
		if err := rows.Err(); err != nil {
			return err
		}
	}

	for _, name := range names {
		state := "pending"
		if at, ok := applied[name]; ok {
			state = "applied " + at
		}
		fmt.Printf("%-40s %s\n", name, state)
	}
	if pending := pendingNames(names, applied); len(pending) > 0 {
		fmt.Printf("%d pending: %s\n", len(pending), strings.Join(pending, ", "))
	}
	return nil
}

func pendingNames(names []string, applied map[string]string) []string {
	var out []string
	for _, name := range names {
		if _, ok := applied[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
