//go:build ignore

// Development helper: drops every table so the next seed run starts from
// an empty schema. Run with: go run scripts/drop_all_tables.go
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }() // Error ignored: script exiting

	dropSQL := `
		DROP TABLE IF EXISTS audit_events CASCADE;
		DROP TABLE IF EXISTS document_grants CASCADE;
		DROP TABLE IF EXISTS folder_grants CASCADE;
		DROP TABLE IF EXISTS group_members CASCADE;
		DROP TABLE IF EXISTS groups CASCADE;
		DROP TABLE IF EXISTS documents CASCADE;
		DROP TABLE IF EXISTS folders CASCADE;
		DROP TABLE IF EXISTS goose_db_version CASCADE;
	`

	if _, err := db.Exec(dropSQL); err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}

	fmt.Println("All tables dropped successfully")
}
