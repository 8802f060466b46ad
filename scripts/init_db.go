package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

const schema = `
CREATE TABLE IF NOT EXISTS evaluations (
	id              UUID PRIMARY KEY,
	batch_id        TEXT,
	scenario        JSONB NOT NULL,
	result          JSONB NOT NULL,
	eligible        BOOLEAN NOT NULL,
	failed_rules    TEXT[] NOT NULL DEFAULT '{}',
	llpa_total_bps  DOUBLE PRECISION NOT NULL,
	net_price       DOUBLE PRECISION NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_evaluations_batch_id ON evaluations (batch_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_evaluations_eligible ON evaluations (eligible);
`

func main() {
	fmt.Println("=== Database Initialization Script ===")
	fmt.Println()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: Could not load .env file: %v\n", err)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Println("DATABASE_URL environment variable not set")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fmt.Println("Connecting to database...")
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	fmt.Println("Executing schema...")
	if _, err := conn.Exec(ctx, schema); err != nil {
		fmt.Printf("Failed to execute schema: %v\n", err)
		os.Exit(1)
	}

	var count int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM evaluations").Scan(&count); err != nil {
		fmt.Printf("Warning: Could not count evaluations: %v\n", err)
	} else {
		fmt.Printf("Evaluations table ready (%d rows)\n", count)
	}

	fmt.Println("Database initialization completed successfully")
}
