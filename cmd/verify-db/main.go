package main

import (
	"context"
	"log"
	"time"

	"business-assistant/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// verify-db checks that the schema the assistant depends on is in place:
// every table exists and the seed user is present.
func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("[CONNECT] %v", err)
	}
	defer pool.Close()
	log.Println("[CONNECT] success")

	tables := []string{"users", "clients", "appointments", "financial_records", "financial_batches", "usage_counters"}
	for _, table := range tables {
		checkTable(ctx, pool, table)
	}

	var users int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&users); err != nil {
		log.Fatalf("[USERS] count failed: %v", err)
	}
	if users == 0 {
		log.Println("[USERS] warning: no users seeded; every API call will fail the usage gate")
	} else {
		log.Printf("[USERS] %d user(s)", users)
	}

	log.Println("[DONE] schema looks good.")
}

func checkTable(ctx context.Context, pool *pgxpool.Pool, table string) {
	var exists bool
	err := pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
		table).Scan(&exists)
	if err != nil {
		log.Fatalf("[CHECK] %s: %v", table, err)
	}
	if !exists {
		log.Fatalf("[CHECK] table %q is missing; run the server once or apply migrations manually", table)
	}
	log.Printf("[CHECK] %s ok", table)
}
