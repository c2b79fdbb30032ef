package main

import (
	"context"
	"net/http"
	"os"
	"strings"

	webAdapter "business-assistant/internal/adapters/web"
	"business-assistant/internal/ai"
	"business-assistant/internal/app"
	"business-assistant/internal/core"
	"business-assistant/internal/db"
	"business-assistant/internal/dialogue"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	if err := db.Migrate("migrations"); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	clients := core.NewClientService(pool)
	appointments := core.NewAppointmentService(pool)
	finance := core.NewFinanceService(pool)
	activity := core.NewActivityService(pool)
	usage := core.NewUsageService(pool)
	reports := core.NewReportEvaluator(appointments, finance)

	keys := apiKeys()
	if len(keys) == 0 {
		log.Warn().Msg("no OpenAI API keys configured; the assistant cannot classify commands")
	}
	agent := ai.NewAgent(keys...)

	executor := dialogue.NewExecutor(clients, appointments, finance, activity, reports)
	machine := dialogue.NewMachine(agent, usage, executor, log)
	svc := app.NewAppService(machine, clients, appointments, finance, reports)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	handler := webAdapter.NewHandler(svc, os.Getenv("ALLOWED_ORIGINS"), log)

	log.Info().Str("port", port).Msg("server starting")
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// apiKeys reads the credential pool: OPENAI_API_KEYS (comma-separated) with
// OPENAI_API_KEY as a single-key fallback.
func apiKeys() []string {
	if list := os.Getenv("OPENAI_API_KEYS"); list != "" {
		var keys []string
		for _, k := range strings.Split(list, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		return keys
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return []string{key}
	}
	return nil
}
