package main

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"

	"business-assistant/internal/adapters/repl"
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

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	clients := core.NewClientService(pool)
	appointments := core.NewAppointmentService(pool)
	finance := core.NewFinanceService(pool)
	activity := core.NewActivityService(pool)
	usage := core.NewUsageService(pool)
	reports := core.NewReportEvaluator(appointments, finance)

	keys := apiKeys()
	if len(keys) == 0 {
		log.Warn().Msg("no OpenAI API keys configured; only slash commands will work")
	}
	agent := ai.NewAgent(keys...)

	executor := dialogue.NewExecutor(clients, appointments, finance, activity, reports)
	machine := dialogue.NewMachine(agent, usage, executor, log)
	svc := app.NewAppService(machine, clients, appointments, finance, reports)

	userID := 1
	if v := os.Getenv("USER_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			userID = n
		}
	}

	repl.Run(ctx, svc, userID, bufio.NewReader(os.Stdin))
}

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
