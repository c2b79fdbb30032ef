package repl

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"business-assistant/internal/app"
	"business-assistant/internal/core"
	"business-assistant/internal/dialogue"
)

// historyKeep bounds the transcript kept for oracle context.
const historyKeep = 20

// Run starts the interactive assistant loop for one user. Slash commands are
// dispatched deterministically; everything else goes through the dialogue
// machine. Conversation state and transcript live only for the session.
func Run(ctx context.Context, svc app.ApplicationService, userID int, reader *bufio.Reader) {
	fmt.Println("Assistente do Negócio")
	fmt.Println("Descreva vendas, despesas e agendamentos em linguagem natural, ou use /help.")
	fmt.Println(strings.Repeat("-", 70))

	state := dialogue.Idle()
	var history []string

	errExit := fmt.Errorf("exit")

	dispatchSlash := func(input string) error {
		tokens := strings.Fields(strings.TrimPrefix(input, "/"))
		if len(tokens) == 0 {
			return nil
		}
		cmd := strings.ToLower(tokens[0])
		args := tokens[1:]

		switch cmd {
		case "clientes":
			clients, err := svc.ListClients(ctx, userID)
			if err != nil {
				return err
			}
			printClients(clients)

		case "agenda":
			appts, err := svc.TodayAgenda(ctx, userID)
			if err != nil {
				return err
			}
			printAgenda(appts)

		case "pendentes":
			typ := core.Income
			if len(args) > 0 && strings.HasPrefix(strings.ToLower(args[0]), "desp") {
				typ = core.Expense
			}
			records, err := svc.PendingByType(ctx, userID, typ)
			if err != nil {
				return err
			}
			printPending(records, typ)

		case "resumo":
			summary, err := svc.MonthSummary(ctx, userID)
			if err != nil {
				return err
			}
			fmt.Println(summary)

		case "help", "h":
			printHelp()

		case "sair", "exit", "quit", "q":
			return errExit

		default:
			fmt.Printf("Comando desconhecido: /%s  (use /help)\n", cmd)
		}
		return nil
	}

	for {
		fmt.Print("\n> ")
		input, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		// Slash prefix → deterministic dispatcher, no model call, no quota.
		if strings.HasPrefix(input, "/") {
			if err := dispatchSlash(input); err != nil {
				if err == errExit {
					fmt.Println("Até logo!")
					break
				}
				fmt.Printf("Erro: %v\n", err)
			}
			continue
		}

		result := svc.HandleMessage(ctx, userID, state, input, history)
		state = result.State
		printReplies(result.Replies)

		history = append(history, "Usuário: "+input)
		for _, r := range result.Replies {
			history = append(history, "Assistente: "+r.Text)
		}
		if len(history) > historyKeep {
			history = history[len(history)-historyKeep:]
		}
	}
}
