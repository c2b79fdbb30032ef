package repl

import (
	"fmt"
	"strings"

	"business-assistant/internal/core"
	"business-assistant/internal/dialogue"

	"github.com/shopspring/decimal"
)

func printReplies(replies []dialogue.Reply) {
	for _, r := range replies {
		switch r.Type {
		case dialogue.ReplySuccess:
			fmt.Printf("[OK] %s\n", r.Text)
		case dialogue.ReplyError:
			fmt.Printf("[!] %s\n", r.Text)
		case dialogue.ReplyQuestion:
			fmt.Printf("[?] %s\n", r.Text)
		default:
			fmt.Println(r.Text)
		}
	}
}

func printClients(clients []core.Client) {
	if len(clients) == 0 {
		fmt.Println("Nenhum cliente cadastrado.")
		return
	}
	fmt.Println("\n--- CLIENTES ---")
	for _, c := range clients {
		line := c.Name
		if c.Phone != "" {
			line += "  (" + c.Phone + ")"
		}
		fmt.Println("  " + line)
	}
	fmt.Printf("Total: %d\n", len(clients))
}

func printAgenda(appts []core.Appointment) {
	if len(appts) == 0 {
		fmt.Println("Agenda livre hoje.")
		return
	}
	fmt.Println("\n--- AGENDA DE HOJE ---")
	for _, a := range appts {
		line := fmt.Sprintf("  %s  %s", a.StartsAt.Format("15:04"), a.Service)
		if a.ClientName != "" {
			line += "  — " + a.ClientName
		}
		fmt.Println(line)
	}
}

func printPending(records []core.FinancialRecord, typ core.RecordType) {
	label := "A RECEBER"
	if typ == core.Expense {
		label = "A PAGAR"
	}
	if len(records) == 0 {
		fmt.Printf("Nada pendente (%s).\n", strings.ToLower(label))
		return
	}

	fmt.Printf("\n--- %s ---\n", label)
	total := decimal.Zero
	for _, r := range records {
		due := "sem vencimento"
		if r.DueDate != nil {
			due = r.DueDate.Format("02/01/2006")
		}
		fmt.Printf("  %-12s %10s  %s\n", due, core.FormatBRL(r.Amount), r.Description)
		total = total.Add(r.Amount)
	}
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("  Total: %s\n", core.FormatBRL(total))
}

func printHelp() {
	fmt.Println(`Comandos:
  /clientes              lista seus clientes
  /agenda                agendamentos de hoje
  /pendentes [despesas]  valores a receber (ou a pagar)
  /resumo                receitas do mês atual
  /help                  esta ajuda
  /sair                  encerra

Qualquer outra mensagem é interpretada pelo assistente:
  "vendi uma manicure de 50 pra Maria no pix"
  "agenda um corte pra Ana amanhã às 14h"
  "quanto tenho pra receber em setembro?"`)
}
