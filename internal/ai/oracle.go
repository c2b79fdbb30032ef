package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"business-assistant/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// ErrOracleUnavailable means every credential in the pool failed or the final
// payload did not validate. The turn fails; conversation state stays put.
var ErrOracleUnavailable = errors.New("intent oracle unavailable")

// Oracle classifies utterances into structured intents. It is the only place
// the language model is touched; everything downstream sees typed data.
type Oracle interface {
	// Classify interprets a fresh utterance given the recent conversation
	// history (most recent last, capped by the caller) and the current time.
	Classify(ctx context.Context, utterance string, history []string, now time.Time) (*core.IntentResult, error)

	// ClassifySlot re-invokes the oracle scoped to a single missing field.
	// The prompt forbids altering fields already known; the caller merges the
	// result monotonically regardless.
	ClassifySlot(ctx context.Context, utterance string, slot string, known core.CommandData, now time.Time) (*core.IntentResult, error)
}

// Agent is the OpenAI-backed Oracle. It rotates across a pool of API keys on
// transient failures (rate limits, upstream 5xx); rotation is invisible to
// callers, which only see success or ErrOracleUnavailable.
type Agent struct {
	clients []openai.Client
}

// NewAgent builds an Agent from one or more API keys.
func NewAgent(apiKeys ...string) *Agent {
	clients := make([]openai.Client, 0, len(apiKeys))
	for _, key := range apiKeys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		clients = append(clients, openai.NewClient(option.WithAPIKey(key)))
	}
	return &Agent{clients: clients}
}

var weekdayNames = [...]string{"domingo", "segunda-feira", "terça-feira",
	"quarta-feira", "quinta-feira", "sexta-feira", "sábado"}

// timeContext renders the current date/time line the model uses to resolve
// relative expressions ("próxima terça", "semana que vem") itself.
func timeContext(now time.Time) string {
	return fmt.Sprintf("Agora é %s, %s (horário local).",
		weekdayNames[int(now.Weekday())], now.Format("02/01/2006 15:04"))
}

const classifyInstructions = `Você é o assistente de um pequeno negócio brasileiro (salão, barbearia, autônomos).
Classifique o comando do usuário em exatamente uma intent do conjunto:
ADD_CLIENT, DELETE_CLIENT, LIST_CLIENTS, SCHEDULE_SERVICE, CANCEL_APPOINTMENT,
REGISTER_SALE, REGISTER_EXPENSE, DELETE_LAST_ACTION, MULTI_ACTION,
CHECK_CLIENT_SCHEDULE, REPORT, RISKY_ACTION, CONFIRMATION_REQUIRED, UNKNOWN.

Regras:
1. Extraia em data todos os campos presentes no comando; nunca invente valores.
2. Resolva datas relativas ("amanhã", "próxima terça") para date_time ISO-8601 usando a data atual fornecida.
3. Use CONFIRMATION_REQUIRED quando faltar um campo obrigatório, preenchendo missing_field.
4. Use RISKY_ACTION para ações destrutivas ou financeiras de grande impacto, preenchendo target_intent.
5. message deve ser uma resposta ou pergunta curta em português.`

func (a *Agent) Classify(ctx context.Context, utterance string, history []string, now time.Time) (*core.IntentResult, error) {
	var sb strings.Builder
	sb.WriteString(timeContext(now))
	sb.WriteString("\n\n")
	if len(history) > 0 {
		sb.WriteString("Conversa recente:\n")
		for _, line := range history {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Comando: ")
	sb.WriteString(utterance)

	return a.complete(ctx, classifyInstructions, sb.String())
}

func (a *Agent) ClassifySlot(ctx context.Context, utterance string, slot string, known core.CommandData, now time.Time) (*core.IntentResult, error) {
	knownJSON, err := json.Marshal(known)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal known fields: %w", err)
	}

	instructions := fmt.Sprintf(`Você está completando um comando já em andamento.
O único campo que falta é %q. Interprete a resposta do usuário apenas para esse campo.
NÃO altere nenhum campo já conhecido. Campos conhecidos:
%s

Se ainda faltar algum campo obrigatório depois desta resposta, use CONFIRMATION_REQUIRED e preencha missing_field.
Caso contrário repita a intent original com os dados completos.`, slot, knownJSON)

	prompt := timeContext(now) + "\n\nResposta do usuário: " + utterance
	return a.complete(ctx, instructions, prompt)
}

// complete runs one structured-output call, walking the credential pool on
// transient failures.
func (a *Agent) complete(ctx context.Context, instructions, input string) (*core.IntentResult, error) {
	if len(a.clients) == 0 {
		return nil, fmt.Errorf("%w: no API keys configured", ErrOracleUnavailable)
	}

	schemaMap, err := intentSchema()
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model:        shared.ResponsesModel(shared.ChatModelGPT4o),
		Instructions: param.NewOpt(instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(input),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "intent_result",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("Classified business command with extracted fields"),
				},
			},
		},
	}

	var lastErr error
	for _, client := range a.clients {
		resp, err := client.Responses.New(ctx, params)
		if err != nil {
			lastErr = err
			if isTransient(err) {
				continue // next credential
			}
			break
		}

		content := resp.OutputText()
		if content == "" {
			lastErr = errors.New("empty response content")
			continue
		}

		result, err := DecodeIntentResult(content)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
		}
		return result, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, lastErr)
}

// isTransient reports whether the error is worth retrying on another
// credential: rate limiting or upstream 5xx.
func isTransient(err error) bool {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == 429 || apierr.StatusCode >= 500
	}
	return false
}

// intentSchema reflects the IntentResult JSON schema once per call, the same
// way the ledger proposal schema is generated.
func intentSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v core.IntentResult
	schemaJSON, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}
