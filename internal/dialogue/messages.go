package dialogue

import (
	"fmt"

	"business-assistant/internal/core"
)

// User-facing copy. Everything here ships in Brazilian Portuguese; the code
// around it stays in English.
const (
	msgOracleDown = "Tive um problema para entender seu comando agora. Pode tentar de novo em instantes?"
	msgSaveError  = "Ocorreu um erro ao salvar. Nenhum dado foi gravado, tente novamente."
	msgReadError  = "Ocorreu um erro ao consultar seus dados. Tente novamente."

	msgQuotaManual = "Você ainda pode registrar vendas e agendamentos manualmente pelo menu do app."
	msgQuotaUpsell = "Para usar o assistente sem limites, conheça o plano Pro."
	msgOverdue     = "Sua assinatura está com o pagamento em atraso. Regularize para voltar a usar o assistente."
	msgCanceled    = "Sua assinatura foi cancelada. Reative o plano para voltar a usar o assistente."

	msgAmountInvalid = "O valor informado não é válido. Pode repetir o comando completo, por favor?"
	msgPlanInvalid   = "Os valores não fecham (total, entrada e parcelas). Pode repetir o comando completo?"
	msgDateInvalid   = "Não consegui entender a data do agendamento. Pode repetir informando dia e horário?"

	msgAskPaymentMethod = "Qual foi a forma de pagamento?"
	msgAskEntryMethod   = "Qual foi a forma de pagamento da entrada?"
	msgAskService       = "Qual serviço devo agendar?"
	msgNotUnderstood    = "Não entendi o que você quis dizer. Pode reformular?"
	msgNothingToUndo    = "Não encontrei nenhuma ação recente para apagar."
)

// quotaReplies renders the gate denial. The daily cap gets the fixed
// three-part sequence (limit, manual workaround, upsell); subscription blocks
// get a single targeted message.
func quotaReplies(d *core.UsageDecision) []Reply {
	switch d.Reason {
	case core.DenyOverdueSubscription:
		return []Reply{errReply(msgOverdue)}
	case core.DenyCanceledSubscription:
		return []Reply{errReply(msgCanceled)}
	default:
		return []Reply{
			errReply(fmt.Sprintf("Você atingiu o limite de %d interações gratuitas por hoje.", d.Limit)),
			info(msgQuotaManual),
			info(msgQuotaUpsell),
		}
	}
}

func confirmAddClientQuestion(name string) string {
	return fmt.Sprintf("Não encontrei %q nos seus clientes. Quer que eu cadastre?", name)
}

// questionForSlot is the fallback prompt when the oracle did not supply one.
func questionForSlot(slot string) string {
	switch slot {
	case SlotService:
		return "Qual é o serviço ou descrição?"
	case SlotAmount:
		return "Qual é o valor?"
	case SlotInstallments:
		return "Em quantas vezes?"
	case SlotHasDownPayment:
		return "Teve entrada?"
	case SlotDownPaymentValue:
		return "Qual foi o valor da entrada?"
	case SlotDueDate:
		return "Qual é a data do primeiro vencimento?"
	case SlotPaymentMethod:
		return msgAskPaymentMethod
	default:
		return "Pode me dar mais detalhes?"
	}
}
