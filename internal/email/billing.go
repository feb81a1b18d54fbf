package email

import (
	"fmt"
)

// BillingNotice é o conteúdo do aviso de inadimplência enviado ao admin da clínica.
type BillingNotice struct {
	ClinicName  string
	Level       string
	DaysOverdue int
	OpenCents   int64
	BillingURL  string
}

const billingNoticeTpl = `Olá,

A clínica {{.ClinicName}} possui faturas em aberto há {{.DaysOverdue}} dia(s), totalizando {{.Amount}}.

{{.Message}}

Consulte suas faturas em: {{.BillingURL}}`

var levelMessages = map[string]string{
	"NOTIFICATION": "Regularize o pagamento para evitar restrições no sistema.",
	"RESTRICTION":  "O sistema está em modo somente leitura até a regularização.",
	"BLOCKED":      "O acesso ao sistema está bloqueado até a regularização.",
}

func (s *Sender) SendBillingNotice(to string, n BillingNotice) error {
	msg, ok := levelMessages[n.Level]
	if !ok {
		return fmt.Errorf("nível sem aviso: %s", n.Level)
	}
	body, err := render(billingNoticeTpl, map[string]interface{}{
		"ClinicName":  n.ClinicName,
		"DaysOverdue": n.DaysOverdue,
		"Amount":      FormatBRL(n.OpenCents),
		"Message":     msg,
		"BillingURL":  n.BillingURL,
	})
	if err != nil {
		return err
	}
	return s.Send(to, "Faturas em atraso - OmniCare", body, false)
}

// FormatBRL formata centavos como "R$ 1.234,56".
func FormatBRL(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	reais := fmt.Sprintf("%d", cents/100)
	var grouped []byte
	for i, c := range []byte(reais) {
		if i > 0 && (len(reais)-i)%3 == 0 {
			grouped = append(grouped, '.')
		}
		grouped = append(grouped, c)
	}
	out := fmt.Sprintf("R$ %s,%02d", grouped, cents%100)
	if neg {
		out = "-" + out
	}
	return out
}
