package billing

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
)

const WarningHeader = "X-Billing-Warning"

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Guard aplica o nível de bloqueio do tenant resolvido. Rotas cujo path começa com
// um dos exempt (faturamento, autenticação) sempre passam, para que a clínica consiga pagar.
// Deve rodar depois do middleware de tenant.
func Guard(exempt ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := tenant.FromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			level, ok := ParseLevel(info.BlockLevel)
			if !ok {
				level = LevelNone
			}
			// aviso em qualquer nível acima de NONE, inclusive nas rotas liberadas
			if level != LevelNone {
				w.Header().Set(WarningHeader, "overdue")
			}
			for _, p := range exempt {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			switch {
			case level == LevelBlocked:
				deny(w, "clinic blocked for overdue billing", level)
				return
			case level == LevelRestriction && isWrite(r.Method):
				deny(w, "clinic restricted to read-only for overdue billing", level)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, msg string, level Level) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "block_level": string(level)})
}
