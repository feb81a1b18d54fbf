package crypto

import (
	"regexp"
)

var nonDigits = regexp.MustCompile(`[^0-9]`)

// NormalizeCPF remove tudo que não for dígito.
func NormalizeCPF(cpf string) string {
	return nonDigits.ReplaceAllString(cpf, "")
}

// ValidCPF confere tamanho (11), rejeita sequências repetidas e valida os dois dígitos verificadores.
func ValidCPF(cpf string) bool {
	d := NormalizeCPF(cpf)
	if len(d) != 11 {
		return false
	}
	allSame := true
	for i := 1; i < 11; i++ {
		if d[i] != d[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}
	return cpfCheckDigit(d[:9], 10) == int(d[9]-'0') && cpfCheckDigit(d[:10], 11) == int(d[10]-'0')
}

func cpfCheckDigit(digits string, weight int) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * (weight - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}

// FormatCPF devolve 000.000.000-00; entradas inválidas voltam normalizadas.
func FormatCPF(cpf string) string {
	d := NormalizeCPF(cpf)
	if len(d) != 11 {
		return d
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

// CPFHash retorna SHA-256 do CPF normalizado em hex (usado para unicidade por clínica sem expor o CPF).
func CPFHash(cpfNormalized string) string {
	return SHA256Hex([]byte(cpfNormalized))
}
