package api

import (
	"github.com/mdnsystems/OmniCare-sub005/internal/crypto"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
)

// sealCPF normaliza, cifra e calcula o hash do CPF. Vazio devolve nil (sem CPF).
func (h *Handler) sealCPF(raw string) (*repo.EncryptedCPF, error) {
	cpf := crypto.NormalizeCPF(raw)
	if cpf == "" {
		return nil, nil
	}
	if !crypto.ValidCPF(cpf) {
		return nil, ErrInvalidCPF
	}
	s, err := h.Keys.Seal([]byte(cpf))
	if err != nil {
		return nil, err
	}
	return &repo.EncryptedCPF{
		Ciphertext: s.Ciphertext,
		Nonce:      s.Nonce,
		KeyVersion: s.KeyVersion,
		Hash:       crypto.CPFHash(cpf),
	}, nil
}

// openCPF devolve o CPF formatado (000.000.000-00) ou "" quando ausente.
func (h *Handler) openCPF(ciphertext, nonce []byte, keyVersion *string) string {
	if h.Keys == nil {
		return ""
	}
	plain := h.Keys.OpenString(ciphertext, nonce, keyVersion)
	if plain == nil {
		return ""
	}
	return crypto.FormatCPF(*plain)
}
