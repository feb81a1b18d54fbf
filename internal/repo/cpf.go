package repo

// EncryptedCPF são as colunas cpf_* de patients e professionals.
// Nil limpa o CPF.
type EncryptedCPF struct {
	Ciphertext []byte
	Nonce      []byte
	KeyVersion string
	Hash       string
}

func (c *EncryptedCPF) columns() map[string]interface{} {
	if c == nil {
		return map[string]interface{}{
			"cpf_encrypted": nil, "cpf_nonce": nil, "cpf_key_version": nil, "cpf_hash": nil,
		}
	}
	return map[string]interface{}{
		"cpf_encrypted": c.Ciphertext, "cpf_nonce": c.Nonce, "cpf_key_version": c.KeyVersion, "cpf_hash": c.Hash,
	}
}
