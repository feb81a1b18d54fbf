package api

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mdnsystems/OmniCare-sub005/internal/crypto"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
)

var (
	ErrInvalidEmail   = errors.New("invalid email")
	ErrInvalidCPF     = errors.New("invalid cpf")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidCEP     = errors.New("invalid cep")
	ErrInvalidCNPJ    = errors.New("invalid cnpj")
	ErrInvalidUF      = errors.New("invalid uf")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidPhone   = errors.New("invalid phone")
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const dateLayout = "2006-01-02"

var ufs = map[string]bool{
	"AC": true, "AL": true, "AP": true, "AM": true, "BA": true, "CE": true, "DF": true,
	"ES": true, "GO": true, "MA": true, "MT": true, "MS": true, "MG": true, "PA": true,
	"PB": true, "PR": true, "PE": true, "PI": true, "RJ": true, "RN": true, "RS": true,
	"RO": true, "RR": true, "SC": true, "SP": true, "SE": true, "TO": true,
}

// ValidateEmailRegex valida formato de e-mail com o regex padrão do backend.
func ValidateEmailRegex(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidCEP aceita 8 dígitos, com ou sem máscara.
func ValidCEP(cep string) bool {
	return len(onlyDigits(cep)) == 8
}

func ValidUF(uf string) bool {
	return ufs[strings.ToUpper(strings.TrimSpace(uf))]
}

// ValidPhone aceita de 10 a 13 dígitos (DDD + número, opcionalmente com DDI 55).
func ValidPhone(phone string) bool {
	n := len(onlyDigits(phone))
	return n >= 10 && n <= 13
}

// ParseDate interpreta YYYY-MM-DD; vazio devolve nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return &t, nil
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var validate = newValidator()

// newValidator registra as tags cpf, cnpj, cep, uf, phone, date e emailrx. Campos vazios
// passam; obrigatoriedade fica a cargo de "required".
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	optional := func(fn func(string) bool) validator.Func {
		return func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			return s == "" || fn(s)
		}
	}
	_ = v.RegisterValidation("cpf", optional(crypto.ValidCPF))
	_ = v.RegisterValidation("cep", optional(ValidCEP))
	_ = v.RegisterValidation("cnpj", optional(func(s string) bool { return len(onlyDigits(s)) == 14 }))
	_ = v.RegisterValidation("uf", optional(ValidUF))
	_ = v.RegisterValidation("phone", optional(ValidPhone))
	_ = v.RegisterValidation("emailrx", optional(func(s string) bool { return emailRegex.MatchString(s) }))
	_ = v.RegisterValidation("date", optional(func(s string) bool {
		_, err := time.Parse(dateLayout, s)
		return err == nil
	}))
	return v
}

var tagErrors = map[string]error{
	"cpf":     ErrInvalidCPF,
	"cep":     ErrInvalidCEP,
	"cnpj":    ErrInvalidCNPJ,
	"uf":      ErrInvalidUF,
	"phone":   ErrInvalidPhone,
	"emailrx": ErrInvalidEmail,
	"date":    ErrInvalidDate,
}

// validateStruct devolve o primeiro erro em forma legível ("invalid cpf", "full_name required").
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return err
	}
	fe := ves[0]
	if e, ok := tagErrors[fe.Tag()]; ok {
		return e
	}
	if fe.Tag() == "required" {
		return errors.New(fe.Field() + " required")
	}
	return errors.New("invalid " + fe.Field())
}

// AddressInput é o endereço brasileiro usado por clínicas e pacientes.
type AddressInput struct {
	Zip          string `json:"zip" validate:"required,cep"`
	Street       string `json:"street" validate:"required,max=200"`
	Number       string `json:"number" validate:"max=20"`
	Complement   string `json:"complement" validate:"max=100"`
	Neighborhood string `json:"neighborhood" validate:"required,max=100"`
	City         string `json:"city" validate:"required,max=100"`
	State        string `json:"state" validate:"required,uf"`
}

// ValidateAddress valida os campos obrigatórios, CEP com 8 dígitos e UF conhecida.
func ValidateAddress(a *AddressInput) error {
	if a == nil {
		return ErrInvalidAddress
	}
	if err := validateStruct(a); err != nil {
		if errors.Is(err, ErrInvalidCEP) || errors.Is(err, ErrInvalidUF) {
			return err
		}
		return ErrInvalidAddress
	}
	return nil
}

func (a *AddressInput) toRepo() *repo.Address {
	return &repo.Address{
		Zip:          onlyDigits(a.Zip),
		Street:       strings.TrimSpace(a.Street),
		Number:       strPtr(a.Number),
		Complement:   strPtr(a.Complement),
		Neighborhood: strings.TrimSpace(a.Neighborhood),
		City:         strings.TrimSpace(a.City),
		State:        strings.ToUpper(strings.TrimSpace(a.State)),
	}
}

// AddressOutput é a forma de resposta de repo.Address.
type AddressOutput struct {
	Zip          string `json:"zip"`
	Street       string `json:"street"`
	Number       string `json:"number,omitempty"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
}

func addressOutput(a *repo.Address) *AddressOutput {
	if a == nil {
		return nil
	}
	return &AddressOutput{
		Zip: a.Zip, Street: a.Street, Number: strFromPtr(a.Number), Complement: strFromPtr(a.Complement),
		Neighborhood: a.Neighborhood, City: a.City, State: a.State,
	}
}
