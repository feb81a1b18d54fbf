package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmailRegex(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"a@b.com", true},
		{"a+b@b.com.br", true},
		{"", false},
		{"   ", false},
		{"a@", false},
		{"@b.com", false},
		{"a@b", false},
		{"a b@c.com", false},
	}
	for _, c := range cases {
		err := ValidateEmailRegex(c.in)
		if (err == nil) != c.want {
			t.Fatalf("email=%q wantOk=%v gotErr=%v", c.in, c.want, err)
		}
	}
}

func TestValidCEPUFPhone(t *testing.T) {
	assert.True(t, ValidCEP("89200-000"))
	assert.True(t, ValidCEP("89200000"))
	assert.False(t, ValidCEP("1234567"))
	assert.False(t, ValidCEP(""))

	assert.True(t, ValidUF("sc"))
	assert.True(t, ValidUF(" SP "))
	assert.False(t, ValidUF("XX"))

	assert.True(t, ValidPhone("(47) 3333-4444"))
	assert.True(t, ValidPhone("+55 47 99999-8888"))
	assert.False(t, ValidPhone("99999-8888"))
	assert.False(t, ValidPhone("55479999988881"))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = ParseDate("2026-02-28")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 28, d.Day())

	_, err = ParseDate("28/02/2026")
	assert.ErrorIs(t, err, ErrInvalidDate)
	_, err = ParseDate("2026-02-30")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestValidateAddress(t *testing.T) {
	ok := &AddressInput{Zip: "89200-000", Street: "Rua X", Neighborhood: "Centro", City: "Joinville", State: "sc"}
	require.NoError(t, ValidateAddress(ok))
	assert.Equal(t, "89200000", ok.toRepo().Zip)
	assert.Equal(t, "SC", ok.toRepo().State)

	assert.ErrorIs(t, ValidateAddress(nil), ErrInvalidAddress)

	badCEP := *ok
	badCEP.Zip = "123"
	assert.ErrorIs(t, ValidateAddress(&badCEP), ErrInvalidCEP)

	badUF := *ok
	badUF.State = "ZZ"
	assert.ErrorIs(t, ValidateAddress(&badUF), ErrInvalidUF)

	noCity := *ok
	noCity.City = ""
	assert.ErrorIs(t, ValidateAddress(&noCity), ErrInvalidAddress)
}

func TestValidateStructMessages(t *testing.T) {
	cpf := "111.111.111-11"
	err := validateStruct(&PatientRequest{FullName: "Ana", CPF: &cpf})
	assert.ErrorIs(t, err, ErrInvalidCPF)

	valid := "529.982.247-25"
	assert.NoError(t, validateStruct(&PatientRequest{FullName: "Ana", CPF: &valid}))
	assert.NoError(t, validateStruct(&PatientRequest{FullName: "Ana"}))

	err = validateStruct(&PatientRequest{})
	require.Error(t, err)
	assert.Equal(t, "full_name required", err.Error())

	assert.ErrorIs(t, validateStruct(&PatientRequest{FullName: "Ana", Email: "x@"}), ErrInvalidEmail)
	assert.ErrorIs(t, validateStruct(&PatientRequest{FullName: "Ana", BirthDate: "01/01/2000"}), ErrInvalidDate)
	assert.ErrorIs(t, validateStruct(&PatientRequest{FullName: "Ana", Phone: "123"}), ErrInvalidPhone)

	err = validateStruct(&RecordEntryRequest{Kind: "OTHER", Content: "x"})
	require.Error(t, err)
	assert.Equal(t, "invalid kind", err.Error())
}

func TestAppointmentEnd(t *testing.T) {
	start := mustTime(t, "2026-10-15T10:00:00Z")
	end, err := appointmentEnd(start, nil, 30)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15T10:30:00Z", end.Format(timeLayout))

	explicit := mustTime(t, "2026-10-15T11:00:00Z")
	end, err = appointmentEnd(start, &explicit, 30)
	require.NoError(t, err)
	assert.Equal(t, explicit, end)

	_, err = appointmentEnd(start, nil, 0)
	assert.Error(t, err)
	_, err = appointmentEnd(start, &start, 0)
	assert.ErrorIs(t, err, errInvalidInterval)
	_, err = appointmentEnd(start, nil, 13*60)
	assert.ErrorIs(t, err, errIntervalTooLong)
}

func TestAnswersJSON(t *testing.T) {
	j, ok := answersJSON(nil)
	assert.True(t, ok)
	assert.Equal(t, "{}", string(j))

	j, ok = answersJSON([]byte(` {"fuma": false} `))
	assert.True(t, ok)
	assert.JSONEq(t, `{"fuma": false}`, string(j))

	_, ok = answersJSON([]byte(`[1,2]`))
	assert.False(t, ok)
	_, ok = answersJSON([]byte(`"x"`))
	assert.False(t, ok)
}

func TestFormatCNPJ(t *testing.T) {
	assert.Equal(t, "11.222.333/0001-81", formatCNPJ("11222333000181"))
	assert.Equal(t, "123", formatCNPJ("123"))
}
