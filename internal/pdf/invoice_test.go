package pdf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInvoicePDF(t *testing.T) {
	doc := InvoiceDoc{
		Number:          "2026-10-0001",
		ClinicName:      "Clínica São José",
		ClinicCNPJ:      "11.222.333/0001-81",
		ReferenceMonth:  "2026-10",
		Description:     "Mensalidade",
		Amount:          "R$ 199,90",
		DueDate:         "10/10/2026",
		Status:          "OVERDUE",
		VerificationURL: "https://app.example.com/billing/invoices/abc",
	}
	b, err := BuildInvoicePDF(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))

	var buf bytes.Buffer
	require.NoError(t, WriteInvoicePDF(doc, &buf))
	assert.NotZero(t, buf.Len())
}

func TestBuildInvoicePDFWithoutQR(t *testing.T) {
	b, err := BuildInvoicePDF(InvoiceDoc{Number: "1", ClinicName: "X", Amount: "R$ 1,00", Status: "PAID", PaidAt: "01/10/2026"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Vencida", StatusLabel("OVERDUE"))
	assert.Equal(t, "Paga", StatusLabel("PAID"))
	assert.Equal(t, "OTHER", StatusLabel("OTHER"))
}
