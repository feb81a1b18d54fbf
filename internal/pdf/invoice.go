package pdf

import (
	"bytes"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"
)

// InvoiceDoc dados impressos na fatura. Valores já formatados para exibição.
type InvoiceDoc struct {
	Number         string
	ClinicName     string
	ClinicCNPJ     string
	ReferenceMonth string
	Description    string
	Amount         string
	DueDate        string
	Status         string
	PaidAt         string
	IssuedAt       string
	// VerificationURL vira QR code no rodapé; vazio omite o QR.
	VerificationURL string
}

var statusLabels = map[string]string{
	"PENDING":   "Em aberto",
	"OVERDUE":   "Vencida",
	"PAID":      "Paga",
	"CANCELLED": "Cancelada",
}

func StatusLabel(status string) string {
	if l, ok := statusLabels[status]; ok {
		return l
	}
	return status
}

// BuildInvoicePDF gera a fatura em A4 com tabela de dados e QR de verificação.
func BuildInvoicePDF(doc InvoiceDoc) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle("Fatura "+doc.Number, true)
	pdf.SetCreator("OmniCare", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "OmniCare - Fatura", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, tr("Nº "+doc.Number), "", 1, "L", false, 0, "")
	if doc.IssuedAt != "" {
		pdf.CellFormat(0, 5, tr("Emitida em "+doc.IssuedAt), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, tr("Clínica"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(doc.ClinicName), "", 1, "L", false, 0, "")
	if doc.ClinicCNPJ != "" {
		pdf.CellFormat(0, 6, "CNPJ: "+doc.ClinicCNPJ, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	rows := [][2]string{
		{"Referência", doc.ReferenceMonth},
		{"Descrição", doc.Description},
		{"Vencimento", doc.DueDate},
		{"Situação", StatusLabel(doc.Status)},
	}
	if doc.PaidAt != "" {
		rows = append(rows, [2]string{"Pago em", doc.PaidAt})
	}
	pdf.SetFillColor(240, 240, 240)
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(45, 8, tr(row[0]), "1", 0, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 8, tr(row[1]), "1", 1, "L", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(45, 10, "Total", "1", 0, "L", true, 0, "")
	pdf.CellFormat(0, 10, tr(doc.Amount), "1", 1, "R", false, 0, "")
	pdf.Ln(8)

	if doc.VerificationURL != "" {
		if png, err := qrcode.Encode(doc.VerificationURL, qrcode.Medium, 128); err == nil {
			opt := fpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader("qr", opt, bytes.NewReader(png))
			pdf.ImageOptions("qr", 15, pdf.GetY(), 30, 30, false, opt, 0, "")
			pdf.SetY(pdf.GetY() + 32)
		}
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 5, tr("Consulte esta fatura: "+doc.VerificationURL), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteInvoicePDF escreve o PDF no writer (resposta HTTP ou arquivo).
func WriteInvoicePDF(doc InvoiceDoc, w io.Writer) error {
	b, err := BuildInvoicePDF(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
