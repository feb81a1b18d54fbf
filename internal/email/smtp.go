package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"sort"
	"strconv"
	"text/template"

	"github.com/rs/zerolog"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	FromName string
	FromAddr string
}

// Sender envia e-mails via SMTP. sendMail é trocado nos testes.
type Sender struct {
	cfg      Config
	log      zerolog.Logger
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSender(cfg Config, log zerolog.Logger) *Sender {
	return &Sender{cfg: cfg, log: log.With().Str("component", "email").Logger(), sendMail: smtp.SendMail}
}

func (s *Sender) addr() string {
	port := s.cfg.Port
	if port == 0 {
		port = 25
	}
	return fmt.Sprintf("%s:%d", s.cfg.Host, port)
}

func (s *Sender) from() string {
	if s.cfg.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddr)
	}
	return s.cfg.FromAddr
}

func (s *Sender) check(to string) error {
	if to == "" {
		return fmt.Errorf("destinatário de e-mail vazio")
	}
	if s.cfg.Host == "" || s.cfg.FromAddr == "" {
		s.log.Error().Msg("SMTP host ou remetente não configurado")
		return fmt.Errorf("SMTP host ou remetente não configurado")
	}
	return nil
}

// authForSend returns nil when User is empty (e.g. MailHog), so no AUTH is sent.
func (s *Sender) authForSend() smtp.Auth {
	if s.cfg.User != "" {
		return smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	return nil
}

func (s *Sender) Send(to, subject, body string, html bool) error {
	if err := s.check(to); err != nil {
		return err
	}
	headers := map[string]string{
		"From":         s.from(),
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/plain; charset=UTF-8",
	}
	if html {
		headers["Content-Type"] = "text/html; charset=UTF-8"
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for _, k := range keys {
		buf.WriteString(k + ": " + headers[k] + "\r\n")
	}
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return s.deliver(to, subject, buf.Bytes())
}

func (s *Sender) SendWithAttachment(to, subject, body, attachmentName string, attachmentPDF []byte) error {
	if err := s.check(to); err != nil {
		return err
	}
	boundary := "boundary-omnicare-pdf"
	var buf bytes.Buffer
	buf.WriteString("From: " + s.from() + "\r\n")
	buf.WriteString("To: " + to + "\r\n")
	buf.WriteString("Subject: " + subject + "\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: multipart/mixed; boundary=" + boundary + "\r\n\r\n")
	buf.WriteString("--" + boundary + "\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n--" + boundary + "\r\n")
	buf.WriteString("Content-Type: application/pdf; name=\"" + attachmentName + "\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	buf.WriteString("Content-Disposition: attachment; filename=\"" + attachmentName + "\"\r\n\r\n")
	// RFC 2045: linhas base64 de no máximo 76 caracteres
	encoded := base64.StdEncoding.EncodeToString(attachmentPDF)
	const lineLen = 76
	for i := 0; i < len(encoded); i += lineLen {
		end := i + lineLen
		if end > len(encoded) {
			end = len(encoded)
		}
		buf.WriteString(encoded[i:end] + "\r\n")
	}
	buf.WriteString("\r\n--" + boundary + "--\r\n")
	return s.deliver(to, subject, buf.Bytes())
}

func (s *Sender) deliver(to, subject string, msg []byte) error {
	if err := s.sendMail(s.addr(), s.authForSend(), s.cfg.FromAddr, []string{to}, msg); err != nil {
		s.log.Error().Err(err).Str("to", to).Str("subject", subject).Msg("falha ao enviar")
		return err
	}
	s.log.Info().Str("to", to).Str("subject", subject).Msg("enviado")
	return nil
}

func render(tpl string, data interface{}) (string, error) {
	t, err := template.New("").Parse(tpl)
	if err != nil {
		return "", err
	}
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

const passwordResetTpl = `Olá,

Você solicitou a redefinição de senha. Clique no link abaixo (válido por 1 hora):

{{.ResetURL}}

Se você não solicitou isso, ignore este e-mail.`

func (s *Sender) SendPasswordReset(to, resetURL string) error {
	if resetURL == "" {
		return fmt.Errorf("resetURL vazio")
	}
	body, err := render(passwordResetTpl, map[string]string{"ResetURL": resetURL})
	if err != nil {
		return err
	}
	return s.Send(to, "Redefinição de senha - OmniCare", body, false)
}

// LogConfigSummary loga um resumo da config SMTP (sem senha) para diagnóstico.
func (s *Sender) LogConfigSummary() {
	ev := s.log.Info().Str("host", s.cfg.Host).Int("port", s.cfg.Port).Str("from", s.cfg.FromAddr).Bool("auth", s.cfg.User != "")
	ev.Msg("config SMTP")
	if s.cfg.Host == "" || s.cfg.FromAddr == "" {
		s.log.Warn().Msg("host ou from vazio; envios podem falhar")
	}
}

func PortFromString(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
