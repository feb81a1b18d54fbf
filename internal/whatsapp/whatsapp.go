package whatsapp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.twilio.com/2010-04-01"

// Config holds credentials for sending WhatsApp messages (Twilio).
// From is the Twilio WhatsApp number (e.g. whatsapp:+14155238886).
type Config struct {
	AccountSid string
	AuthToken  string
	From       string
	// BaseURL troca a API da Twilio (testes); vazio usa a produção.
	BaseURL string
}

func (c Config) Enabled() bool {
	return c.AccountSid != "" && c.AuthToken != "" && c.From != ""
}

// Reminder é o conteúdo do lembrete de consulta.
type Reminder struct {
	PatientName string
	ClinicName  string
	Date        string // 02/01/2006
	Time        string // 15:04
}

func (r Reminder) Text() string {
	return fmt.Sprintf("Olá, %s! Lembrete: você tem consulta em %s no dia %s às %s. Confirme sua presença se possível.",
		r.PatientName, r.ClinicName, r.Date, r.Time)
}

// Client sends WhatsApp messages via Twilio.
type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{cfg: cfg, client: &http.Client{Timeout: 15 * time.Second}}
}

// SendReminder envia o lembrete; sem credenciais é no-op e devolve nil.
func (c *Client) SendReminder(ctx context.Context, phone string, r Reminder) error {
	if !c.cfg.Enabled() {
		return nil
	}
	return c.send(ctx, phone, r.Text())
}

// E164 normaliza telefones brasileiros: só dígitos, com DDI 55 quando ausente.
func E164(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if d == "" {
		return ""
	}
	if len(d) <= 11 {
		d = "55" + d
	}
	return "+" + d
}

func (c *Client) send(ctx context.Context, phone, body string) error {
	to := E164(phone)
	if to == "" {
		return fmt.Errorf("whatsapp: destinatário vazio")
	}
	from := c.cfg.From
	if !strings.HasPrefix(from, "whatsapp:") {
		from = "whatsapp:" + from
	}
	form := url.Values{}
	form.Set("To", "whatsapp:"+to)
	form.Set("From", from)
	form.Set("Body", body)
	reqURL := fmt.Sprintf("%s/Accounts/%s/Messages.json", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.AccountSid)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSid, c.cfg.AuthToken)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	slurp, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("whatsapp: %s: read body: %w", resp.Status, err)
	}
	return fmt.Errorf("whatsapp: %s: %s", resp.Status, string(slurp))
}
