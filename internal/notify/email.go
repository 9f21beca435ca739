package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"fxwatch/internal/domain"
)

const defaultResendURL = "https://api.resend.com/emails"

// EmailConfig configures the newsletter mailer. Resend is tried first when an
// API key is set; SMTP is the fallback when a host is set.
type EmailConfig struct {
	To           []string
	From         string
	ResendAPIKey string
	ResendURL    string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
}

// Email sends newsletters through Resend, falling back to SMTP.
type Email struct {
	cfg  EmailConfig
	http *http.Client
	log  logrus.FieldLogger
}

func NewEmail(cfg EmailConfig, httpClient *http.Client, logger logrus.FieldLogger) *Email {
	if cfg.ResendURL == "" {
		cfg.ResendURL = defaultResendURL
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Email{cfg: cfg, http: httpClient, log: logger.WithField("component", "email")}
}

func (e *Email) Send(ctx context.Context, subject, html string) error {
	recipient := strings.Join(e.cfg.To, ",")
	if len(e.cfg.To) == 0 {
		return &domain.DeliveryError{Channel: ChannelEmail, Recipient: recipient, Err: errors.New("no recipients configured")}
	}

	var errs []error
	if e.cfg.ResendAPIKey != "" {
		err := e.sendResend(ctx, subject, html)
		if err == nil {
			e.log.WithField("recipients", len(e.cfg.To)).Info("Newsletter sent via Resend")
			return nil
		}
		e.log.WithError(err).Warn("Resend failed")
		errs = append(errs, err)
	}
	if e.cfg.SMTPHost != "" {
		err := e.sendSMTP(ctx, subject, html)
		if err == nil {
			e.log.WithField("recipients", len(e.cfg.To)).Info("Newsletter sent via SMTP")
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("neither Resend nor SMTP is configured"))
	}
	return &domain.DeliveryError{Channel: ChannelEmail, Recipient: recipient, Err: errors.Join(errs...)}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (e *Email) sendResend(ctx context.Context, subject, html string) error {
	body, err := json.Marshal(resendRequest{From: e.cfg.From, To: e.cfg.To, Subject: subject, HTML: html})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.ResendURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+e.cfg.ResendAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("resend request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("resend: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (e *Email) sendSMTP(ctx context.Context, subject, html string) error {
	conn, err := e.dialSMTP(ctx)
	if err != nil {
		return smtpError(ctx, fmt.Errorf("SMTP connect failed: %w", err))
	}
	// Closing the connection unblocks any pending read once ctx is done.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := e.converse(conn, subject, html); err != nil {
		return smtpError(ctx, err)
	}
	return nil
}

// smtpError reports the context error instead of the I/O failure it caused.
func smtpError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("SMTP: %w", ctxErr)
	}
	return err
}

// dialSMTP opens the transport: implicit TLS on port 465, plain TCP
// otherwise (upgraded by STARTTLS in converse).
func (e *Email) dialSMTP(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(e.cfg.SMTPHost, strconv.Itoa(e.cfg.SMTPPort))
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if e.cfg.SMTPPort != 465 {
		return conn, nil
	}
	tlsConn := tls.Client(conn, &tls.Config{ServerName: e.cfg.SMTPHost})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("TLS handshake %s: %w", addr, err)
	}
	return tlsConn, nil
}

func (e *Email) converse(conn net.Conn, subject, html string) error {
	client, err := smtp.NewClient(conn, e.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTP client: %w", err)
	}
	defer client.Close()

	if _, isTLS := conn.(*tls.Conn); !isTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: e.cfg.SMTPHost}); err != nil {
				return fmt.Errorf("STARTTLS: %w", err)
			}
		}
	}
	if e.cfg.SMTPUser != "" {
		auth := smtp.PlainAuth("", e.cfg.SMTPUser, e.cfg.SMTPPassword, e.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}
	from := envelopeAddress(e.cfg.From)
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	for _, to := range e.cfg.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", to, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := w.Write(buildMIME(e.cfg.From, e.cfg.To, subject, html)); err != nil {
		return fmt.Errorf("SMTP write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("SMTP close data: %w", err)
	}
	return client.Quit()
}

// envelopeAddress extracts "a@b" from "Name <a@b>".
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return strings.TrimSpace(from)
}

func encodeRFC2047(s string) string {
	return "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(s)) + "?="
}

func buildMIME(from string, to []string, subject, html string) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&sb, "Subject: %s\r\n", encodeRFC2047(subject))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	sb.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

	encoded := base64.StdEncoding.EncodeToString([]byte(html))
	for len(encoded) > 76 {
		sb.WriteString(encoded[:76] + "\r\n")
		encoded = encoded[76:]
	}
	sb.WriteString(encoded + "\r\n")
	return []byte(sb.String())
}
