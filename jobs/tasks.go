package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// MailSender delivers a rendered message.
type MailSender interface {
	Send(ctx context.Context, msg SendEmailPayload) error
}

// SMTPSender delivers mail through a plain SMTP relay such as Mailpit.
type SMTPSender struct {
	Host string
	Port int
	From string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender constructs an SMTPSender.
func NewSMTPSender(host string, port int, from string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, From: from, send: smtp.SendMail}
}

// Send implements MailSender.
func (s *SMTPSender) Send(ctx context.Context, msg SendEmailPayload) error {
	if s == nil || s.Host == "" {
		return errors.New("smtp sender: host not configured")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	addr := s.Host + ":" + strconv.Itoa(s.Port)
	return s.send(addr, nil, s.From, []string{msg.To}, []byte(b.String()))
}

// EmailJob handles TaskTypeSendEmail tasks.
type EmailJob struct {
	Sender MailSender
	Logger *slog.Logger
}

// Handle processes TaskTypeSendEmail tasks. Malformed payloads are not retried.
func (j *EmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.To == "" {
		return fmt.Errorf("send email: recipient required: %w", asynq.SkipRetry)
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if j.Sender == nil {
		logger.Info("mail sender not configured, dropping message", slog.String("to", payload.To), slog.String("subject", payload.Subject))
		return nil
	}
	if err := j.Sender.Send(ctx, payload); err != nil {
		logger.Warn("send email", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	return nil
}
