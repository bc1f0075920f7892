// Package notify отправляет письма клиентам: Mailgun, SMTP или заглушка.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Notifier отправляет одно HTML-письмо.
type Notifier interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Message описывает письмо, ожидающее отправки.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// NopNotifier только пишет в лог, что отправка пропущена.
type NopNotifier struct {
	logger *zap.Logger
}

// NewNopNotifier создаёт заглушку для окружений без почтовых настроек.
func NewNopNotifier(logger *zap.Logger) *NopNotifier {
	return &NopNotifier{logger: logger}
}

// Send пропускает отправку.
func (n *NopNotifier) Send(_ context.Context, to, subject, _ string) error {
	n.logger.Warn("mail configuration missing, skipping email",
		zap.String("to", to), zap.String("subject", subject))
	return nil
}

// SMTPSender отправляет письма через SMTP-сервер.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender создаёт отправителя для указанного SMTP-сервера.
func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

// Send отправляет письмо. gomail не принимает контекст, поэтому отмена
// проверяется только до подключения.
func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// StatusChangedMessage формирует письмо о смене статуса позиции заказа.
func StatusChangedMessage(to, username, orderID, serviceName, status string) Message {
	short := orderID
	if len(short) > 8 {
		short = short[:8]
	}

	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your WashWise Order #%s Has Been Updated!", short),
		HTML: fmt.Sprintf(
			"<html><body><p>Hi %s,</p><p>The status of your <strong>%s</strong> service is now: <strong>%s</strong>.</p></body></html>",
			username, serviceName, strings.ToUpper(strings.ReplaceAll(status, "_", " ")),
		),
	}
}

// PasswordResetMessage формирует письмо со ссылкой на сброс пароля.
func PasswordResetMessage(to, username, link string) Message {
	return Message{
		To:      to,
		Subject: "Your WashWise Password Reset Request",
		HTML: fmt.Sprintf(
			"<p>Hi %s,</p><p>Click <a href='%s'>here</a> to reset your password.</p><p>Link expires in 15 minutes.</p>",
			username, link,
		),
	}
}
