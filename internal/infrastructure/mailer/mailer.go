package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTP delivers notification mail through a plain SMTP relay. It implements
// the dispatch Mailer port.
type SMTP struct {
	Addr string
	From string
}

// New creates an SMTP mailer. addr is host:port of the relay.
func New(addr, from string) *SMTP {
	return &SMTP{Addr: addr, From: from}
}

// Send delivers one message. High-priority messages carry the urgency
// headers mail clients surface for admin alerts.
func (m *SMTP) Send(ctx context.Context, to, subject, body string, highPriority bool) error {
	if m.Addr == "" {
		return fmt.Errorf("smtp relay not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	if highPriority {
		msg.WriteString("X-Priority: 1\r\n")
		msg.WriteString("Importance: high\r\n")
	}
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	return smtp.SendMail(m.Addr, nil, m.From, []string{to}, []byte(msg.String()))
}
