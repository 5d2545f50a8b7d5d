package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

var (
	// ErrEmptyRecipient is returned by every Notifier for a blank recipient address.
	ErrEmptyRecipient = errors.New("recipient must not be empty")

	// ErrEmptySMTPAddress is returned by NewSMTPNotifier when no relay is given.
	ErrEmptySMTPAddress = errors.New("smtp address must not be empty")
)

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPNotifier sends notices through an SMTP relay.
type SMTPNotifier struct {
	from     string
	username string
	password string
	sender   mailSender
	clock    func() time.Time
}

// SMTPOption configures an SMTPNotifier.
type SMTPOption func(*SMTPNotifier)

// WithPlainAuth authenticates with username and password; skipped when username is empty.
func WithPlainAuth(username, password string) SMTPOption {
	return func(n *SMTPNotifier) {
		n.username = username
		n.password = password
	}
}

// NewSMTPNotifier creates a notifier that relays through addr (host:port) with the given sender.
// STARTTLS is used when the relay offers it.
func NewSMTPNotifier(addr, from string, options ...SMTPOption) (*SMTPNotifier, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, ErrEmptySMTPAddress
	}

	host, portText, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp address %q: %w", addr, err)
	}

	port, err := strconv.Atoi(portText)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp port %q: %w", portText, err)
	}

	if err := mail.NewMsg().From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}

	n := &SMTPNotifier{
		from:  from,
		clock: time.Now,
	}

	for _, option := range options {
		option(n)
	}

	clientOptions := []mail.Option{
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithPort(port),
	}

	if n.username != "" {
		clientOptions = append(clientOptions,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.username),
			mail.WithPassword(n.password),
		)
	}

	client, err := mail.NewClient(host, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	n.sender = client

	return n, nil
}

// Send delivers one plain text message.
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return ErrEmptyRecipient
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := mail.NewMsg()

	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("invalid sender %q: %w", n.from, err)
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	msg.Subject(subject)
	msg.SetDateWithValue(n.clock())
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	return nil
}
