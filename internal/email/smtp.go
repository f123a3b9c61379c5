package email

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/liyao/tapd-feishu-sync/internal/config"
)

// SMTPSender delivers messages over SMTP. Message-Ids are generated
// locally so the caller gets one even when the server assigns none.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

// NewSMTPSender creates an SMTP-backed sender
func NewSMTPSender(cfg config.SMTPConfig, logger *zap.Logger) *SMTPSender {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	dialer.SSL = cfg.Secure

	logger.Info("mail transport initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Bool("secure", cfg.Secure),
		zap.String("user", cfg.User))

	return &SMTPSender{
		dialer: dialer,
		from:   cfg.FromEmail,
		logger: logger,
	}
}

// Send composes and delivers the message, returning its message id.
func (s *SMTPSender) Send(_ context.Context, msg *Message) (string, error) {
	messageID := s.newMessageID()

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-Id", messageID)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	if msg.AttachmentName != "" {
		data := msg.AttachmentData
		m.Attach(msg.AttachmentName, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("smtp send failed: %w", err)
	}

	return messageID, nil
}

// TestConnection dials the SMTP server as a liveness probe; it never
// returns an error.
func (s *SMTPSender) TestConnection(_ context.Context) bool {
	closer, err := s.dialer.Dial()
	if err != nil {
		s.logger.Error("SMTP connection test failed", zap.Error(err))
		return false
	}
	closer.Close()
	return true
}

// newMessageID builds an RFC 5322 style message id from the sender domain.
func (s *SMTPSender) newMessageID() string {
	domain := "localhost"
	if at := strings.LastIndex(s.from, "@"); at >= 0 && at+1 < len(s.from) {
		domain = s.from[at+1:]
	}

	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("<%d@%s>", time.Now().UnixNano(), domain)
	}
	return fmt.Sprintf("<%d.%s@%s>", time.Now().UnixNano(), hex.EncodeToString(buf), domain)
}
