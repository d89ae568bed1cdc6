// Package mailer delivers run reports over SMTP. Delivery is best-effort:
// a mail failure must never fail the run that produced the report.
package mailer

import (
	"errors"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/julianstephens/songday/internal/storage"
)

var ErrDisabled = errors.New("email notifications are not configured")

type Mailer struct {
	settings storage.Settings

	// sendFunc is swappable in tests.
	sendFunc func(m *gomail.Message) error
}

func New(settings storage.Settings) *Mailer {
	ml := &Mailer{settings: settings}
	ml.sendFunc = func(m *gomail.Message) error {
		d := gomail.NewDialer(settings.SMTPHost, settings.SMTPPort, settings.SMTPUser, settings.SMTPPass)
		return d.DialAndSend(m)
	}
	return ml
}

// Enabled reports whether the settings carry everything needed to deliver.
func (ml *Mailer) Enabled() bool {
	s := ml.settings
	return s.EmailEnabled && s.EmailTo != "" && s.EmailFrom != "" && s.SMTPHost != "" && s.SMTPPort > 0
}

// Send delivers a multipart plain+HTML message. Returns ErrDisabled when
// email is not configured; callers log and move on.
func (ml *Mailer) Send(subject, text, htmlBody string) error {
	if !ml.Enabled() {
		return ErrDisabled
	}

	m := gomail.NewMessage()
	m.SetHeader("From", ml.settings.EmailFrom)
	m.SetHeader("To", ml.settings.EmailTo)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", htmlBody)

	if err := ml.sendFunc(m); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// SendFailure delivers a plain-text alert for an error that escaped a
// command.
func (ml *Mailer) SendFailure(command string, runErr error) error {
	if !ml.Enabled() {
		return ErrDisabled
	}

	m := gomail.NewMessage()
	m.SetHeader("From", ml.settings.EmailFrom)
	m.SetHeader("To", ml.settings.EmailTo)
	m.SetHeader("Subject", fmt.Sprintf("songday %s failed", command))
	m.SetBody("text/plain", fmt.Sprintf("songday %s failed:\n\n%v\n", command, runErr))

	if err := ml.sendFunc(m); err != nil {
		return fmt.Errorf("failed to send failure mail: %w", err)
	}
	return nil
}
