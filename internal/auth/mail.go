// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/samber/oops"
)

// Message is an outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers outbound email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Link paths appended to the application URL.
const (
	VerifyEmailPath   = "/auth/verify-email/"
	ResetPasswordPath = "/auth/reset-password/"
)

var (
	verifyTemplate = template.Must(template.New("verify").Parse(`Hi {{.Name}},

Please confirm your email address by opening the link below:

{{.Link}}

The link expires in {{.TTL}}. If you did not create an account you can ignore this message.
`))

	resetTemplate = template.Must(template.New("reset").Parse(`Hi {{.Name}},

Someone asked to reset the password for this account. Open the link below to choose a new password:

{{.Link}}

The link expires in {{.TTL}} and works once. If you did not ask for a reset you can ignore this message.
`))
)

type mailData struct {
	Name string
	Link string
	TTL  string
}

// VerificationMessage builds the email carrying an email verification link.
func VerificationMessage(appURL string, account *Account, plaintext string, ttl time.Duration) (Message, error) {
	body, err := render(verifyTemplate, mailData{
		Name: displayName(account),
		Link: strings.TrimRight(appURL, "/") + VerifyEmailPath + plaintext,
		TTL:  humanDuration(ttl),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: account.Email, Subject: "Confirm your email address", Body: body}, nil
}

// ResetMessage builds the email carrying a password reset link.
func ResetMessage(appURL string, account *Account, plaintext string, ttl time.Duration) (Message, error) {
	body, err := render(resetTemplate, mailData{
		Name: displayName(account),
		Link: strings.TrimRight(appURL, "/") + ResetPasswordPath + plaintext,
		TTL:  humanDuration(ttl),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: account.Email, Subject: "Reset your password", Body: body}, nil
}

func render(t *template.Template, data mailData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", oops.Code("MAIL_RENDER_FAILED").With("template", t.Name()).Wrap(err)
	}
	return buf.String(), nil
}

func displayName(a *Account) string {
	if name := FullName(a.Profile); name != "" {
		return name
	}
	return a.Email
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
