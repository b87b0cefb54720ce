package core

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"net/mail"
)

type (
	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		Body        string // text/plain
		Attachments []Attachment
	}

	// EmailService is any service that can send emails
	EmailService interface {
		SendMessages(messages ...*EmailMessage) error
	}
)

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	at := Attachment{Content: new(bytes.Buffer), Filename: filename}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return m.Body != "" }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }
