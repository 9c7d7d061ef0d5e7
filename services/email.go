package services

import (
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailService delivers collaborator invitations. Delivery is best-effort;
// callers fire and forget.
type EmailService interface {
	SendInvitation(toEmail, inviterName, planLink string) error
}

type SendGridEmailService struct {
	apiKey    string
	fromName  string
	fromEmail string
}

func NewSendGridEmailService(apiKey, fromName, fromEmail string) *SendGridEmailService {
	return &SendGridEmailService{apiKey: apiKey, fromName: fromName, fromEmail: fromEmail}
}

func (s *SendGridEmailService) SendInvitation(toEmail, inviterName, planLink string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("", toEmail)
	subject := fmt.Sprintf("%s invited you to a study plan", inviterName)
	plain := fmt.Sprintf("%s invited you to collaborate on a study plan. Open it here: %s", inviterName, planLink)
	html := fmt.Sprintf("<p>%s invited you to collaborate on a study plan.</p><p><a href=%q>Open the plan</a></p>", inviterName, planLink)

	message := mail.NewSingleEmail(from, subject, to, plain, html)
	client := sendgrid.NewSendClient(s.apiKey)

	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}

// ConsoleEmailService logs instead of sending. Used when no SendGrid key is
// configured (local development, tests).
type ConsoleEmailService struct {
	Logger *log.Logger
}

func NewConsoleEmailService(logger *log.Logger) *ConsoleEmailService {
	return &ConsoleEmailService{Logger: logger}
}

func (s *ConsoleEmailService) SendInvitation(toEmail, inviterName, planLink string) error {
	if s.Logger != nil {
		s.Logger.Printf("invitation email to %s from %s: %s", toEmail, inviterName, planLink)
	}
	return nil
}
