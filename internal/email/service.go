// Package email sends transactional mail (verification, workspace invites)
// via SMTP. When SMTP is not configured every send is a logged no-op.
package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"handbook/api/internal/logger"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		logger.Sugar.Infof("email: not configured, skipping %q to %s", subject, strings.Join(to, ","))
		return nil
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/plain; charset=\"UTF-8\"\r\n"+
			"\r\n%s\r\n",
		strings.Join(to, ","), from, subject, body))

	if err := smtp.SendMail(s.server, s.auth, s.config.From, to, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// SendVerificationEmail delivers the email-verification token minted at signup.
func (s *Service) SendVerificationEmail(to, displayName, token string) error {
	subject := "Verify your Handbook account"
	body := fmt.Sprintf(
		"Hi %s,\n\nWelcome to Handbook. Use this code to verify your email address:\n\n    %s\n\nThe code expires in 24 hours.\n",
		displayName, token)
	return s.SendEmail([]string{to}, subject, body)
}

// SendWorkspaceInvite notifies a user that they were added to a workspace.
func (s *Service) SendWorkspaceInvite(to, workspaceName, role, invitedBy string) error {
	subject := fmt.Sprintf("You were added to %s", workspaceName)
	body := fmt.Sprintf(
		"%s added you to the workspace %q as %s.\n\nSign in to start collaborating.\n",
		invitedBy, workspaceName, role)
	return s.SendEmail([]string{to}, subject, body)
}
