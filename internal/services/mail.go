package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"social-backend/internal/apperr"
	"social-backend/internal/config"

	"github.com/rs/zerolog/log"
	mail "gopkg.in/mail.v2"
)

const (
	tokenBytes    = 20
	resetTokenTTL = time.Hour
)

// Message is a plain text email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers email
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends email through an SMTP relay
type SMTPSender struct {
	dialer *mail.Dialer
	from   string
}

// NewSMTPSender creates a sender from the mail config section
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &SMTPSender{
		dialer: mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   from,
	}
}

// Send implements Sender
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// MailService handles email verification and password reset
type MailService struct {
	users  UserStore
	sender Sender
	appURL string
	now    func() time.Time
}

// NewMailService creates a new mail service
func NewMailService(users UserStore, sender Sender, appURL string) *MailService {
	return &MailService{
		users:  users,
		sender: sender,
		appURL: strings.TrimSuffix(appURL, "/"),
		now:    time.Now,
	}
}

// RequestVerification mails a verification link to the user's own address
func (s *MailService) RequestVerification(ctx context.Context, userID, email string) error {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil || user.ID != userID {
		if err != nil && !isMiss(err) {
			return internal(err, "load user")
		}
		return apperr.New(apperr.Forbidden, "The email address is incorrect.")
	}

	token, err := newToken()
	if err != nil {
		return internal(err, "generate token")
	}
	if err := s.users.SetVerifyToken(ctx, user.ID, token); err != nil {
		return notFound(err, errUserNotFound, "store verify token")
	}

	err = s.sender.Send(ctx, Message{
		To:      user.Email,
		Subject: "Becoming Verified",
		Body: "You are receiving this message because you requested user verification on the account associated with this email.\n\n" +
			"Please click on the following link, or paste it into your browser to become verified:\n\n" +
			fmt.Sprintf("%s/verify/%s\n\n", s.appURL, token) +
			"If you did not request this, please ignore this email.\n",
	})
	if err != nil {
		return internal(err, "send verification email")
	}

	log.Info().Str("user_id", user.ID).Msg("Verification email sent")
	return nil
}

// ConfirmVerification marks the user verified when the token matches
func (s *MailService) ConfirmVerification(ctx context.Context, userID, token string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return notFound(err, errUserNotFound, "load user")
	}
	if user.Verified {
		return apperr.New(apperr.InvalidOperation, "You are already verified.")
	}
	if user.VerifyToken == "" {
		return apperr.New(apperr.InvalidOperation, "You have not requested to become verified.")
	}
	if user.VerifyToken != token {
		return apperr.New(apperr.Unauthorized, "Token is wrong or expired.  Please request to become verified again.")
	}

	if err := s.users.MarkVerified(ctx, userID); err != nil {
		return notFound(err, errUserNotFound, "mark verified")
	}
	return nil
}

// ForgotPassword mails a password reset link
func (s *MailService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperr.New(apperr.Validation, "An email address is required.")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return notFound(err, apperr.New(apperr.NotFound, "A user with that email was not found."), "load user")
	}
	if user.GithubID != 0 {
		return apperr.New(apperr.Forbidden, "The password cannot be reset because this account is connected with Github.")
	}

	token, err := newToken()
	if err != nil {
		return internal(err, "generate token")
	}
	if err := s.users.SetResetToken(ctx, user.ID, token, s.now().Add(resetTokenTTL)); err != nil {
		return notFound(err, errUserNotFound, "store reset token")
	}

	err = s.sender.Send(ctx, Message{
		To:      user.Email,
		Subject: "Password Reset",
		Body: "You are receiving this message because you requested the reset of the password for your account.\n\n" +
			"Please click on the following link, or paste it into your browser:\n\n" +
			fmt.Sprintf("%s/reset-password/%s\n\n", s.appURL, token) +
			"If you did not request this, please ignore this email.\n",
	})
	if err != nil {
		return internal(err, "send reset email")
	}

	log.Info().Str("user_id", user.ID).Msg("Password reset email sent")
	return nil
}

// ResetPassword sets a new password using a reset token
func (s *MailService) ResetPassword(ctx context.Context, token, password string) error {
	invalid := apperr.New(apperr.Unauthorized, "Password reset token is invalid or has expired.")
	if token == "" {
		return invalid
	}
	if len(strings.TrimSpace(password)) < 6 {
		return apperr.New(apperr.Validation, "Password must be at least 6 characters")
	}

	user, err := s.users.GetByResetToken(ctx, token)
	if err != nil {
		return notFound(err, invalid, "load user")
	}
	if !s.now().Before(user.ResetExpiresAt) {
		return invalid
	}

	hash, err := HashPassword(password)
	if err != nil {
		return internal(err, "hash password")
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return notFound(err, errUserNotFound, "update password")
	}

	log.Info().Str("user_id", user.ID).Msg("Password reset")
	return nil
}

// newToken returns a random 40 character hex token
func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
