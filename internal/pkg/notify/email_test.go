package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"todolist/internal/config"
	"todolist/internal/pkg/logger"

	"gopkg.in/gomail.v2"
)

func TestEmailNotifier_SkipsWhenUnconfigured(t *testing.T) {
	n := NewEmailNotifier(&config.EmailConfig{SMTPHost: "smtp.example.com"}, logger.Discard())
	called := false
	n.send = func(m *gomail.Message) error {
		called = true
		return nil
	}

	if err := n.SendWelcome(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if called {
		t.Fatalf("should not send without full smtp config")
	}
}

func TestEmailNotifier_SendsWelcome(t *testing.T) {
	cfg := &config.EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: 587, SMTPUser: "u", FromEmail: "noreply@example.com"}
	n := NewEmailNotifier(cfg, logger.Discard())

	var got *gomail.Message
	n.send = func(m *gomail.Message) error {
		got = m
		return nil
	}

	if err := n.SendWelcome(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got == nil {
		t.Fatalf("expected a message")
	}
	if to := got.GetHeader("To"); len(to) != 1 || to[0] != "alice@example.com" {
		t.Fatalf("unexpected recipient %v", to)
	}
}

func TestEmailNotifier_PropagatesSendError(t *testing.T) {
	cfg := &config.EmailConfig{SMTPHost: "smtp.example.com", SMTPUser: "u", FromEmail: "noreply@example.com"}
	n := NewEmailNotifier(cfg, logger.Discard())
	n.send = func(m *gomail.Message) error { return errors.New("connection refused") }

	err := n.SendWelcome(context.Background(), "alice@example.com")
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestBuildWelcomeBody_Escapes(t *testing.T) {
	body := buildWelcomeBody("<script>@example.com")
	if strings.Contains(body, "<script>") {
		t.Fatalf("email must be escaped: %s", body)
	}
}
