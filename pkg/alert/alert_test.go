package alert

import (
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/kgembed/pkg/config"
)

func TestNewDisabled(t *testing.T) {
	a := New(config.AlertConfig{Enabled: false})
	assert.IsType(t, &NoOpAlerter{}, a)
	assert.NoError(t, a.Alert("subject", "body"))
}

func TestEmailAlerter(t *testing.T) {
	cfg := config.AlertConfig{
		Enabled:  true,
		SMTPHost: "smtp.example.com",
		SMTPPort: 2525,
		Username: "bot",
		Password: "secret",
		From:     "kgembed@example.com",
		To:       []string{"ops@example.com", "ml@example.com"},
	}
	a := NewEmailAlerter(cfg)

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	a.sendMail = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg, gotAuth = addr, to, string(msg), auth
		return nil
	}

	subject, body := TrainingFailed("run-1", 2, 10, errors.New("neo4j unavailable"))
	require.NoError(t, a.Alert(subject, body))

	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, cfg.To, gotTo)
	assert.NotNil(t, gotAuth)
	assert.Contains(t, gotMsg, "To: ops@example.com,ml@example.com\r\n")
	assert.Contains(t, gotMsg, "Subject: kgembed training failed (run run-1)\r\n")
	assert.Contains(t, gotMsg, "stopped after 2 of 10 epochs")
	assert.Contains(t, gotMsg, "neo4j unavailable")
}

func TestEmailAlerterSendFailure(t *testing.T) {
	a := NewEmailAlerter(config.AlertConfig{Enabled: true, SMTPHost: "localhost", SMTPPort: 25, To: []string{"x@example.com"}})
	a.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	err := a.Alert("s", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
