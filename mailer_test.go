package accounts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/userkit/go-accounts"
)

func TestMailRendererBuildsTokenLinks(t *testing.T) {
	renderer, err := accounts.NewMailRenderer("https://app.example.com/")
	require.NoError(t, err)

	body, err := renderer.Render("verify", map[string]any{
		"url": "https://app.example.com/auth/verify?token=abc",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "https://app.example.com/auth/verify?token=abc")

	body, err = renderer.Render("password_reset", map[string]any{
		"url": "https://app.example.com/auth/password-reset?token=abc",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "password-reset?token=abc")

	body, err = renderer.Render("invite", map[string]any{
		"url": "https://app.example.com/auth/complete-profile?token=abc",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "complete-profile?token=abc")
}

func TestLogMailerNeverFails(t *testing.T) {
	ctx := context.Background()
	mailer := accounts.NewLogMailer(testLogger{})

	assert.NoError(t, mailer.SendVerificationEmail(ctx, "user@example.com", "token"))
	assert.NoError(t, mailer.SendPasswordResetEmail(ctx, "user@example.com", "token"))
	assert.NoError(t, mailer.SendProfileCreationEmail(ctx, "user@example.com", "token"))
}
