package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmanager/internal/domain"
)

type fakeMailer struct {
	to, subject, html, text string
	err                     error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, html, text string) error {
	f.to, f.subject, f.html, f.text = to, subject, html, text
	return f.err
}

type fakeRenderer struct {
	name string
	data any
	err  error
}

func (f *fakeRenderer) Render(templateName string, data any) (string, string, string, error) {
	f.name, f.data = templateName, data
	if f.err != nil {
		return "", "", "", f.err
	}
	return "Welcome", "<p>hi</p>", "hi", nil
}

func TestEmailService_SendWelcomeMessage(t *testing.T) {
	mailer := &fakeMailer{}
	renderer := &fakeRenderer{}
	svc := NewEmailService(mailer, renderer, discardLogger)
	data := &domain.WelcomeMessageEmailData{Email: "alice@example.com", FirstName: "Alice", UserID: "user-1"}

	require.NoError(t, svc.SendWelcomeMessage(context.Background(), data))

	assert.Equal(t, "welcome", renderer.name)
	assert.Same(t, data, renderer.data)
	assert.Equal(t, "alice@example.com", mailer.to)
	assert.Equal(t, "Welcome", mailer.subject)
	assert.Equal(t, "<p>hi</p>", mailer.html)
	assert.Equal(t, "hi", mailer.text)
}

func TestEmailService_SendWelcomeMessage_errors(t *testing.T) {
	renderErr := errors.New("template missing")
	sendErr := errors.New("ses throttled")

	tests := []struct {
		name     string
		data     *domain.WelcomeMessageEmailData
		renderer *fakeRenderer
		mailer   *fakeMailer
		wantErr  error
		wantMsg  string
	}{
		{"nil data", nil, &fakeRenderer{}, &fakeMailer{}, nil, "data is nil"},
		{"render fails", &domain.WelcomeMessageEmailData{Email: "a@b.co"}, &fakeRenderer{err: renderErr}, &fakeMailer{}, renderErr, "render"},
		{"send fails", &domain.WelcomeMessageEmailData{Email: "a@b.co"}, &fakeRenderer{}, &fakeMailer{err: sendErr}, sendErr, "send"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewEmailService(tt.mailer, tt.renderer, discardLogger)
			err := svc.SendWelcomeMessage(context.Background(), tt.data)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
