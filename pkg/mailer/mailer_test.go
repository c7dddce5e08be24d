package mailer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Parallel()

	borrowed := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	msg, err := Render(TemplateBorrowCreated, "ada@example.com", TemplateData{
		UserName:   "Ada <3",
		BookTitle:  "Middlemarch",
		BorrowDate: borrowed,
		DueDate:    borrowed.AddDate(0, 0, 10),
	})
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Book borrowed", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Middlemarch")
	assert.Contains(t, msg.HTMLBody, "12 Mar 2026")
	assert.Contains(t, msg.HTMLBody, "Ada &lt;3")
}

func TestRender_EveryTemplateHasSubject(t *testing.T) {
	t.Parallel()

	for name := range templates {
		msg, err := Render(name, "x@example.com", TemplateData{})
		require.NoError(t, err, name)
		assert.NotEmpty(t, msg.Subject, name)
	}

	_, err := Render("nope", "x@example.com", TemplateData{})
	assert.Error(t, err)
}

func TestBuildMessage(t *testing.T) {
	t.Parallel()

	m := buildMessage("noreply@serenity.local", Message{
		To:       "ada@example.com",
		Subject:  "Hello",
		HTMLBody: "<p>hi</p>",
	})
	assert.Equal(t, []string{"noreply@serenity.local"}, m.GetHeader("From"))
	assert.Equal(t, []string{"ada@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Hello"}, m.GetHeader("Subject"))
}

func TestRecorder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := &Recorder{}
	require.NoError(t, r.Send(ctx, Message{To: "a@example.com"}))
	require.Len(t, r.Sent(), 1)

	r.Err = errors.New("relay down")
	err := r.Send(ctx, Message{To: "b@example.com"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "relay down"))
	assert.Len(t, r.Sent(), 1)
}

func TestLogSender(t *testing.T) {
	t.Parallel()
	assert.NoError(t, LogSender{}.Send(context.Background(), Message{To: "a@example.com"}))
}
