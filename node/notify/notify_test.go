package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/bioimage-io/backoffice/types"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to, subject, body string
}

type MockSender struct {
	mails []sent
	err   error
}

func (m *MockSender) Send(ctx context.Context, to string, subject string, body string) error {
	if m.err != nil {
		return m.err
	}
	m.mails = append(m.mails, sent{to, subject, body})
	return nil
}

func TestNotifyUploader(t *testing.T) {
	ctx := context.Background()
	sender := &MockSender{}
	m := NewMailroom(sender, "bot@example.org", "bioimage.io status update: ")

	require.NoError(t, m.NotifyUploader(ctx, "jane@example.org", "Jane", "affable-shark", "staged/1", "is awaiting review ", "Thank you!\n"))
	require.Len(t, sender.mails, 1)
	require.Equal(t, "jane@example.org", sender.mails[0].to)
	require.Equal(t, "bioimage.io status update: affable-shark staged/1 is awaiting review", sender.mails[0].subject)
	require.Equal(t, "Dear Jane,\nThank you!\nKind regards,\nThe bioimage.io bot 🦒\n", sender.mails[0].body)

	require.NoError(t, m.NotifyUploader(ctx, "bot@example.org", "bot", "affable-shark", "1", "published", ""))
	require.Len(t, sender.mails, 1)

	err := m.NotifyUploader(ctx, "", "", "affable-shark", "1", "published", "")
	require.True(t, errors.Is(err, types.ErrMissingUploader))

	sender.err = errors.New("smtp down")
	require.Error(t, m.NotifyUploader(ctx, "jane@example.org", "Jane", "affable-shark", "1", "published", ""))
}

func TestMessage(t *testing.T) {
	msg := string(Message("bot@example.org", "jane@example.org", "hello", "a\nb\n"))
	require.Contains(t, msg, "Subject: hello\r\n")
	require.Contains(t, msg, "\r\n\r\na\r\nb\r\n")
}
