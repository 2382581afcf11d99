package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConn struct {
	err      error
	subjects []string
	payloads [][]byte
	drained  bool
}

func (m *mockConn) Publish(subject string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, data)
	return nil
}

func (m *mockConn) Drain() error {
	m.drained = true
	return nil
}

func TestNATSPublisher_Publish(t *testing.T) {
	conn := &mockConn{}
	p := &NATSPublisher{conn: conn}

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	err := p.Publish(context.Background(), Event{
		Subject: SubjectMemberInvited,
		VaultID: "v1",
		UserID:  "u2",
		ActorID: "u1",
		At:      at,
	})
	require.NoError(t, err)

	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "supwarden.vault.member.invited", conn.subjects[0])

	var got map[string]any
	require.NoError(t, json.Unmarshal(conn.payloads[0], &got))
	assert.Equal(t, "v1", got["vaultId"])
	assert.Equal(t, "u2", got["userId"])
	assert.Equal(t, "u1", got["actorId"])
	assert.NotContains(t, got, "elementId")
	assert.NotContains(t, got, "Subject")
	assert.Equal(t, "2024-01-02T03:04:05Z", got["at"])
}

func TestNATSPublisher_FillsTimestamp(t *testing.T) {
	conn := &mockConn{}
	p := &NATSPublisher{conn: conn}

	require.NoError(t, p.Publish(context.Background(), Event{Subject: SubjectElementDeleted, ElementID: "e1"}))

	var got Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &got))
	assert.False(t, got.At.IsZero())
}

func TestNATSPublisher_Errors(t *testing.T) {
	p := &NATSPublisher{conn: &mockConn{err: errors.New("nats: connection closed")}}
	err := p.Publish(context.Background(), Event{Subject: SubjectMemberRemoved})
	assert.ErrorContains(t, err, "supwarden.vault.member.removed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, Event{Subject: SubjectMemberRemoved}), context.Canceled)
}

func TestNATSPublisher_Close(t *testing.T) {
	conn := &mockConn{}
	p := &NATSPublisher{conn: conn}
	require.NoError(t, p.Close())
	assert.True(t, conn.drained)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{Subject: SubjectMemberAccepted}))
	assert.NoError(t, p.Close())
}
