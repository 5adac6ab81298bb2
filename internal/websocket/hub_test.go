package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/isdelr/dirback/internal/commands"
	"github.com/isdelr/dirback/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.Send:
		return data
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected message %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_DeliversByTarget(t *testing.T) {
	h := newRunningHub(t)
	global := NewClient(h, nil, "")
	subscribed := NewClient(h, nil, "T1")
	other := NewClient(h, nil, "T2")
	require.True(t, h.Join(global))
	require.True(t, h.Join(subscribed))
	require.True(t, h.Join(other))

	h.Publish("T1", []byte("one"))

	assert.Equal(t, "one", string(receive(t, global)))
	assert.Equal(t, "one", string(receive(t, subscribed)))
	assertNothing(t, other)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := newRunningHub(t)
	c := NewClient(h, nil, "T1")
	require.True(t, h.Join(c))
	h.Leave(c)

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}
	assert.False(t, c.Reply([]byte("late")))
}

func TestHub_JoinAndLeaveAfterStop(t *testing.T) {
	h := NewHub()
	stopped := make(chan struct{})
	go func() {
		h.Run()
		close(stopped)
	}()
	h.Stop()
	h.Stop()
	<-stopped

	c := NewClient(h, nil, "T1")
	done := make(chan bool, 1)
	go func() {
		joined := h.Join(c)
		h.Leave(c)
		done <- joined
	}()

	select {
	case joined := <-done:
		assert.False(t, joined)
	case <-time.After(time.Second):
		t.Fatal("join or leave blocked on a stopped hub")
	}
}

func TestHub_StopClosesJoinedClients(t *testing.T) {
	h := NewHub()
	go h.Run()
	c := NewClient(h, nil, "")
	require.True(t, h.Join(c))
	h.Stop()

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed on stop")
	}
	h.Leave(c)
}

func TestNewCommandMessage(t *testing.T) {
	target := models.Target{ID: "T1", Name: "proj", Path: "/data/proj"}
	data := NewCommandMessage(ActionCommandResult, commands.RegisterTarget{Name: "proj", Path: "/data/proj"}, target, nil)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, ActionCommandResult, msg.Action)

	var outcome struct {
		Type     string         `json:"type"`
		TargetID string         `json:"target_id"`
		Result   map[string]any `json:"result"`
		Error    *ErrorPayload  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &outcome))
	assert.Equal(t, "RegisterTarget", outcome.Type)
	assert.Equal(t, "T1", outcome.TargetID)
	assert.Equal(t, "proj", outcome.Result["name"])
	assert.Nil(t, outcome.Error)
}

func TestNewCommandMessage_Error(t *testing.T) {
	data := NewCommandMessage(ActionCommandResult, commands.DeleteBackup{TargetID: "T1", BackupID: 9}, nil, models.BackupNotFound("T1", 9))

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	var outcome CommandOutcome
	require.NoError(t, json.Unmarshal(msg.Payload, &outcome))
	require.NotNil(t, outcome.Error)
	assert.Equal(t, ErrorPayload{Kind: models.KindNotFound, TargetID: "T1", BackupID: 9}, *outcome.Error)
	assert.Nil(t, outcome.Result)
}

func TestNewErrorPayload_Untyped(t *testing.T) {
	p := NewErrorPayload(errors.New("boom"))
	assert.Equal(t, models.KindInternal, p.Kind)
	assert.Empty(t, p.TargetID)
}

func TestBroadcaster_PublishesMutationsOnly(t *testing.T) {
	h := newRunningHub(t)
	c := NewClient(h, nil, "")
	require.True(t, h.Join(c))
	b := NewBroadcaster(h)
	ctx := context.Background()

	b.CommandCompleted(ctx, commands.ListTargets{}, []models.Target{}, nil)
	b.CommandCompleted(ctx, commands.DeleteTarget{TargetID: "T1"}, models.Target{ID: "T1"}, nil)

	var msg Message
	require.NoError(t, json.Unmarshal(receive(t, c), &msg))
	assert.Equal(t, ActionCommandCompleted, msg.Action)
	assert.Contains(t, string(msg.Payload), `"type":"DeleteTarget"`)
	assertNothing(t, c)
}
