package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/isdelr/dirback/internal/commands"
	"github.com/isdelr/dirback/internal/models"
	"github.com/rs/zerolog/log"
)

// Actions carried in Message.Action.
const (
	ActionDispatch         = "dispatch"
	ActionCommandResult    = "command.result"
	ActionCommandCompleted = "command.completed"
	ActionError            = "error"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CommandOutcome is the payload of command.result and command.completed messages.
type CommandOutcome struct {
	Type     commands.Type `json:"type"`
	TargetID string        `json:"target_id,omitempty"`
	Result   any           `json:"result,omitempty"`
	Error    *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload carries a failure kind and the ids involved, never prose.
type ErrorPayload struct {
	Kind     models.Kind `json:"kind"`
	TargetID string      `json:"target_id,omitempty"`
	BackupID int         `json:"backup_id,omitempty"`
	Field    string      `json:"field,omitempty"`
}

// NewErrorPayload describes err for the wire.
func NewErrorPayload(err error) *ErrorPayload {
	p := &ErrorPayload{Kind: models.KindOf(err)}
	var typed *models.Error
	if errors.As(err, &typed) {
		p.TargetID = typed.TargetID
		p.BackupID = typed.BackupID
		p.Field = typed.Field
	}
	return p
}

func encode(action string, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to encode websocket payload")
		raw = nil
	}
	data, _ := json.Marshal(Message{Action: action, Payload: raw})
	return data
}

// NewErrorMessage builds an error message for a single client.
func NewErrorMessage(err error) []byte {
	return encode(ActionError, NewErrorPayload(err))
}

// NewCommandMessage builds a command.result or command.completed message.
func NewCommandMessage(action string, cmd commands.Command, result any, err error) []byte {
	outcome := CommandOutcome{Type: cmd.Type(), TargetID: commandTarget(cmd, result)}
	if err != nil {
		outcome.Error = NewErrorPayload(err)
	} else {
		outcome.Result = result
	}
	return encode(action, outcome)
}

// Broadcaster publishes every completed mutation to the hub.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a dispatcher observer that feeds hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

func (b *Broadcaster) CommandCompleted(ctx context.Context, cmd commands.Command, result any, err error) {
	if !commands.IsMutation(cmd) {
		return
	}
	b.hub.Publish(commandTarget(cmd, result), NewCommandMessage(ActionCommandCompleted, cmd, result, err))
}

func commandTarget(cmd commands.Command, result any) string {
	switch c := cmd.(type) {
	case commands.GetTarget:
		return c.TargetID
	case commands.BackupTarget:
		return c.TargetID
	case commands.RestoreTarget:
		return c.TargetID
	case commands.DeleteBackup:
		return c.TargetID
	case commands.DeleteTarget:
		return c.TargetID
	case commands.RegisterTarget:
		if t, ok := result.(models.Target); ok {
			return t.ID
		}
	}
	return ""
}
