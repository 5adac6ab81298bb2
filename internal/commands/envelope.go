package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/isdelr/dirback/internal/models"
)

// ErrUnknownCommand is returned for envelope tags outside the protocol.
var ErrUnknownCommand = errors.New("unknown command type")

// Envelope is the wire form of a command.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses an envelope into its Command. Unknown tags and malformed
// payloads fail with an InvalidInput error.
func Decode(data []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &models.Error{Kind: models.KindInvalidInput, Field: "envelope", Err: err}
	}
	return env.Command()
}

// Command converts the envelope into its typed command.
func (env Envelope) Command() (Command, error) {
	var cmd Command
	switch env.Type {
	case TypeListTargets:
		// ListTargets carries no fields; any payload is ignored.
		return ListTargets{}, nil
	case TypeGetTarget:
		var c GetTarget
		if err := decodePayload(env.Payload, &c); err != nil {
			return nil, err
		}
		cmd = c
	case TypeRegisterTarget:
		var c RegisterTarget
		if err := decodePayload(env.Payload, &c); err != nil {
			return nil, err
		}
		cmd = c
	case TypeBackupTarget:
		var c BackupTarget
		if err := decodePayload(env.Payload, &c); err != nil {
			return nil, err
		}
		cmd = c
	case TypeRestoreTarget:
		var c RestoreTarget
		if err := decodePayload(env.Payload, &c); err != nil {
			return nil, err
		}
		cmd = c
	case TypeDeleteBackup:
		var c DeleteBackup
		if err := decodePayload(env.Payload, &c); err != nil {
			return nil, err
		}
		cmd = c
	case TypeDeleteTarget:
		var c DeleteTarget
		if err := decodePayload(env.Payload, &c); err != nil {
			return nil, err
		}
		cmd = c
	default:
		return nil, &models.Error{
			Kind:  models.KindInvalidInput,
			Field: "type",
			Err:   fmt.Errorf("%w: %q", ErrUnknownCommand, env.Type),
		}
	}
	return cmd, nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &models.Error{Kind: models.KindInvalidInput, Field: "payload", Err: err}
	}
	return nil
}

// Encode wraps a command in its envelope.
func Encode(c Command) ([]byte, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: c.Type(), Payload: payload})
}
