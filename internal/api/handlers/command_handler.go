package handlers

import (
	"io"
	"net/http"

	"github.com/isdelr/dirback/internal/commands"
	"github.com/isdelr/dirback/internal/models"
	"github.com/isdelr/dirback/internal/services"
)

const maxEnvelopeSize = 1 << 20

// CommandHandler accepts raw command envelopes.
type CommandHandler struct {
	dispatcher services.DispatcherProvider
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(dispatcher services.DispatcherProvider) *CommandHandler {
	return &CommandHandler{dispatcher: dispatcher}
}

// Execute decodes {"type","payload"} and returns the command's result as-is.
// An absent GetTarget result is encoded as null.
func (h *CommandHandler) Execute(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeSize))
	if err != nil {
		writeError(w, r, models.InvalidInput("body"))
		return
	}
	cmd, err := commands.Decode(data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.dispatcher.Dispatch(r.Context(), cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
