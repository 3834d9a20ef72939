package gateway

import (
	"errors"

	"github.com/biodoia/multiorch/internal/conversation"
	"github.com/biodoia/multiorch/internal/orchestrator"
	"github.com/biodoia/multiorch/internal/providers"
	"github.com/biodoia/multiorch/pkg/middleware"
	"github.com/biodoia/multiorch/pkg/models"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DirectRequest è il body delle route dirette /api/{provider}
type DirectRequest struct {
	Prompt string `json:"prompt"`
}

// RenameRequest è il body di PUT /api/chats/:id
type RenameRequest struct {
	Title string `json:"title"`
}

// SendMessageRequest è il body di POST /api/chats/:id/messages
type SendMessageRequest struct {
	Message string `json:"message"`
}

// conversationDetail serializza sempre la trascrizione, anche se vuota
type conversationDetail struct {
	*models.Conversation
	Messages []models.Message `json:"messages"`
}

func detail(conv *models.Conversation) conversationDetail {
	msgs := conv.Messages
	if msgs == nil {
		msgs = []models.Message{}
	}
	return conversationDetail{Conversation: conv, Messages: msgs}
}

// handleDirect esegue un prompt su un singolo provider
func (g *Gateway) handleDirect(name providers.Name) fiber.Handler {
	return func(c fiber.Ctx) error {
		var req DirectRequest
		if err := c.Bind().Body(&req); err != nil {
			return badRequest(c, "invalid request body")
		}

		text, err := g.chats.Complete(c.Context(), middleware.GetUserID(c), string(name), req.Prompt)
		if err != nil {
			return g.writeError(c, err)
		}

		return c.JSON(fiber.Map{"text": text})
	}
}

// handleCreateConversation crea una conversazione single o multi
func (g *Gateway) handleCreateConversation(c fiber.Ctx) error {
	var in conversation.CreateInput
	if err := c.Bind().Body(&in); err != nil {
		return badRequest(c, "invalid request body")
	}

	conv, err := g.chats.Create(middleware.GetUserID(c), in)
	if err != nil {
		return g.writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(detail(conv))
}

// handleListConversations elenca le conversazioni dell'utente
func (g *Gateway) handleListConversations(c fiber.Ctx) error {
	convs, err := g.chats.List(middleware.GetUserID(c))
	if err != nil {
		return g.writeError(c, err)
	}
	return c.JSON(convs)
}

// handleGetConversation restituisce una conversazione con i messaggi
func (g *Gateway) handleGetConversation(c fiber.Ctx) error {
	id, ok := conversationID(c)
	if !ok {
		return notFound(c)
	}

	conv, err := g.chats.Get(id, middleware.GetUserID(c))
	if err != nil {
		return g.writeError(c, err)
	}
	return c.JSON(detail(conv))
}

// handleRenameConversation rinomina una conversazione
func (g *Gateway) handleRenameConversation(c fiber.Ctx) error {
	id, ok := conversationID(c)
	if !ok {
		return notFound(c)
	}

	var req RenameRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	conv, err := g.chats.Rename(id, middleware.GetUserID(c), req.Title)
	if err != nil {
		return g.writeError(c, err)
	}
	return c.JSON(detail(conv))
}

// handleUpdateProviders aggiorna i binding di una conversazione
func (g *Gateway) handleUpdateProviders(c fiber.Ctx) error {
	id, ok := conversationID(c)
	if !ok {
		return notFound(c)
	}

	var in conversation.ProvidersInput
	if err := c.Bind().Body(&in); err != nil {
		return badRequest(c, "invalid request body")
	}

	conv, err := g.chats.UpdateProviders(id, middleware.GetUserID(c), in)
	if err != nil {
		return g.writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":      "Providers updated successfully",
		"conversation": detail(conv),
	})
}

// handleDeleteConversation elimina una conversazione
func (g *Gateway) handleDeleteConversation(c fiber.Ctx) error {
	id, ok := conversationID(c)
	if !ok {
		return notFound(c)
	}

	if err := g.chats.Delete(id, middleware.GetUserID(c)); err != nil {
		return g.writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// handleSendMessage esegue l'orchestrazione e salva il turno
func (g *Gateway) handleSendMessage(c fiber.Ctx) error {
	id, ok := conversationID(c)
	if !ok {
		return notFound(c)
	}

	var req SendMessageRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := g.chats.SendMessage(c.Context(), id, middleware.GetUserID(c), req.Message)
	if err != nil {
		return g.writeError(c, err)
	}
	return c.JSON(res)
}

// writeError traduce un errore di dominio nella risposta HTTP
func (g *Gateway) writeError(c fiber.Ctx, err error) error {
	var ve *conversation.ValidationError
	var oe *orchestrator.Error

	switch {
	case errors.As(err, &ve):
		return badRequest(c, ve.Message)

	case errors.Is(err, conversation.ErrNotFound):
		return notFound(c)

	case errors.Is(err, conversation.ErrBusy):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Another message is already being processed for this conversation",
		})

	case errors.As(err, &oe):
		body := fiber.Map{"error": oe.Message(), "kind": oe.Kind, "stage": oe.Stage}
		if oe.Role != "" {
			body["role"] = oe.Role
		}
		if oe.Provider != "" {
			body["provider"] = oe.Provider
		}
		return c.Status(statusFor(oe.Kind)).JSON(body)
	}

	log.Error().
		Err(err).
		Str("request_id", middleware.GetRequestID(c)).
		Str("path", c.Path()).
		Msg("Request failed")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":      "internal server error",
		"request_id": middleware.GetRequestID(c),
	})
}

// statusFor mappa il tipo di fallimento sullo status HTTP
func statusFor(kind orchestrator.Kind) int {
	switch kind {
	case orchestrator.KindInvalidBinding, orchestrator.KindMissingCredential:
		return fiber.StatusBadRequest
	case orchestrator.KindTerminalUpstream:
		return fiber.StatusBadGateway
	case orchestrator.KindCandidatesExhausted:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func conversationID(c fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

func badRequest(c fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func notFound(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
}
