package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/biodoia/multiorch/internal/orchestrator"
	"github.com/biodoia/multiorch/internal/providers"
	"github.com/biodoia/multiorch/pkg/cache"
	"github.com/biodoia/multiorch/pkg/database"
	"github.com/biodoia/multiorch/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

const (
	defaultSingleTitle = "New chat"
	defaultMultiTitle  = "New orchestrated chat"

	// 60s timeout x 5 gemini candidates x 3 stages
	defaultLockTTL = 15 * time.Minute
)

// Store è la persistenza usata dal Service
type Store interface {
	CreateConversation(conv *models.Conversation) error
	ListConversations(userID string) ([]models.Conversation, error)
	GetConversation(id uuid.UUID, userID string) (*models.Conversation, error)
	UpdateConversation(id uuid.UUID, userID string, fields map[string]interface{}) (*models.Conversation, error)
	DeleteConversation(id uuid.UUID, userID string) error
	AppendTurn(id uuid.UUID, userID, userContent, assistantContent string) (*models.Conversation, error)
	CreateRun(run *models.OrchestrationRun) error
}

// Orchestrator esegue una richiesta di orchestrazione
type Orchestrator interface {
	Orchestrate(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// Service gestisce le conversazioni e l'invio dei messaggi
type Service struct {
	store   Store
	engine  Orchestrator
	locker  cache.Locker
	lockTTL time.Duration
}

// NewService crea un nuovo Service. locker può essere nil: in quel caso
// viene usato un lock in memoria.
func NewService(store Store, engine Orchestrator, locker cache.Locker, lockTTL time.Duration) *Service {
	if locker == nil {
		locker = cache.NewMemoryLocker()
	}
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &Service{store: store, engine: engine, locker: locker, lockTTL: lockTTL}
}

// CreateInput contiene i campi di creazione. Un campo nil è assente:
// la presenza di tutti e tre i ruoli seleziona la modalità multi.
type CreateInput struct {
	Title            *string `json:"title"`
	Provider         *string `json:"provider"`
	ManagerProvider  *string `json:"managerProvider"`
	FrontendProvider *string `json:"frontendProvider"`
	BackendProvider  *string `json:"backendProvider"`
}

func (in CreateInput) hasAllRoles() bool {
	return in.ManagerProvider != nil && in.FrontendProvider != nil && in.BackendProvider != nil
}

// Create crea una conversazione single o multi
func (s *Service) Create(userID string, in CreateInput) (*models.Conversation, error) {
	conv := &models.Conversation{UserID: userID}

	switch {
	case in.hasAllRoles():
		m, f, b, ok := normalizeRoles(in.ManagerProvider, in.FrontendProvider, in.BackendProvider)
		if !ok {
			return nil, invalid("For orchestration, managerProvider, frontendProvider, backendProvider must be chatgpt | gemini | perplexity")
		}
		conv.Mode = models.ModeMulti
		conv.Title = titleOr(in.Title, defaultMultiTitle)
		conv.ManagerProvider, conv.FrontendProvider, conv.BackendProvider = m, f, b

	case in.Provider != nil:
		p, err := providers.Normalize(*in.Provider)
		if err != nil {
			return nil, invalid("Invalid provider. Must be chatgpt | gemini | perplexity")
		}
		conv.Mode = models.ModeSingle
		conv.Title = titleOr(in.Title, defaultSingleTitle)
		conv.Provider = string(p)

	default:
		return nil, invalid("Must provide either a single provider or 3 providers for orchestration.")
	}

	if err := s.store.CreateConversation(conv); err != nil {
		return nil, err
	}

	log.Info().
		Str("conversation_id", conv.ID.String()).
		Str("mode", string(conv.Mode)).
		Msg("Conversation created")

	return conv, nil
}

// List restituisce le conversazioni dell'utente, senza messaggi
func (s *Service) List(userID string) ([]models.Conversation, error) {
	return s.store.ListConversations(userID)
}

// Get restituisce una conversazione con la trascrizione
func (s *Service) Get(id uuid.UUID, userID string) (*models.Conversation, error) {
	conv, err := s.store.GetConversation(id, userID)
	return conv, mapStoreError(err)
}

// Rename cambia il titolo di una conversazione
func (s *Service) Rename(id uuid.UUID, userID, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid("Title is required")
	}

	conv, err := s.store.UpdateConversation(id, userID, map[string]interface{}{"title": title})
	return conv, mapStoreError(err)
}

// ProvidersInput contiene i nuovi binding. Per una conversazione multi
// servono tutti e tre i ruoli, per una single solo Provider.
type ProvidersInput struct {
	Provider         *string `json:"provider"`
	ManagerProvider  *string `json:"managerProvider"`
	FrontendProvider *string `json:"frontendProvider"`
	BackendProvider  *string `json:"backendProvider"`
}

// UpdateProviders cambia i binding senza cambiare la modalità
func (s *Service) UpdateProviders(id uuid.UUID, userID string, in ProvidersInput) (*models.Conversation, error) {
	conv, err := s.store.GetConversation(id, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	var fields map[string]interface{}
	if conv.IsMulti() {
		if in.ManagerProvider == nil || in.FrontendProvider == nil || in.BackendProvider == nil {
			return nil, invalid("managerProvider, frontendProvider, and backendProvider must all be provided.")
		}
		m, f, b, ok := normalizeRoles(in.ManagerProvider, in.FrontendProvider, in.BackendProvider)
		if !ok {
			return nil, invalid("All 3 providers must be one of: chatgpt | gemini | perplexity")
		}
		fields = map[string]interface{}{
			"manager_provider":  m,
			"frontend_provider": f,
			"backend_provider":  b,
		}
	} else {
		if in.Provider == nil {
			return nil, invalid("provider must be provided.")
		}
		p, err := providers.Normalize(*in.Provider)
		if err != nil {
			return nil, invalid("Invalid provider. Must be chatgpt | gemini | perplexity")
		}
		fields = map[string]interface{}{"provider": string(p)}
	}

	updated, err := s.store.UpdateConversation(id, userID, fields)
	return updated, mapStoreError(err)
}

// Delete elimina una conversazione
func (s *Service) Delete(id uuid.UUID, userID string) error {
	return mapStoreError(s.store.DeleteConversation(id, userID))
}

// SendResult è l'esito di SendMessage
type SendResult struct {
	ConversationID uuid.UUID        `json:"conversationId"`
	Reply          string           `json:"reply"`
	Messages       []models.Message `json:"messages"`
}

// SendMessage esegue l'orchestrazione configurata sulla conversazione e,
// solo in caso di successo, salva insieme messaggio utente e risposta.
// Un fallimento non modifica la trascrizione.
func (s *Service) SendMessage(ctx context.Context, id uuid.UUID, userID, message string) (*SendResult, error) {
	conv, err := s.store.GetConversation(id, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	prompt := strings.TrimSpace(message)
	if prompt == "" {
		return nil, invalid("Message is required")
	}

	req, err := requestFor(conv, prompt)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.TryLock(ctx, conv.ID.String(), s.lockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLocked) {
			return nil, ErrBusy
		}
		return nil, err
	}
	defer release()

	start := time.Now()
	result, err := s.engine.Orchestrate(ctx, req)
	s.recordRun(&conv.ID, userID, conv.Mode, time.Since(start), result, err)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.AppendTurn(conv.ID, userID, prompt, result.FinalText)
	if err != nil {
		return nil, mapStoreError(err)
	}

	return &SendResult{
		ConversationID: updated.ID,
		Reply:          result.FinalText,
		Messages:       updated.Messages,
	}, nil
}

// Complete esegue un prompt su un singolo provider senza conversazione
func (s *Service) Complete(ctx context.Context, userID, provider, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", invalid("Prompt is required")
	}

	start := time.Now()
	result, err := s.engine.Orchestrate(ctx, orchestrator.Request{
		Mode:       orchestrator.ModeSingle,
		Bindings:   orchestrator.Bindings{Provider: providers.Name(provider)},
		UserPrompt: prompt,
	})
	s.recordRun(nil, userID, models.ModeSingle, time.Since(start), result, err)
	if err != nil {
		return "", err
	}
	return result.FinalText, nil
}

// requestFor costruisce la richiesta a partire dai binding salvati
func requestFor(conv *models.Conversation, prompt string) (orchestrator.Request, error) {
	req := orchestrator.Request{UserPrompt: prompt}

	switch {
	case conv.IsMulti() && conv.ManagerProvider != "" && conv.FrontendProvider != "" && conv.BackendProvider != "":
		req.Mode = orchestrator.ModeMulti
		req.Bindings = orchestrator.Bindings{
			Manager:  providers.Name(conv.ManagerProvider),
			Frontend: providers.Name(conv.FrontendProvider),
			Backend:  providers.Name(conv.BackendProvider),
		}
	case !conv.IsMulti() && conv.Provider != "":
		req.Mode = orchestrator.ModeSingle
		req.Bindings = orchestrator.Bindings{Provider: providers.Name(conv.Provider)}
	default:
		return req, invalid("Conversation has no provider configuration. Create a new chat with provider or with manager/frontend/backend providers.")
	}

	return req, nil
}

// recordRun salva la telemetria dell'orchestrazione. Un errore di scrittura
// viene solo loggato.
func (s *Service) recordRun(convID *uuid.UUID, userID string, mode models.ConversationMode, latency time.Duration, result *orchestrator.Result, runErr error) {
	run := &models.OrchestrationRun{
		ConversationID: convID,
		UserID:         userID,
		Mode:           mode,
		Success:        runErr == nil,
		LatencyMs:      latency.Milliseconds(),
	}

	var calls []orchestrator.Call
	if result != nil {
		calls = result.Calls
	}

	var oe *orchestrator.Error
	if errors.As(runErr, &oe) {
		run.ErrorKind = string(oe.Kind)
		run.Stage = string(oe.Stage)
		run.Role = string(oe.Role)
		run.ErrorMessage = oe.Message()
		calls = oe.Calls
	} else if runErr != nil {
		run.ErrorMessage = runErr.Error()
	}

	if calls == nil {
		calls = []orchestrator.Call{}
	}
	data, err := json.Marshal(calls)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode orchestration calls")
		data = []byte("[]")
	}
	run.Calls = datatypes.JSON(data)

	if err := s.store.CreateRun(run); err != nil {
		log.Warn().Err(err).Msg("Failed to record orchestration run")
	}
}

// normalizeRoles pulisce e valida i tre binding
func normalizeRoles(manager, frontend, backend *string) (string, string, string, bool) {
	m, errM := providers.Normalize(*manager)
	f, errF := providers.Normalize(*frontend)
	b, errB := providers.Normalize(*backend)
	if errM != nil || errF != nil || errB != nil {
		return "", "", "", false
	}
	return string(m), string(f), string(b), true
}

func titleOr(title *string, fallback string) string {
	if title == nil {
		return fallback
	}
	if t := strings.TrimSpace(*title); t != "" {
		return t
	}
	return fallback
}

func mapStoreError(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
