package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/biodoia/multiorch/internal/providers"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Mode determina la forma della pipeline
type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

// ParseMode valida un mode testuale
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeSingle:
		return ModeSingle, nil
	case ModeMulti:
		return ModeMulti, nil
	default:
		return "", &Error{Kind: KindInvalidBinding, Stage: StageValidation, Err: fmt.Errorf("unsupported mode: %q", raw)}
	}
}

// Role è il ruolo di un provider nella pipeline
type Role string

const (
	RoleSingle   Role = "single"
	RoleManager  Role = "manager"
	RoleFrontend Role = "frontend"
	RoleBackend  Role = "backend"
)

// NoResponseText sostituisce un testo finale vuoto
const NoResponseText = "[No response]"

// Bindings associa i ruoli ai provider.
// In single mode è usato solo Provider, in multi mode solo i tre ruoli.
type Bindings struct {
	Provider providers.Name `json:"provider,omitempty"`
	Manager  providers.Name `json:"manager,omitempty"`
	Frontend providers.Name `json:"frontend,omitempty"`
	Backend  providers.Name `json:"backend,omitempty"`
}

// Request è l'input di una singola orchestrazione
type Request struct {
	Mode     Mode
	Bindings Bindings
	// Prompts sovrascrive i system prompt dell'Engine per questa richiesta
	Prompts    *SystemPrompts
	UserPrompt string
}

// Call descrive una chiamata di ruolo completata (o fallita)
type Call struct {
	Stage    Stage          `json:"stage"`
	Role     Role           `json:"role"`
	Provider providers.Name `json:"provider"`
	Model    string         `json:"model,omitempty"`
	Attempts int            `json:"attempts"`
	Duration time.Duration  `json:"duration"`
	Error    string         `json:"error,omitempty"`
}

// Result è l'esito di un'orchestrazione riuscita
type Result struct {
	Mode           Mode   `json:"mode"`
	ManagerRaw     string `json:"manager_raw,omitempty"`
	FrontendOutput string `json:"frontend_output,omitempty"`
	BackendOutput  string `json:"backend_output,omitempty"`
	FinalText      string `json:"final_text"`
	Calls          []Call `json:"calls"`
}

// Report è passato al RunObserver al termine di ogni orchestrazione
type Report struct {
	Mode     Mode
	Duration time.Duration
	Calls    []Call
	Err      error
}

// RunObserver riceve il report di ogni orchestrazione, riuscita o meno
type RunObserver func(Report)

// ProviderRouter risolve un nome di provider nel suo binding
type ProviderRouter interface {
	Resolve(raw string) (providers.Binding, error)
}

// Engine esegue la pipeline single o manager/frontend/backend.
// È sicuro per l'uso concorrente: non mantiene stato tra le richieste.
type Engine struct {
	router      ProviderRouter
	credentials providers.Credentials
	resolver    *providers.Resolver
	prompts     SystemPrompts
	onRun       RunObserver
}

// Option configura l'Engine
type Option func(*engineOptions)

type engineOptions struct {
	prompts   *SystemPrompts
	onAttempt providers.AttemptObserver
	onRun     RunObserver
}

// WithPrompts imposta i system prompt di default
func WithPrompts(p SystemPrompts) Option {
	return func(o *engineOptions) { o.prompts = &p }
}

// WithAttemptObserver registra un observer per ogni tentativo su un modello
func WithAttemptObserver(fn providers.AttemptObserver) Option {
	return func(o *engineOptions) { o.onAttempt = fn }
}

// WithRunObserver registra un observer per ogni orchestrazione
func WithRunObserver(fn RunObserver) Option {
	return func(o *engineOptions) { o.onRun = fn }
}

// NewEngine crea un nuovo Engine
func NewEngine(router ProviderRouter, credentials providers.Credentials, opts ...Option) *Engine {
	o := engineOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	prompts := DefaultSystemPrompts()
	if o.prompts != nil {
		prompts = prompts.merge(*o.prompts)
	}

	return &Engine{
		router:      router,
		credentials: credentials,
		resolver:    providers.NewResolver(o.onAttempt),
		prompts:     prompts,
		onRun:       o.onRun,
	}
}

// Prompts restituisce una copia dei system prompt di default
func (e *Engine) Prompts() SystemPrompts {
	return e.prompts
}

// roleBinding è un ruolo risolto, pronto per la chiamata
type roleBinding struct {
	role       Role
	binding    providers.Binding
	credential string
}

// Orchestrate esegue la richiesta e restituisce il testo finale.
//
// In multi mode le chiamate sono: manager, poi frontend e backend in
// parallelo, poi sintesi sul provider del manager. Se uno dei due
// sub-agenti fallisce la sintesi non viene eseguita.
func (e *Engine) Orchestrate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	rec := &callRecorder{}

	result, err := e.orchestrate(ctx, req, rec)

	if e.onRun != nil {
		e.onRun(Report{Mode: req.Mode, Duration: time.Since(start), Calls: rec.snapshot(), Err: err})
	}

	if err != nil {
		if oe, ok := err.(*Error); ok {
			oe.Calls = rec.snapshot()
		}
		log.Warn().
			Err(err).
			Str("mode", string(req.Mode)).
			Dur("duration", time.Since(start)).
			Msg("Orchestration failed")
		return nil, err
	}

	result.Calls = rec.snapshot()

	log.Info().
		Str("mode", string(req.Mode)).
		Int("calls", len(result.Calls)).
		Int("reply_length", len(result.FinalText)).
		Dur("duration", time.Since(start)).
		Msg("Orchestration completed")

	return result, nil
}

func (e *Engine) orchestrate(ctx context.Context, req Request, rec *callRecorder) (*Result, error) {
	if strings.TrimSpace(req.UserPrompt) == "" {
		return nil, &Error{Kind: KindInvalidBinding, Stage: StageValidation, Err: ErrEmptyPrompt}
	}

	prompts := e.prompts
	if req.Prompts != nil {
		prompts = prompts.merge(*req.Prompts)
	}

	switch req.Mode {
	case ModeSingle:
		single, err := e.bind(ctx, RoleSingle, req.Bindings.Provider)
		if err != nil {
			return nil, err
		}
		return e.runSingle(ctx, req.UserPrompt, single, rec)

	case ModeMulti:
		roles := []struct {
			role Role
			name providers.Name
		}{
			{RoleManager, req.Bindings.Manager},
			{RoleFrontend, req.Bindings.Frontend},
			{RoleBackend, req.Bindings.Backend},
		}

		// Validate every binding and credential before the first network call
		bound := make([]roleBinding, 0, len(roles))
		for _, r := range roles {
			rb, err := e.bind(ctx, r.role, r.name)
			if err != nil {
				return nil, err
			}
			bound = append(bound, rb)
		}
		return e.runMulti(ctx, req.UserPrompt, prompts, bound[0], bound[1], bound[2], rec)

	default:
		return nil, &Error{Kind: KindInvalidBinding, Stage: StageValidation, Err: fmt.Errorf("unsupported mode: %q", req.Mode)}
	}
}

// bind risolve provider e credenziale di un ruolo
func (e *Engine) bind(ctx context.Context, role Role, name providers.Name) (roleBinding, error) {
	if strings.TrimSpace(string(name)) == "" {
		return roleBinding{}, &Error{
			Kind:  KindInvalidBinding,
			Stage: StageValidation,
			Role:  role,
			Err:   fmt.Errorf("%s provider is required", role),
		}
	}

	b, err := e.router.Resolve(string(name))
	if err != nil {
		return roleBinding{}, &Error{Kind: KindInvalidBinding, Stage: StageValidation, Role: role, Provider: name, Err: err}
	}

	credential, err := e.credentials.Credential(ctx, b.Name)
	if err != nil {
		return roleBinding{}, &Error{Kind: KindMissingCredential, Stage: StageValidation, Role: role, Provider: b.Name, Err: err}
	}

	return roleBinding{role: role, binding: b, credential: credential}, nil
}

func (e *Engine) runSingle(ctx context.Context, userPrompt string, rb roleBinding, rec *callRecorder) (*Result, error) {
	text, err := e.call(ctx, StageSingle, rb, userPrompt, rec)
	if err != nil {
		return nil, err
	}

	return &Result{Mode: ModeSingle, FinalText: orNoResponse(text)}, nil
}

func (e *Engine) runMulti(ctx context.Context, userPrompt string, prompts SystemPrompts, manager, frontend, backend roleBinding, rec *callRecorder) (*Result, error) {
	managerRaw, err := e.call(ctx, StageDecomposition, manager, buildManagerPrompt(prompts.Manager, userPrompt), rec)
	if err != nil {
		return nil, err
	}

	frontendPrompt := buildSubtaskPrompt(frontendAgent, prompts.Frontend, managerRaw, userPrompt)
	backendPrompt := buildSubtaskPrompt(backendAgent, prompts.Backend, managerRaw, userPrompt)

	// Both sub-agents always run to completion; the first error wins
	var frontendOut, backendOut string
	var g errgroup.Group
	g.Go(func() error {
		out, err := e.call(ctx, StageDispatch, frontend, frontendPrompt, rec)
		frontendOut = out
		return err
	})
	g.Go(func() error {
		out, err := e.call(ctx, StageDispatch, backend, backendPrompt, rec)
		backendOut = out
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	finalText, err := e.call(ctx, StageSynthesis, manager,
		buildSynthesisPrompt(userPrompt, managerRaw, frontendOut, backendOut), rec)
	if err != nil {
		return nil, err
	}

	return &Result{
		Mode:           ModeMulti,
		ManagerRaw:     managerRaw,
		FrontendOutput: frontendOut,
		BackendOutput:  backendOut,
		FinalText:      orNoResponse(finalText),
	}, nil
}

// call esegue una chiamata di ruolo attraverso il Resolver e la registra
func (e *Engine) call(ctx context.Context, stage Stage, rb roleBinding, prompt string, rec *callRecorder) (string, error) {
	log.Debug().
		Str("stage", string(stage)).
		Str("role", string(rb.role)).
		Str("provider", string(rb.binding.Name)).
		Int("prompt_length", len(prompt)).
		Msg("Dispatching role call")

	start := time.Now()
	completion, err := e.resolver.Invoke(ctx, rb.binding, prompt, rb.credential)

	c := Call{Stage: stage, Role: rb.role, Provider: rb.binding.Name, Duration: time.Since(start)}
	if err != nil {
		c.Error = err.Error()
		rec.add(c)
		return "", classify(stage, rb.role, rb.binding.Name, err)
	}

	c.Model = completion.Model
	c.Attempts = completion.Attempts
	rec.add(c)

	return completion.Text, nil
}

func orNoResponse(text string) string {
	if text == "" {
		return NoResponseText
	}
	return text
}

// callRecorder raccoglie le chiamate, anche da goroutine diverse
type callRecorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *callRecorder) add(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *callRecorder) snapshot() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}
