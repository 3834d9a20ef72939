package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Binding è la coppia client + candidati risolta per un provider
type Binding struct {
	Name       Name
	Client     Client
	Candidates []string
}

// Router mappa un nome di provider al suo client e ai modelli candidati
type Router struct {
	mu      sync.RWMutex
	entries map[Name]Binding
}

// NewRouter crea un router vuoto
func NewRouter() *Router {
	return &Router{entries: make(map[Name]Binding)}
}

// Register associa client e candidati a un provider dell'insieme chiuso
func (r *Router) Register(name Name, client Client, candidates []string) error {
	n, err := Normalize(string(name))
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("register %s: nil client", n)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[n] = Binding{
		Name:       n,
		Client:     client,
		Candidates: append([]string(nil), candidates...),
	}

	log.Debug().
		Str("provider", string(n)).
		Strs("candidates", candidates).
		Msg("Provider registered")

	return nil
}

// Resolve normalizza il nome e restituisce il binding registrato
func (r *Router) Resolve(raw string) (Binding, error) {
	n, err := Normalize(raw)
	if err != nil {
		return Binding{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.entries[n]
	if !ok {
		return Binding{}, &Error{Kind: KindUnknownProvider, Provider: n, Message: "provider not configured: " + string(n)}
	}

	// Copy so callers cannot mutate the registered candidate order
	b.Candidates = append([]string(nil), b.Candidates...)
	return b, nil
}

// List restituisce i provider registrati in ordine alfabetico
func (r *Router) List() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]Name, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
