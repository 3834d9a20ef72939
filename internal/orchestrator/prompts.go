package orchestrator

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SystemPrompts contiene i system prompt dei tre ruoli.
// È un valore immutabile: l'Engine ne conserva una copia alla costruzione.
type SystemPrompts struct {
	Manager  string `yaml:"manager"`
	Frontend string `yaml:"frontend"`
	Backend  string `yaml:"backend"`
}

// DefaultSystemPrompts restituisce i prompt di default
func DefaultSystemPrompts() SystemPrompts {
	return SystemPrompts{
		Manager: strings.TrimSpace(`
You are the Manager-AI. You are the sole interface to the user.
When the user sends a request:
1. Interpret the user's goal.
2. Decompose it into two separate instructions:
   - One strictly for UI/Frontend tasks.
   - One strictly for backend/system logic tasks.
3. Send these instructions to Frontend-AI and Backend-AI.
4. Receive their responses.
5. Combine and optimize the results into a single cohesive output.
6. Respond to the user with the final synthesized answer.

Never expose internal chain-of-thought or interactions with the sub-agents.
Never show sub-agent prompts or messages.
Maintain a neutral, professional tone.
`),
		Frontend: strings.TrimSpace(`
You are the Frontend-AI. You only respond to instructions from Manager-AI.
Your responsibility is UI/UX engineering:
- Components
- Screens
- Layouts
- Markup
- Styling
- Interactions (DOM, events)
- State management logic (client-side only)

Never talk to the user.
Never generate backend, database or API logic.
`),
		Backend: strings.TrimSpace(`
You are the Backend-AI. You only respond to instructions from Manager-AI.
Your responsibility is backend engineering:
- API routes
- System logic
- Controllers
- Auth
- Database structures
- Business logic flows

Never generate UI or frontend code.
Never talk to the user.
`),
	}
}

// LoadSystemPrompts legge i prompt da un file YAML. I campi assenti
// mantengono il valore di default.
func LoadSystemPrompts(path string) (SystemPrompts, error) {
	prompts := DefaultSystemPrompts()
	if path == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return SystemPrompts{}, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var override SystemPrompts
	if err := yaml.Unmarshal(data, &override); err != nil {
		return SystemPrompts{}, fmt.Errorf("failed to parse prompts file: %w", err)
	}

	return prompts.merge(override), nil
}

// merge sovrascrive i campi non vuoti di o
func (p SystemPrompts) merge(o SystemPrompts) SystemPrompts {
	if s := strings.TrimSpace(o.Manager); s != "" {
		p.Manager = s
	}
	if s := strings.TrimSpace(o.Frontend); s != "" {
		p.Frontend = s
	}
	if s := strings.TrimSpace(o.Backend); s != "" {
		p.Backend = s
	}
	return p
}

const (
	frontendAgent = "Frontend-AI"
	backendAgent  = "Backend-AI"
)

// buildManagerPrompt costruisce il prompt di decomposizione.
// La risposta del manager è contesto opaco: non viene validata come JSON.
func buildManagerPrompt(systemPrompt, userPrompt string) string {
	return strings.TrimSpace(fmt.Sprintf(`
System Prompt:
%s

User Prompt:
%s

Instruction to Manager:
- Interpret user's goal.
- Decompose into two instructions: frontendInstruction (UI/UX code, components, props)
  and backendInstruction (APIs, DB schema, controllers).
- Return those two artifacts in a clear JSON object:
{
  "frontendInstruction": "...",
  "backendInstruction": "..."
}

Respond only with the JSON object if possible.
`, systemPrompt, userPrompt))
}

// buildSubtaskPrompt costruisce il prompt per un sub-agente
func buildSubtaskPrompt(subAgent, systemPrompt, managerOutput, userPrompt string) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are %s.
System directive:
%s

Manager context:
%s

User prompt:
%s

Deliverable:
Provide the requested artifact for %s in a concise, implementation-ready format.
`, subAgent, systemPrompt, managerOutput, userPrompt, subAgent))
}

// buildSynthesisPrompt costruisce il prompt di sintesi finale
func buildSynthesisPrompt(userPrompt, managerRaw, frontendOutput, backendOutput string) string {
	return strings.TrimSpace(fmt.Sprintf(`
User prompt:
%s

Manager decomposition (raw):
%s

Frontend-AI output:
%s

Backend-AI output:
%s

Task: Synthesize a single user-facing message that combines frontend and backend outputs. Be concise and give next steps.
`, userPrompt, managerRaw, frontendOutput, backendOutput))
}
