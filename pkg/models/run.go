package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrchestrationRun registra l'esito di una orchestrazione.
// Contiene solo telemetria: né il prompt né il testo generato.
type OrchestrationRun struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty" gorm:"type:uuid;index"`
	UserID         string     `json:"user_id" gorm:"index"`

	Mode    ConversationMode `json:"mode" gorm:"not null"`
	Success bool             `json:"success"`

	// Failure details
	ErrorKind    string `json:"error_kind,omitempty"`
	Stage        string `json:"stage,omitempty"`
	Role         string `json:"role,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	LatencyMs int64 `json:"latency_ms"`
	// Calls è l'elenco JSON delle chiamate di ruolo (provider, modello, tentativi, durata)
	Calls datatypes.JSON `json:"calls"`

	Timestamp time.Time `json:"timestamp" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook
func (r *OrchestrationRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	return nil
}

// TableName specifica il nome della tabella
func (OrchestrationRun) TableName() string {
	return "orchestration_runs"
}
