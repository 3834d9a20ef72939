package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationMode è la forma della pipeline di una conversazione.
// Viene fissata alla creazione e non cambia più.
type ConversationMode string

const (
	ModeSingle ConversationMode = "single"
	ModeMulti  ConversationMode = "multi"
)

// MessageRole è l'autore di un messaggio
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Conversation rappresenta una chat persistita con i suoi binding di provider
type Conversation struct {
	ID     uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	UserID string    `json:"userId" gorm:"index;not null;default:''"`
	Title  string    `json:"title" gorm:"not null"`

	Mode ConversationMode `json:"mode" gorm:"not null"`

	// Single mode
	Provider string `json:"provider,omitempty"`

	// Multi mode
	ManagerProvider  string `json:"managerProvider,omitempty"`
	FrontendProvider string `json:"frontendProvider,omitempty"`
	BackendProvider  string `json:"backendProvider,omitempty"`

	Messages []Message `json:"messages,omitempty" gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"index"`
}

// BeforeCreate hook
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// TableName specifica il nome della tabella
func (Conversation) TableName() string {
	return "conversations"
}

// IsMulti verifica se la conversazione usa la pipeline a tre ruoli
func (c *Conversation) IsMulti() bool {
	return c.Mode == ModeMulti
}

// Message rappresenta un messaggio della trascrizione.
// Position è l'indice nella trascrizione: l'ordine è quello di inserimento.
type Message struct {
	ID             uuid.UUID   `json:"-" gorm:"type:uuid;primary_key"`
	ConversationID uuid.UUID   `json:"-" gorm:"type:uuid;not null;uniqueIndex:idx_conversation_position"`
	Position       int         `json:"-" gorm:"not null;uniqueIndex:idx_conversation_position"`
	Role           MessageRole `json:"role" gorm:"not null"`
	Content        string      `json:"content" gorm:"type:text;not null"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate hook
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// TableName specifica il nome della tabella
func (Message) TableName() string {
	return "messages"
}
