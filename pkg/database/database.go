package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biodoia/multiorch/pkg/models"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound indica che il record richiesto non esiste (o non appartiene all'utente)
var ErrNotFound = errors.New("record not found")

// Config contiene la configurazione del database
type Config struct {
	Type       string `mapstructure:"type" yaml:"type"`             // "postgres" or "sqlite"
	Connection string `mapstructure:"connection" yaml:"connection"` // Connection string
	MaxConns   int    `mapstructure:"max_conns" yaml:"max_conns"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
}

// DB wrappa la connessione GORM
type DB struct {
	*gorm.DB
}

// New crea una nuova connessione al database
func New(cfg *Config) (*DB, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(cfg.Connection)
	case "sqlite":
		dialector = sqlite.Open(cfg.Connection)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	// Configure logger
	logLevel := logger.Silent
	switch cfg.LogLevel {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "error":
		logLevel = logger.Error
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
		// Keep at least one idle connection so an in-memory sqlite survives
		sqlDB.SetMaxIdleConns(max(cfg.MaxConns/2, 1))
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &DB{DB: db}, nil
}

// AutoMigrate esegue le migrazioni del database
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(
		&models.Conversation{},
		&models.Message{},
		&models.OrchestrationRun{},
	)
}

// Close chiude la connessione al database
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifica la connessione
func (db *DB) Ping() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// PingContext verifica la connessione rispettando la scadenza di ctx
func (db *DB) PingContext(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateConversation crea una nuova conversazione
func (db *DB) CreateConversation(conv *models.Conversation) error {
	return db.Create(conv).Error
}

// ListConversations restituisce le conversazioni dell'utente, senza messaggi,
// dalla più recente
func (db *DB) ListConversations(userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&convs).Error
	return convs, err
}

// GetConversation restituisce una conversazione con la trascrizione ordinata
func (db *DB) GetConversation(id uuid.UUID, userID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := db.Preload("Messages", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC")
	}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

// UpdateConversation aggiorna i campi indicati e restituisce la conversazione aggiornata
func (db *DB) UpdateConversation(id uuid.UUID, userID string, fields map[string]interface{}) (*models.Conversation, error) {
	res := db.Model(&models.Conversation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return db.GetConversation(id, userID)
}

// DeleteConversation elimina una conversazione e i suoi messaggi
func (db *DB) DeleteConversation(id uuid.UUID, userID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error
	})
}

// AppendTurn aggiunge in una sola transazione il messaggio utente e la
// risposta dell'assistente. O entrambi vengono salvati o nessuno.
func (db *DB) AppendTurn(id uuid.UUID, userID, userContent, assistantContent string) (*models.Conversation, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&conv).Error; err != nil {
			return notFound(err)
		}

		var next int64
		if err := tx.Model(&models.Message{}).Where("conversation_id = ?", id).Count(&next).Error; err != nil {
			return err
		}

		turn := []models.Message{
			{ConversationID: id, Position: int(next), Role: models.MessageRoleUser, Content: userContent},
			{ConversationID: id, Position: int(next) + 1, Role: models.MessageRoleAssistant, Content: assistantContent},
		}
		if err := tx.Create(&turn).Error; err != nil {
			return fmt.Errorf("failed to append messages: %w", err)
		}

		return tx.Model(&conv).Update("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		return nil, err
	}

	return db.GetConversation(id, userID)
}

// CreateRun registra l'esito di una orchestrazione
func (db *DB) CreateRun(run *models.OrchestrationRun) error {
	return db.Create(run).Error
}

// GetRecentRuns restituisce le orchestrazioni più recenti
func (db *DB) GetRecentRuns(limit int) ([]models.OrchestrationRun, error) {
	var runs []models.OrchestrationRun
	err := db.Order("timestamp DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
