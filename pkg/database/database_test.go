package database

import (
	"context"
	"testing"

	"github.com/biodoia/multiorch/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(&Config{Type: "sqlite", Connection: ":memory:", MaxConns: 1})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createConversation(t *testing.T, db *DB, userID, title string) *models.Conversation {
	t.Helper()
	conv := &models.Conversation{UserID: userID, Title: title, Mode: models.ModeSingle, Provider: "gemini"}
	require.NoError(t, db.CreateConversation(conv))
	return conv
}

func TestNew_UnsupportedType(t *testing.T) {
	_, err := New(&Config{Type: "mysql"})
	assert.Error(t, err)
}

func TestConversationLifecycle(t *testing.T) {
	db := setupTestDB(t)
	conv := createConversation(t, db, "user-1", "New chat")

	got, err := db.GetConversation(conv.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "New chat", got.Title)
	assert.Empty(t, got.Messages)

	// Other users cannot see it
	_, err = db.GetConversation(conv.ID, "user-2")
	assert.ErrorIs(t, err, ErrNotFound)

	renamed, err := db.UpdateConversation(conv.ID, "user-1", map[string]interface{}{"title": "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Title)

	_, err = db.UpdateConversation(uuid.New(), "user-1", map[string]interface{}{"title": "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.DeleteConversation(conv.ID, "user-1"))
	_, err = db.GetConversation(conv.ID, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.DeleteConversation(conv.ID, "user-1"), ErrNotFound)
}

func TestAppendTurn(t *testing.T) {
	db := setupTestDB(t)
	conv := createConversation(t, db, "", "New chat")

	_, err := db.AppendTurn(conv.ID, "", "first question", "first answer")
	require.NoError(t, err)
	got, err := db.AppendTurn(conv.ID, "", "second question", "second answer")
	require.NoError(t, err)

	require.Len(t, got.Messages, 4)
	assert.Equal(t, models.MessageRoleUser, got.Messages[0].Role)
	assert.Equal(t, "first question", got.Messages[0].Content)
	assert.Equal(t, models.MessageRoleAssistant, got.Messages[1].Role)
	assert.Equal(t, "second answer", got.Messages[3].Content)
	for i, m := range got.Messages {
		assert.Equal(t, i, m.Position)
	}
}

func TestAppendTurn_UnknownConversation(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.AppendTurn(uuid.New(), "", "q", "a")
	assert.ErrorIs(t, err, ErrNotFound)

	var count int64
	require.NoError(t, db.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListConversations_MostRecentFirst(t *testing.T) {
	db := setupTestDB(t)
	older := createConversation(t, db, "u", "older")
	createConversation(t, db, "u", "newer")
	createConversation(t, db, "other", "hidden")

	// A new turn bumps the older conversation to the top
	_, err := db.AppendTurn(older.ID, "u", "q", "a")
	require.NoError(t, err)

	convs, err := db.ListConversations("u")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "older", convs[0].Title)
	assert.Empty(t, convs[0].Messages)
}

func TestDeleteConversation_RemovesMessages(t *testing.T) {
	db := setupTestDB(t)
	conv := createConversation(t, db, "", "chat")
	_, err := db.AppendTurn(conv.ID, "", "q", "a")
	require.NoError(t, err)

	require.NoError(t, db.DeleteConversation(conv.ID, ""))

	var count int64
	require.NoError(t, db.Model(&models.Message{}).Where("conversation_id = ?", conv.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRuns(t *testing.T) {
	db := setupTestDB(t)

	run := &models.OrchestrationRun{
		Mode:    models.ModeMulti,
		Success: true,
		Calls:   datatypes.JSON(`[{"role":"manager","provider":"chatgpt"}]`),
	}
	require.NoError(t, db.CreateRun(run))

	runs, err := db.GetRecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Success)
	assert.JSONEq(t, `[{"role":"manager","provider":"chatgpt"}]`, string(runs[0].Calls))
}

func TestPingContext(t *testing.T) {
	db := setupTestDB(t)

	assert.NoError(t, db.PingContext(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, db.PingContext(ctx))
}
