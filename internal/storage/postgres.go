package storage

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/vschool/agentsync/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c DatabaseConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(config DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	store := &PostgresStore{db: db}

	// Initialize database schema
	if err := store.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return store, nil
}

func (s *PostgresStore) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStore) UpsertConversation(conv *models.Conversation) error {
	query := `
		INSERT INTO conversations (id, channel, participant_id, participant_name, last_message_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			participant_name = EXCLUDED.participant_name,
			last_message_at = GREATEST(conversations.last_message_at, EXCLUDED.last_message_at),
			updated_at = CURRENT_TIMESTAMP`

	_, err := s.db.Exec(query, conv.ID, conv.Channel, conv.ParticipantID, conv.ParticipantName, conv.LastMessageAt)
	if err != nil {
		return fmt.Errorf("error upserting conversation: %v", err)
	}

	return nil
}

func (s *PostgresStore) UpsertMessage(msg *models.Message) error {
	var attID, attType, attURL *string
	if msg.Attachment != nil {
		attID, attType, attURL = &msg.Attachment.ID, &msg.Attachment.Type, &msg.Attachment.URL
	}

	query := `
		INSERT INTO messages (external_id, conversation_id, session_id, from_id, from_name,
			content, intent_key, attachment_id, attachment_type, attachment_url, message_created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (external_id) DO UPDATE SET
			content = EXCLUDED.content,
			intent_key = EXCLUDED.intent_key,
			updated_at = CURRENT_TIMESTAMP`

	_, err := s.db.Exec(query,
		msg.ExternalID,
		msg.ConversationID,
		msg.SessionID,
		msg.FromID,
		msg.FromName,
		msg.Content,
		msg.IntentKey,
		attID,
		attType,
		attURL,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error upserting message: %v", err)
	}

	return nil
}

func (s *PostgresStore) ListConversations() ([]*models.Conversation, error) {
	query := `
		SELECT id, channel, participant_id, participant_name, COALESCE(last_message_at, 'epoch'::timestamptz)
		FROM conversations
		ORDER BY last_message_at DESC NULLS LAST`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %v", err)
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		conv := &models.Conversation{}
		err := rows.Scan(
			&conv.ID,
			&conv.Channel,
			&conv.ParticipantID,
			&conv.ParticipantName,
			&conv.LastMessageAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning conversation: %v", err)
		}
		convs = append(convs, conv)
	}

	return convs, rows.Err()
}

func (s *PostgresStore) ListMessages(conversationID string) ([]*models.Message, error) {
	query := `
		SELECT external_id, conversation_id, session_id, from_id, from_name,
			content, intent_key, attachment_id, attachment_type, attachment_url, message_created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY message_created_at ASC`

	rows, err := s.db.Query(query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %v", err)
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		var attID, attType, attURL sql.NullString
		err := rows.Scan(
			&msg.ExternalID,
			&msg.ConversationID,
			&msg.SessionID,
			&msg.FromID,
			&msg.FromName,
			&msg.Content,
			&msg.IntentKey,
			&attID,
			&attType,
			&attURL,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %v", err)
		}
		if attID.Valid {
			msg.Attachment = &models.Attachment{ID: attID.String, Type: attType.String, URL: attURL.String}
		}
		msgs = append(msgs, msg)
	}

	return msgs, rows.Err()
}

func (s *PostgresStore) UpdateSessionAssignments(conversationID string, assignments map[string]string) error {
	if len(assignments) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %v", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE messages
		SET session_id = $1, updated_at = CURRENT_TIMESTAMP
		WHERE external_id = $2 AND conversation_id = $3`)
	if err != nil {
		return fmt.Errorf("error preparing session update: %v", err)
	}
	defer stmt.Close()

	for externalID, sessionID := range assignments {
		if _, err := stmt.Exec(sessionID, externalID, conversationID); err != nil {
			return fmt.Errorf("error updating session for message %s: %v", externalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing session updates: %v", err)
	}

	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
