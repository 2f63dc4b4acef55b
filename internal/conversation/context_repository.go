package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/pharmacy-ai-platform/internal/database"
)

// ErrContextNotFound is returned when a customer has no persisted context.
var ErrContextNotFound = errors.New("conversation: context not found")

// LogEntry is one append-only analytics row per answered turn.
type LogEntry struct {
	ID         uuid.UUID
	CustomerID string
	Message    string
	Response   string
	Intent     string
	Channel    string
	CreatedAt  time.Time
}

// ContextRepository persists conversation contexts and turn logs.
type ContextRepository interface {
	Load(ctx context.Context, customerID string) (*Context, error)
	Upsert(ctx context.Context, c *Context) error
	InsertLog(ctx context.Context, entry LogEntry) error
}

// PostgresContextRepository stores contexts in conversation_contexts and logs
// in conversation_logs.
type PostgresContextRepository struct {
	db     database.Querier
	tracer trace.Tracer
}

// NewPostgresContextRepository initializes a repo backed by a pgx querier.
func NewPostgresContextRepository(db database.Querier) *PostgresContextRepository {
	if db == nil {
		panic("conversation: pgx querier required")
	}
	return &PostgresContextRepository{db: db, tracer: otel.Tracer("pharmacy.internal.conversation.repository")}
}

// Load returns the persisted context for customerID.
func (r *PostgresContextRepository) Load(ctx context.Context, customerID string) (*Context, error) {
	ctx, span := r.tracer.Start(ctx, "conversation.load_context")
	defer span.End()

	var (
		history    string
		lastIntent *string
		updatedAt  time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT history::text, last_intent, updated_at
		FROM conversation_contexts
		WHERE customer_id = $1
	`, customerID).Scan(&history, &lastIntent, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContextNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: load context: %w", err)
	}

	c := emptyContext(customerID)
	if err := json.Unmarshal([]byte(history), &c.Turns); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: decode history: %w", err)
	}
	if c.Turns == nil {
		c.Turns = []Turn{}
	}
	if lastIntent != nil {
		c.LastIntent = *lastIntent
	}
	c.LastUpdated = updatedAt
	return c, nil
}

// Upsert inserts the context or overwrites the stored history, intent and timestamp.
func (r *PostgresContextRepository) Upsert(ctx context.Context, c *Context) error {
	ctx, span := r.tracer.Start(ctx, "conversation.upsert_context")
	defer span.End()

	turns := c.Turns
	if turns == nil {
		turns = []Turn{}
	}
	history, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("conversation: marshal history: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO conversation_contexts (customer_id, history, last_intent, updated_at)
		VALUES ($1, $2::jsonb, NULLIF($3, ''), $4)
		ON CONFLICT (customer_id) DO UPDATE SET
			history = EXCLUDED.history,
			last_intent = EXCLUDED.last_intent,
			updated_at = EXCLUDED.updated_at
	`, c.CustomerID, string(history), c.LastIntent, c.LastUpdated)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: upsert context: %w", err)
	}
	return nil
}

// InsertLog appends an analytics row.
func (r *PostgresContextRepository) InsertLog(ctx context.Context, entry LogEntry) error {
	ctx, span := r.tracer.Start(ctx, "conversation.insert_log")
	defer span.End()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO conversation_logs (log_id, customer_id, message, response, intent, channel, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`, entry.ID, entry.CustomerID, entry.Message, entry.Response, entry.Intent, entry.Channel, entry.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: insert log: %w", err)
	}
	return nil
}
