package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

const conversationColumns = `c.id, c.participant_a, c.participant_b, c.smaller_participant,
		c.larger_participant, c.listing_id, c.created_at, c.last_activity_at`

// SQLStore implements Store using a database/sql connection.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a new SQLStore.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) GetByID(ctx context.Context, id string) (*Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrConversationNotFound
	}

	query := `
		SELECT ` + conversationColumns + `
		FROM conversations c
		WHERE c.id = $1
	`

	convo, err := scanConversation(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return convo, nil
}

func (s *SQLStore) GetByKey(ctx context.Context, key Key) (*Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations c
		WHERE c.smaller_participant = $1
			AND c.larger_participant = $2
			AND c.listing_id IS NOT DISTINCT FROM $3
	`

	row := s.db.QueryRowContext(ctx, query, key.Smaller, key.Larger, nullInt64(key.ListingID))
	convo, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation by key: %w", err)
	}
	return convo, nil
}

// Create inserts a conversation. The canonical pair is derived from the
// participants, so callers only set ParticipantA, ParticipantB and ListingID.
// A lost race against a concurrent insert of the same key surfaces as
// ErrConversationExists; the row already stored is left untouched.
func (s *SQLStore) Create(ctx context.Context, convo *Conversation) error {
	if convo.ID == "" {
		convo.ID = uuid.NewString()
	}
	if convo.CreatedAt.IsZero() {
		convo.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	if convo.LastActivityAt.IsZero() {
		convo.LastActivityAt = convo.CreatedAt
	}

	key := CanonicalKey(convo.ParticipantA, convo.ParticipantB, convo.ListingID)
	convo.SmallerParticipant = key.Smaller
	convo.LargerParticipant = key.Larger

	query := `
		INSERT INTO conversations (id, participant_a, participant_b, smaller_participant,
			larger_participant, listing_id, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
		RETURNING id
	`

	var id string
	err := s.db.QueryRowContext(ctx, query,
		convo.ID, convo.ParticipantA, convo.ParticipantB, convo.SmallerParticipant,
		convo.LargerParticipant, nullInt64(convo.ListingID), convo.CreatedAt, convo.LastActivityAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return ErrConversationExists
		}
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	convo.ID = id
	return nil
}

func (s *SQLStore) ListThreads(ctx context.Context, participantID int64, limit, offset int) ([]*Thread, error) {
	query := `
		SELECT ` + conversationColumns + `,
			m.id, m.sender_id, m.receiver_id, m.content, m.created_at,
			(
				SELECT COUNT(*)
				FROM messages u
				WHERE u.conversation_id = c.id
					AND u.receiver_id = $1
					AND u.is_read = FALSE
			) AS unread_count
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT id, sender_id, receiver_id, content, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) m ON TRUE
		WHERE c.smaller_participant = $1 OR c.larger_participant = $1
		ORDER BY c.last_activity_at DESC, c.id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, participantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	threads := make([]*Thread, 0)
	for rows.Next() {
		var (
			thread      Thread
			listingID   sql.NullInt64
			msgID       sql.NullString
			msgSender   sql.NullInt64
			msgReceiver sql.NullInt64
			msgContent  sql.NullString
			msgCreated  sql.NullTime
		)
		c := &thread.Conversation
		err := rows.Scan(
			&c.ID, &c.ParticipantA, &c.ParticipantB, &c.SmallerParticipant,
			&c.LargerParticipant, &listingID, &c.CreatedAt, &c.LastActivityAt,
			&msgID, &msgSender, &msgReceiver, &msgContent, &msgCreated,
			&thread.UnreadCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		c.ListingID = int64Ptr(listingID)
		if msgID.Valid {
			thread.LastMessage = &LastMessage{
				ID:         msgID.String,
				SenderID:   msgSender.Int64,
				ReceiverID: msgReceiver.Int64,
				Content:    msgContent.String,
				CreatedAt:  msgCreated.Time,
			}
		}
		threads = append(threads, &thread)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	return threads, nil
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var (
		convo     Conversation
		listingID sql.NullInt64
	)
	err := row.Scan(
		&convo.ID, &convo.ParticipantA, &convo.ParticipantB, &convo.SmallerParticipant,
		&convo.LargerParticipant, &listingID, &convo.CreatedAt, &convo.LastActivityAt,
	)
	if err != nil {
		return nil, err
	}
	convo.ListingID = int64Ptr(listingID)
	return &convo, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

var _ Store = (*SQLStore)(nil)
