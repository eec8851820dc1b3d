package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fittrack/internal/domain"
)

// notifyChannel carries the user id of every changed document.
const notifyChannel = "user_documents"

// PostgresStore keeps each user's document in a single JSONB row and emits a
// NOTIFY for every committed write, so watchers observe their own writes too.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: log.New(log.Writer(), "[document] ", log.LstdFlags),
	}
}

// Migrate creates the user_documents table if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS user_documents (
        user_id    TEXT PRIMARY KEY,
        doc        JSONB NOT NULL DEFAULT '{}'::jsonb,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

// Get fetches the document. A missing row reports exists=false with no error.
func (s *PostgresStore) Get(ctx context.Context, userID string) (domain.UserDocument, bool, error) {
	const query = `SELECT doc FROM user_documents WHERE user_id=$1`

	var raw []byte
	err := s.pool.QueryRow(ctx, query, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserDocument{}, false, nil
	}
	if err != nil {
		return domain.UserDocument{}, false, err
	}

	var doc domain.UserDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.UserDocument{}, false, fmt.Errorf("decode document for %s: %w", userID, err)
	}
	return doc, true, nil
}

// SetWorkouts replaces the workouts field of the document, creating the row if
// absent and preserving every other top-level field. The change notification
// is emitted inside the same transaction.
func (s *PostgresStore) SetWorkouts(ctx context.Context, userID string, workouts []domain.WorkoutRecord) error {
	if workouts == nil {
		workouts = []domain.WorkoutRecord{}
	}
	payload, err := json.Marshal(workouts)
	if err != nil {
		return fmt.Errorf("encode workouts for %s: %w", userID, err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const upsert = `INSERT INTO user_documents (user_id, doc)
        VALUES ($1, jsonb_build_object('workouts', $2::jsonb))
        ON CONFLICT (user_id) DO UPDATE
        SET doc = user_documents.doc || jsonb_build_object('workouts', $2::jsonb),
            updated_at = now()`

	if _, err := tx.Exec(ctx, upsert, userID, payload); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, userID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Watch opens a LISTEN-backed subscription for one user. The current snapshot
// is delivered first, then one snapshot per committed change.
func (s *PostgresStore) Watch(ctx context.Context, userID string) (Subscription, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	sub := &postgresSubscription{
		ch:     make(chan Snapshot, 1),
		cancel: cancel,
	}

	go func() {
		defer close(sub.ch)
		defer conn.Release()

		doc, exists, err := s.Get(watchCtx, userID)
		if err != nil {
			s.logger.Printf("initial snapshot for %s: %v", userID, err)
		} else {
			sub.push(Snapshot{Exists: exists, Document: doc})
		}

		for {
			notification, err := conn.Conn().WaitForNotification(watchCtx)
			if err != nil {
				if watchCtx.Err() == nil {
					s.logger.Printf("watch %s: %v", userID, err)
				}
				return
			}
			if notification.Payload != userID {
				continue
			}
			doc, exists, err := s.Get(watchCtx, userID)
			if err != nil {
				s.logger.Printf("re-read %s after notify: %v", userID, err)
				continue
			}
			sub.push(Snapshot{Exists: exists, Document: doc})
		}
	}()

	return sub, nil
}

type postgresSubscription struct {
	ch     chan Snapshot
	cancel context.CancelFunc
	once   sync.Once
}

func (s *postgresSubscription) Snapshots() <-chan Snapshot {
	return s.ch
}

// Cancel stops the subscription. Safe to call multiple times.
func (s *postgresSubscription) Cancel() {
	s.once.Do(s.cancel)
}

// push delivers snap without blocking the notification loop: a slow consumer
// sees the latest whole-document snapshot, which is all that matters under
// last-write-wins.
func (s *postgresSubscription) push(snap Snapshot) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}
