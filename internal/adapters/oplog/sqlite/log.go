package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ports"
)

var _ ports.OperationLog = (*Log)(nil)

const schema = `CREATE TABLE IF NOT EXISTS operations (
	session_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	member_id TEXT NOT NULL,
	client_seq INTEGER NOT NULL DEFAULT 0,
	op TEXT NOT NULL,
	PRIMARY KEY (session_id, seq)
)`

// Log stores sequenced operations in a sqlite database.
type Log struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open operation log %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, errors.Join(fmt.Errorf("create operation log schema: %w", err), db.Close())
	}

	return &Log{db: db}, nil
}

func (l *Log) Close() error {
	return l.db.Close()
}

// Append writes entries in one transaction after checking they continue the
// stored head.
func (l *Log) Append(ctx context.Context, sessionID domain.SessionID, entries []domain.SequencedOp) error {
	if len(entries) == 0 {
		return ctx.Err()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}

	var head int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM operations WHERE session_id = ?`, string(sessionID)).Scan(&head); err != nil {
		return errors.Join(fmt.Errorf("read head: %w", err), tx.Rollback())
	}

	for i, entry := range entries {
		if want := head + int64(i) + 1; entry.Seq != want {
			return errors.Join(fmt.Errorf("%w: session %s expected seq %d, got %d", domain.ErrSequenceConflict, sessionID, want, entry.Seq), tx.Rollback())
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO operations (session_id, seq, member_id, client_seq, op) VALUES (?, ?, ?, ?, ?)`,
			string(sessionID), entry.Seq, string(entry.MemberID), entry.ClientSeq, string(entry.Op),
		); err != nil {
			return errors.Join(fmt.Errorf("insert operation %d: %w", entry.Seq, err), tx.Rollback())
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}

	return nil
}

func (l *Log) Since(ctx context.Context, sessionID domain.SessionID, after int64) ([]domain.SequencedOp, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT seq, member_id, client_seq, op FROM operations WHERE session_id = ? AND seq > ? ORDER BY seq`,
		string(sessionID), after,
	)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var entries []domain.SequencedOp
	for rows.Next() {
		var (
			entry    domain.SequencedOp
			memberID string
			op       string
		)
		if err := rows.Scan(&entry.Seq, &memberID, &entry.ClientSeq, &op); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		entry.MemberID = domain.MemberID(memberID)
		entry.Op = []byte(op)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}

	return entries, nil
}

func (l *Log) Head(ctx context.Context, sessionID domain.SessionID) (int64, error) {
	var head int64
	if err := l.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM operations WHERE session_id = ?`, string(sessionID)).Scan(&head); err != nil {
		return 0, fmt.Errorf("read head: %w", err)
	}

	return head, nil
}

func (l *Log) LastClientSeq(ctx context.Context, sessionID domain.SessionID, memberID domain.MemberID) (int64, error) {
	var last int64
	if err := l.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(client_seq), 0) FROM operations WHERE session_id = ? AND member_id = ?`,
		string(sessionID), string(memberID),
	).Scan(&last); err != nil {
		return 0, fmt.Errorf("read last client sequence: %w", err)
	}

	return last, nil
}

func (l *Log) Sessions(ctx context.Context) ([]domain.SessionID, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT DISTINCT session_id FROM operations ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var ids []domain.SessionID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, domain.SessionID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return ids, nil
}
