package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Entry is one persisted key/value pair.
type Entry struct {
	bun.BaseModel `bun:"table:session_entries,alias:se"`
	Key           string    `bun:"entry_key,pk" json:"key"`
	Value         string    `bun:"entry_value,notnull" json:"value"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// SQL stores entries in the session_entries table.
type SQL struct {
	db  *bun.DB
	now func() time.Time
}

// NewSQL returns a store using db. Call CreateTable before first use.
func NewSQL(db *bun.DB) *SQL {
	return &SQL{db: db, now: time.Now}
}

// OpenSQLite opens dsn with the sqlite shim driver, creates the table and
// returns the store.
func OpenSQLite(ctx context.Context, dsn string) (*SQL, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	s := NewSQL(bun.NewDB(sqldb, sqlitedialect.New()))
	if err := s.CreateTable(ctx); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying bun handle.
func (s *SQL) DB() *bun.DB {
	return s.db
}

// Close closes the database.
func (s *SQL) Close() error {
	return s.db.Close()
}

// CreateTable creates session_entries when missing.
func (s *SQL) CreateTable(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*Entry)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	e := new(Entry)
	err := s.db.NewSelect().
		Model(e).
		Where("entry_key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.Value, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	return s.upsert(ctx, s.db, key, value)
}

func (s *SQL) Remove(ctx context.Context, key string) error {
	return s.remove(ctx, s.db, key)
}

func (s *SQL) SetMany(ctx context.Context, values map[string]string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for key, value := range values {
			if err := s.upsert(ctx, tx, key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQL) RemoveMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.remove(ctx, tx, keys...)
	})
}

func (s *SQL) upsert(ctx context.Context, db bun.IDB, key, value string) error {
	e := &Entry{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	_, err := db.NewInsert().
		Model(e).
		On("CONFLICT (entry_key) DO UPDATE").
		Set("entry_value = EXCLUDED.entry_value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *SQL) remove(ctx context.Context, db bun.IDB, keys ...string) error {
	_, err := db.NewDelete().
		Model((*Entry)(nil)).
		Where("entry_key IN (?)", bun.In(keys)).
		Exec(ctx)
	return err
}
