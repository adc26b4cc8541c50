package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nemonet1337/nexinventory/pkg/inventory"
)

// ledgerLockKey serializes ledger writers across processes
const ledgerLockKey = 7_340_032

// PostgreSQLStorage implements the Storage interface using PostgreSQL
// PostgreSQLを使用したStorageインターフェースの実装
type PostgreSQLStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ inventory.Storage = (*PostgreSQLStorage)(nil)

// PoolConfig holds connection pool settings
// 接続プール設定
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig returns the default pool settings
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
// 新しいPostgreSQLストレージインスタンスを作成
func NewPostgreSQLStorage(ctx context.Context, dsn string, pool PoolConfig, logger *zap.Logger) (*PostgreSQLStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
	}

	// 接続テスト
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースpingに失敗しました: %w", err)
	}

	// 接続プール設定
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return NewPostgreSQLStorageFromDB(db, logger), nil
}

// NewPostgreSQLStorageFromDB wraps an existing connection pool
func NewPostgreSQLStorageFromDB(db *sql.DB, logger *zap.Logger) *PostgreSQLStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgreSQLStorage{db: db, logger: logger}
}

// Load retrieves the requested documents
// 指定コレクションのドキュメントを取得
func (s *PostgreSQLStorage) Load(ctx context.Context, collections ...inventory.Collection) (map[inventory.Collection][]byte, error) {
	query := `SELECT name, payload FROM ledger_documents WHERE name = ANY($1)`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(collectionNames(collections)))
	if err != nil {
		return nil, fmt.Errorf("ドキュメント取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// Update performs the read-modify-write inside one SQL transaction.
// Rows are locked with FOR UPDATE and writers are serialized by an advisory lock
// so that creating a missing collection cannot race.
// 1つのSQLトランザクション内で読み取り・変更・書き込みを実行
func (s *PostgreSQLStorage) Update(ctx context.Context, collections []inventory.Collection, fn inventory.UpdateFunc) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗しました: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error("ロールバックに失敗しました", zap.Error(rbErr))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
		return fmt.Errorf("ロック取得に失敗しました: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT name, payload FROM ledger_documents WHERE name = ANY($1) FOR UPDATE`,
		pq.Array(collectionNames(collections)),
	)
	if err != nil {
		return fmt.Errorf("ドキュメント取得に失敗しました: %w", err)
	}
	current, err := scanDocuments(rows)
	rows.Close()
	if err != nil {
		return err
	}

	out, err := fn(current)
	if err != nil {
		return err
	}

	upsert := `
		INSERT INTO ledger_documents (name, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for col, raw := range out {
		if _, err = tx.ExecContext(ctx, upsert, string(col), string(raw), now); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "40001" {
				return inventory.NewConcurrencyError("update", string(col), "シリアライズ競合が発生しました")
			}
			return fmt.Errorf("ドキュメント書き込みに失敗しました (%s): %w", col, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションコミットに失敗しました: %w", err)
	}
	return nil
}

// Delete removes the named documents
// 指定コレクションを削除
func (s *PostgreSQLStorage) Delete(ctx context.Context, collections ...inventory.Collection) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM ledger_documents WHERE name = ANY($1)`,
		pq.Array(collectionNames(collections)),
	)
	if err != nil {
		return fmt.Errorf("ドキュメント削除に失敗しました: %w", err)
	}
	return nil
}

// Ping checks database connectivity
// データベース接続を確認
func (s *PostgreSQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
// データベース接続をクローズ
func (s *PostgreSQLStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanDocuments(rows rowScanner) (map[inventory.Collection][]byte, error) {
	docs := make(map[inventory.Collection][]byte)
	for rows.Next() {
		var (
			name    string
			payload []byte
		)
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("ドキュメントのスキャンに失敗しました: %w", err)
		}
		docs[inventory.Collection(name)] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ドキュメントの読み取りに失敗しました: %w", err)
	}
	return docs, nil
}

func collectionNames(collections []inventory.Collection) []string {
	names := make([]string, len(collections))
	for i, c := range collections {
		names[i] = string(c)
	}
	return names
}
