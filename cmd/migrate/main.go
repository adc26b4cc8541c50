package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nemonet1337/nexinventory/internal/config"
)

func main() {
	// 設定読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatal("ログ初期化に失敗しました:", err)
	}
	defer logger.Sync()

	logger.Info("nexinventory マイグレーション実行ツール")

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// 接続テスト
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("データベースpingに失敗しました", zap.Error(err))
	}
	logger.Info("データベース接続が確立されました",
		zap.String("host", cfg.Storage.Database.Host),
		zap.String("dbname", cfg.Storage.Database.DBName),
	)

	// マイグレーションディレクトリの確認
	migrationDir := "migrations"
	if len(os.Args) > 1 {
		migrationDir = os.Args[1]
	}
	if _, err := os.Stat(migrationDir); os.IsNotExist(err) {
		logger.Fatal("マイグレーションディレクトリが見つかりません", zap.String("dir", migrationDir))
	}

	// マイグレーション履歴テーブルの作成
	if err := createMigrationTable(ctx, db); err != nil {
		logger.Fatal("マイグレーション履歴テーブル作成に失敗しました", zap.Error(err))
	}

	if err := runMigrations(ctx, db, migrationDir, logger); err != nil {
		logger.Fatal("マイグレーション実行に失敗しました", zap.Error(err))
	}

	logger.Info("すべてのマイグレーションが完了しました")
}

// migration is one SQL file on disk
type migration struct {
	Filename string
	Content  []byte
	Checksum string
}

// createMigrationTable マイグレーション履歴テーブルを作成
func createMigrationTable(ctx context.Context, db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			filename VARCHAR(255) NOT NULL UNIQUE,
			executed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			checksum VARCHAR(64) NOT NULL
		)`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("マイグレーション履歴テーブル作成エラー: %w", err)
	}
	return nil
}

// loadMigrations reads *.sql files in name order
// マイグレーションファイルをファイル名順に読み込み
func loadMigrations(dir string) ([]migration, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("マイグレーションファイル検索エラー: %w", err)
	}
	sort.Strings(files)

	out := make([]migration, 0, len(files))
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("ファイル読み込みエラー %s: %w", filepath.Base(file), err)
		}
		out = append(out, migration{
			Filename: filepath.Base(file),
			Content:  content,
			Checksum: calculateChecksum(content),
		})
	}
	return out, nil
}

// pendingMigrations returns migrations not yet executed.
// An executed file whose content changed is an error.
func pendingMigrations(all []migration, executed map[string]string) ([]migration, error) {
	var pending []migration
	for _, m := range all {
		sum, done := executed[m.Filename]
		if !done {
			pending = append(pending, m)
			continue
		}
		if sum != m.Checksum {
			return nil, fmt.Errorf("実行済みマイグレーションが変更されています: %s", m.Filename)
		}
	}
	return pending, nil
}

// runMigrations マイグレーションを実行
func runMigrations(ctx context.Context, db *sql.DB, dir string, logger *zap.Logger) error {
	all, err := loadMigrations(dir)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		logger.Warn("マイグレーションファイルが見つかりません", zap.String("dir", dir))
		return nil
	}

	executed, err := getExecutedMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("実行済みマイグレーション取得エラー: %w", err)
	}
	pending, err := pendingMigrations(all, executed)
	if err != nil {
		return err
	}

	for _, m := range pending {
		logger.Info("実行中", zap.String("file", m.Filename))
		if err := applyMigration(ctx, db, m); err != nil {
			return err
		}
		logger.Info("完了", zap.String("file", m.Filename), zap.String("checksum", m.Checksum))
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始エラー %s: %w", m.Filename, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(m.Content)); err != nil {
		return fmt.Errorf("マイグレーション実行エラー %s: %w", m.Filename, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (filename, checksum) VALUES ($1, $2)",
		m.Filename, m.Checksum,
	); err != nil {
		return fmt.Errorf("マイグレーション履歴記録エラー %s: %w", m.Filename, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションコミットエラー %s: %w", m.Filename, err)
	}
	return nil
}

// getExecutedMigrations returns filename -> checksum of executed migrations
// 実行済みマイグレーションを取得
func getExecutedMigrations(ctx context.Context, db *sql.DB) (map[string]string, error) {
	executed := make(map[string]string)

	rows, err := db.QueryContext(ctx, "SELECT filename, checksum FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var filename, checksum string
		if err := rows.Scan(&filename, &checksum); err != nil {
			return nil, err
		}
		executed[filename] = checksum
	}
	return executed, rows.Err()
}

// calculateChecksum returns the hex SHA-256 of content
func calculateChecksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
