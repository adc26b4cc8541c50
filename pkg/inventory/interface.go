package inventory

import (
	"context"
	"time"
)

// Service defines the contract consumed by the presentation layer
// プレゼンテーション層が利用するインターフェースを定義
type Service interface {
	// 商品 - Products
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, productID string) (*Product, error)
	CreateProduct(ctx context.Context, product *Product) error
	UpdateProduct(ctx context.Context, product *Product) error
	DeleteProduct(ctx context.Context, productID string) error
	BulkDeleteProducts(ctx context.Context, productIDs []string) (int, error)
	AdjustStock(ctx context.Context, productID string, newQuantity int64, reason string) error

	// オペレーション - Operations
	ListOperations(ctx context.Context) ([]Operation, error)
	GetOperation(ctx context.Context, operationID string) (*Operation, error)
	CreateOperation(ctx context.Context, op *Operation) error
	UpdateOperation(ctx context.Context, op *Operation) error
	ConfirmOperation(ctx context.Context, operationID string) error
	ProcessOperation(ctx context.Context, operationID string) (*ProcessResult, error)

	// 履歴 - History
	ListMovements(ctx context.Context, productID string) ([]StockMovement, error)
	ListAuditLogs(ctx context.Context) ([]AuditLog, error)

	// 集計 - Derived state
	Dashboard(ctx context.Context) (*DashboardSummary, error)
	Insights(ctx context.Context) ([]Insight, error)
	Analytics(ctx context.Context, window time.Duration) (*AnalyticsReport, error)
	StockReport(ctx context.Context) ([]byte, error)

	// ユーザー - Users
	Login(ctx context.Context, email, password string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, user *User, password string) error
	DeleteUser(ctx context.Context, userID string) error

	// 管理 - Administration
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Collection names a persisted document collection
// 永続化されるコレクション名
type Collection string

const (
	CollectionProducts   Collection = "products"
	CollectionOperations Collection = "operations"
	CollectionMovements  Collection = "stock_movements"
	CollectionAuditLogs  Collection = "audit_logs"
	CollectionUsers      Collection = "users"
)

// AllCollections lists every collection owned by the ledger
var AllCollections = []Collection{
	CollectionProducts,
	CollectionOperations,
	CollectionMovements,
	CollectionAuditLogs,
	CollectionUsers,
}

// UpdateFunc receives the current documents and returns the documents to write.
// A collection missing from the input has never been written.
type UpdateFunc func(docs map[Collection][]byte) (map[Collection][]byte, error)

// Storage defines the interface for data persistence layer
// データ永続化層のインターフェースを定義
type Storage interface {
	// Load returns the raw documents of the requested collections; missing ones are omitted
	Load(ctx context.Context, collections ...Collection) (map[Collection][]byte, error)

	// Update performs an atomic read-modify-write over the named collections
	Update(ctx context.Context, collections []Collection, fn UpdateFunc) error

	// Delete removes the named collections
	Delete(ctx context.Context, collections ...Collection) error

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// Advisor produces read-only textual insights from an inventory snapshot
// 在庫スナップショットから分析結果を生成する外部アドバイザー
type Advisor interface {
	Analyze(ctx context.Context, snapshot InventorySnapshot) ([]Insight, error)
}

// EventPublisher defines interface for publishing inventory events
// 在庫イベント発行のインターフェースを定義
type EventPublisher interface {
	PublishStockChanged(ctx context.Context, event StockChangedEvent) error
	PublishLowStockAlert(ctx context.Context, event LowStockAlertEvent) error
	PublishOperationProcessed(ctx context.Context, event OperationProcessedEvent) error
}

// Events for inventory operations
// 在庫操作のイベント定義

// StockChangedEvent represents a stock level change
// 在庫レベル変更イベントを表現
type StockChangedEvent struct {
	ProductID   string       `json:"product_id"`
	OldQuantity int64        `json:"old_quantity"`
	NewQuantity int64        `json:"new_quantity"`
	Kind        MovementKind `json:"kind"`
	Reference   string       `json:"reference"`
	MovementID  string       `json:"movement_id"`
	Timestamp   time.Time    `json:"timestamp"`
	User        string       `json:"user"`
}

// LowStockAlertEvent represents a low stock alert
// 低在庫アラートイベントを表現
type LowStockAlertEvent struct {
	ProductID  string    `json:"product_id"`
	SKU        string    `json:"sku"`
	CurrentQty int64     `json:"current_qty"`
	MinLevel   int64     `json:"min_level"`
	Timestamp  time.Time `json:"timestamp"`
}

// OperationProcessedEvent represents an operation reaching Done
// オペレーション完了イベントを表現
type OperationProcessedEvent struct {
	OperationID string        `json:"operation_id"`
	Reference   string        `json:"reference"`
	Type        OperationType `json:"type"`
	Lines       int           `json:"lines"`
	Timestamp   time.Time     `json:"timestamp"`
	User        string        `json:"user"`
}
