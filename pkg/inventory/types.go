// Package inventory provides the warehouse inventory transaction ledger
package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a stocked product
// 在庫対象の商品を表現
type Product struct {
	ID       string  `json:"id"`        // 商品ID
	SKU      string  `json:"sku"`       // SKU（在庫管理単位）
	Name     string  `json:"name"`      // 商品名
	Category string  `json:"category"`  // カテゴリ
	Quantity int64   `json:"quantity"`  // 在庫数量
	Unit     string  `json:"unit"`      // 単位（pcs, kg, box）
	Location string  `json:"location"`  // 保管場所
	Price    float64 `json:"price"`     // 販売単価
	Cost     float64 `json:"cost"`      // 原価
	Supplier string  `json:"supplier"`  // 仕入先
	MinLevel int64   `json:"min_level"` // 発注点
}

// OperationType defines the kind of stock operation
// 在庫オペレーションの種類を定義
type OperationType string

const (
	OperationTypeReceipt    OperationType = "Receipt"              // 入荷
	OperationTypeDelivery   OperationType = "Delivery"             // 出荷
	OperationTypeInternal   OperationType = "Internal Transfer"    // 社内移動
	OperationTypeAdjustment OperationType = "Inventory Adjustment" // 棚卸調整
)

// Valid reports whether the type is known
func (t OperationType) Valid() bool {
	switch t {
	case OperationTypeReceipt, OperationTypeDelivery, OperationTypeInternal, OperationTypeAdjustment:
		return true
	}
	return false
}

// OperationStatus defines the lifecycle state of an operation
// オペレーションのライフサイクル状態を定義
type OperationStatus string

const (
	OperationStatusDraft OperationStatus = "Draft" // 下書き
	OperationStatusReady OperationStatus = "Ready" // 準備完了
	OperationStatusDone  OperationStatus = "Done"  // 完了（終端）
)

// Operation represents a multi-line stock transaction
// 複数明細を持つ在庫トランザクションを表現
type Operation struct {
	ID            string          `json:"id"`             // オペレーションID
	Reference     string          `json:"reference"`      // 参照番号（WH/IN/00124 など）
	Type          OperationType   `json:"type"`           // 種類
	Partner       string          `json:"partner"`        // 取引先
	Status        OperationStatus `json:"status"`         // 状態
	ScheduledDate string          `json:"scheduled_date"` // 予定日（YYYY-MM-DD）
	Lines         []OperationLine `json:"lines"`          // 明細
}

// OperationLine is one product line of an operation
// オペレーションの明細行
type OperationLine struct {
	ProductID   string `json:"product_id"`             // 商品ID
	Quantity    int64  `json:"quantity"`               // 要求数量
	Done        int64  `json:"done"`                   // 処理済み数量
	BatchNumber string `json:"batch_number,omitempty"` // バッチ/ロット番号
}

// MovementKind defines the direction of a stock movement
// 在庫移動の方向を定義
type MovementKind string

const (
	MovementKindIn     MovementKind = "IN"     // 入庫
	MovementKindOut    MovementKind = "OUT"    // 出庫
	MovementKindAdjust MovementKind = "ADJUST" // 調整
)

// Movement references used outside of operations
const (
	ReferenceInitialInventory = "Initial Inventory"
	ReferenceManualAdjustment = "Manual Adjustment"
)

// StockMovement is one immutable record of a quantity change
// 数量変更1件分の不変な記録
type StockMovement struct {
	ID           string       `json:"id"`                     // 移動ID
	ProductID    string       `json:"product_id"`             // 商品ID
	Date         time.Time    `json:"date"`                   // 日時
	Kind         MovementKind `json:"type"`                   // 種類
	Quantity     int64        `json:"quantity"`               // 符号付き増減量
	Reference    string       `json:"reference"`              // 発生元参照
	BatchNumber  string       `json:"batch_number,omitempty"` // バッチ番号
	BalanceAfter int64        `json:"balance_after"`          // 適用後残高
}

// AuditAction is the code of an audited action
type AuditAction string

const (
	AuditActionCreate     AuditAction = "CREATE"
	AuditActionUpdate     AuditAction = "UPDATE"
	AuditActionDelete     AuditAction = "DELETE"
	AuditActionBulkDelete AuditAction = "BULK_DELETE"
	AuditActionAdjust     AuditAction = "ADJUST"
	AuditActionCreateOp   AuditAction = "CREATE_OP"
	AuditActionUpdateOp   AuditAction = "UPDATE_OP"
	AuditActionConfirmOp  AuditAction = "CONFIRM_OP"
	AuditActionProcessOp  AuditAction = "PROCESS_OP"
	AuditActionCreateUser AuditAction = "CREATE_USER"
	AuditActionDeleteUser AuditAction = "DELETE_USER"
	AuditActionReset      AuditAction = "RESET"
)

// AuditLog is a user-attributed action record
// ユーザーに紐づく操作記録
type AuditLog struct {
	ID        string      `json:"id"`                  // 監査ログID
	Action    AuditAction `json:"action"`              // アクションコード
	Details   string      `json:"details"`             // 詳細
	User      string      `json:"user"`                // 実行ユーザー表示名
	Timestamp time.Time   `json:"timestamp"`           // 日時
	EntityID  string      `json:"entity_id,omitempty"` // 関連エンティティID
}

// Role is a user's permission level
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// User represents an operator of the warehouse system
// 倉庫システムの利用者を表現
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	Avatar       string `json:"avatar"`
	PasswordHash string `json:"password_hash,omitempty"`
}

// Public returns a copy without credential material
// 認証情報を除いたコピーを返す
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// InsightType classifies an advisory insight
type InsightType string

const (
	InsightWarning    InsightType = "warning"
	InsightSuggestion InsightType = "suggestion"
	InsightSuccess    InsightType = "success"
)

// Insight is one advisory message returned by the advisor
// アドバイザーが返す分析メッセージ
type Insight struct {
	Type    InsightType `json:"type"`
	Message string      `json:"message"`
	Action  string      `json:"action,omitempty"`
}

// ProductStatus is the derived stock status label
// 在庫状態の表示ラベル
type ProductStatus string

const (
	ProductStatusInStock    ProductStatus = "In Stock"
	ProductStatusLowStock   ProductStatus = "Low Stock"
	ProductStatusOutOfStock ProductStatus = "Out of Stock"
)

// NewID generates a new unique identifier
// 新しい一意識別子を生成
func NewID() string {
	return uuid.New().String()
}
