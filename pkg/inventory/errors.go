package inventory

import (
	"errors"
	"fmt"
)

// Common inventory errors
// 共通の在庫エラー定義

var (
	// ErrNotFound is the root of every not-found error
	// 対象が存在しない場合の共通エラー
	ErrNotFound = errors.New("対象が見つかりません")

	// ErrProductNotFound is returned when a product doesn't exist
	// 商品が存在しない場合のエラー
	ErrProductNotFound = fmt.Errorf("商品: %w", ErrNotFound)

	// ErrOperationNotFound is returned when an operation doesn't exist
	// オペレーションが存在しない場合のエラー
	ErrOperationNotFound = fmt.Errorf("オペレーション: %w", ErrNotFound)

	// ErrUserNotFound is returned when a user doesn't exist
	// ユーザーが存在しない場合のエラー
	ErrUserNotFound = fmt.Errorf("ユーザー: %w", ErrNotFound)

	// ErrInsufficientStock is returned when there's not enough stock
	// 在庫不足の場合のエラー
	ErrInsufficientStock = errors.New("在庫が不足しています")

	// ErrPersistenceUnavailable is returned when the underlying store cannot be reached
	// ストレージに到達できない場合のエラー
	ErrPersistenceUnavailable = errors.New("ストレージが利用できません")

	// ErrDuplicateSKU is returned when a SKU is already used by another product
	// SKUが既に使用されている場合のエラー
	ErrDuplicateSKU = errors.New("SKUは既に存在します")

	// ErrDuplicateProduct is returned when creating a product whose id already exists
	ErrDuplicateProduct = errors.New("商品は既に存在します")

	// ErrDuplicateOperation is returned when an operation id or reference already exists
	// オペレーションが既に存在する場合のエラー
	ErrDuplicateOperation = errors.New("オペレーションは既に存在します")

	// ErrDuplicateUser is returned when an email is already registered
	ErrDuplicateUser = errors.New("ユーザーは既に存在します")

	// ErrOperationImmutable is returned when modifying a Done operation
	// 完了済みオペレーションを変更しようとした場合のエラー
	ErrOperationImmutable = errors.New("完了済みオペレーションは変更できません")

	// ErrInvalidTransition is returned for a lifecycle move that isn't allowed
	ErrInvalidTransition = errors.New("無効な状態遷移です")

	// ErrInvalidCredentials is returned when login fails
	// ログイン失敗時のエラー
	ErrInvalidCredentials = errors.New("メールアドレスまたはパスワードが正しくありません")
)

// InsufficientStockError identifies the product that blocked an outbound operation
// 出庫を阻止した商品を特定する在庫不足エラー
type InsufficientStockError struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int64  `json:"requested"`
	Available   int64  `json:"available"`
}

func (e InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = "不明な商品"
	}
	return fmt.Sprintf("%s: %s (商品ID: %s, 要求: %d, 在庫: %d)",
		ErrInsufficientStock.Error(), name, e.ProductID, e.Requested, e.Available)
}

// Is matches ErrInsufficientStock
func (e InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ValidationError represents a validation error with details
// 詳細付きバリデーションエラーを表現
type ValidationError struct {
	Field   string `json:"field"`   // エラーフィールド
	Message string `json:"message"` // エラーメッセージ
	Value   string `json:"value"`   // 無効な値
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("バリデーションエラー [%s]: %s (値: %s)", e.Field, e.Message, e.Value)
}

// BusinessRuleError represents a business rule violation
// ビジネスルール違反を表現
type BusinessRuleError struct {
	Rule    string `json:"rule"`    // ルール名
	Message string `json:"message"` // エラーメッセージ
	Context string `json:"context"` // コンテキスト情報
	Cause   error  `json:"-"`       // 対応するセンチネルエラー
}

func (e BusinessRuleError) Error() string {
	return fmt.Sprintf("ビジネスルール違反 [%s]: %s (コンテキスト: %s)", e.Rule, e.Message, e.Context)
}

func (e BusinessRuleError) Unwrap() error {
	return e.Cause
}

// ConcurrencyError represents a concurrency-related error
// 同時実行関連のエラーを表現
type ConcurrencyError struct {
	Operation string `json:"operation"` // 操作名
	Resource  string `json:"resource"`  // リソース
	Message   string `json:"message"`   // エラーメッセージ
}

func (e ConcurrencyError) Error() string {
	return fmt.Sprintf("同時実行エラー [%s:%s]: %s", e.Operation, e.Resource, e.Message)
}

// StorageError represents a storage layer error
// ストレージ層のエラーを表現
type StorageError struct {
	Operation string `json:"operation"` // 操作名
	Message   string `json:"message"`   // エラーメッセージ
	Cause     error  `json:"cause"`     // 原因エラー
}

func (e StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ストレージエラー [%s]: %s (原因: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("ストレージエラー [%s]: %s", e.Operation, e.Message)
}

func (e StorageError) Unwrap() error {
	return e.Cause
}

// Is matches ErrPersistenceUnavailable
func (e StorageError) Is(target error) bool {
	return target == ErrPersistenceUnavailable
}

// NewValidationError creates a new validation error
// 新しいバリデーションエラーを作成
func NewValidationError(field, message, value string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewBusinessRuleError creates a new business rule error
// 新しいビジネスルールエラーを作成
func NewBusinessRuleError(rule, message, context string, cause error) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
		Cause:   cause,
	}
}

// NewConcurrencyError creates a new concurrency error
// 新しい同時実行エラーを作成
func NewConcurrencyError(operation, resource, message string) *ConcurrencyError {
	return &ConcurrencyError{
		Operation: operation,
		Resource:  resource,
		Message:   message,
	}
}

// NewStorageError creates a new storage error
// 新しいストレージエラーを作成
func NewStorageError(operation, message string, cause error) *StorageError {
	return &StorageError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
