package inventory

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	skuPattern   = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// maxQuantity bounds any single quantity
const maxQuantity = 999999999

// ValidateSKU SKUの形式をバリデーション
func ValidateSKU(sku string) error {
	if sku == "" {
		return NewValidationError("sku", "SKUが空です", sku)
	}
	if len(sku) > 255 {
		return NewValidationError("sku", "SKUが長すぎます", sku)
	}
	// 英数字、ハイフン、アンダースコア、ドットのみ許可
	if !skuPattern.MatchString(sku) {
		return NewValidationError("sku", "SKUに無効な文字が含まれています", sku)
	}
	return nil
}

// ValidateProductName 商品名をバリデーション
func ValidateProductName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError("name", "商品名が空です", name)
	}
	if len(name) > 500 {
		return NewValidationError("name", "商品名が長すぎます", name)
	}
	return nil
}

// ValidateQuantity 在庫数量をバリデーション（0以上）
func ValidateQuantity(field string, quantity int64) error {
	if quantity < 0 {
		return NewValidationError(field, "負の数量は許可されていません", fmt.Sprintf("%d", quantity))
	}
	if quantity > maxQuantity {
		return NewValidationError(field, "数量が有効範囲を超えています", fmt.Sprintf("%d", quantity))
	}
	return nil
}

// ValidateAmount 金額をバリデーション
func ValidateAmount(field string, amount float64) error {
	if amount < 0 {
		return NewValidationError(field, "金額は0以上である必要があります", fmt.Sprintf("%.2f", amount))
	}
	return nil
}

// ValidateProduct 商品全体をバリデーション
func ValidateProduct(p *Product) error {
	if p == nil {
		return NewValidationError("product", "商品が指定されていません", "")
	}
	if err := ValidateSKU(p.SKU); err != nil {
		return err
	}
	if err := ValidateProductName(p.Name); err != nil {
		return err
	}
	if err := ValidateQuantity("quantity", p.Quantity); err != nil {
		return err
	}
	if err := ValidateQuantity("min_level", p.MinLevel); err != nil {
		return err
	}
	if err := ValidateAmount("price", p.Price); err != nil {
		return err
	}
	return ValidateAmount("cost", p.Cost)
}

// ValidateReference 参照番号をバリデーション
func ValidateReference(reference string) error {
	if strings.TrimSpace(reference) == "" {
		return NewValidationError("reference", "参照番号が空です", reference)
	}
	if len(reference) > 500 {
		return NewValidationError("reference", "参照番号が長すぎます", reference)
	}
	return nil
}

// ValidateOperation オペレーション全体をバリデーション
func ValidateOperation(op *Operation) error {
	if op == nil {
		return NewValidationError("operation", "オペレーションが指定されていません", "")
	}
	if err := ValidateReference(op.Reference); err != nil {
		return err
	}
	if !op.Type.Valid() {
		return NewValidationError("type", "無効なオペレーション種別です", string(op.Type))
	}
	if op.ScheduledDate != "" && !datePattern.MatchString(op.ScheduledDate) {
		return NewValidationError("scheduled_date", "予定日はYYYY-MM-DD形式である必要があります", op.ScheduledDate)
	}
	if len(op.Lines) == 0 {
		return NewValidationError("lines", "明細が1件以上必要です", "0")
	}
	for i, line := range op.Lines {
		if line.ProductID == "" {
			return NewValidationError(fmt.Sprintf("lines[%d].product_id", i), "商品IDが空です", "")
		}
		// 棚卸調整の明細は実地棚卸数なので0を許可する
		minQty := int64(1)
		if op.Type == OperationTypeAdjustment {
			minQty = 0
		}
		if line.Quantity < minQty || line.Quantity > maxQuantity {
			return NewValidationError(fmt.Sprintf("lines[%d].quantity", i), "数量が有効範囲外です", fmt.Sprintf("%d", line.Quantity))
		}
	}
	return nil
}

// ValidateUser ユーザーをバリデーション
func ValidateUser(u *User) error {
	if u == nil {
		return NewValidationError("user", "ユーザーが指定されていません", "")
	}
	if strings.TrimSpace(u.Name) == "" {
		return NewValidationError("name", "ユーザー名が空です", u.Name)
	}
	if !IsValidEmail(u.Email) {
		return NewValidationError("email", "メールアドレスの形式が正しくありません", u.Email)
	}
	switch u.Role {
	case RoleAdmin, RoleManager, RoleUser:
	default:
		return NewValidationError("role", "無効なロールです", string(u.Role))
	}
	return nil
}

// IsValidEmail メールアドレスの形式をチェック
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
