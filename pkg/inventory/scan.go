package inventory

import (
	"fmt"
	"strings"
	"time"
)

// ScanPartner is the partner recorded on scanner-created operations
const ScanPartner = "Scanner Operator"

// NewScanOperation builds a Ready single-line operation for a scanned product.
// Only receipts and deliveries can be created from the scanner.
// スキャナーから読み取った商品の入出荷オペレーションを作成
func NewScanOperation(opType OperationType, productID string, quantity int64, batch string) (*Operation, error) {
	var direction string
	switch opType {
	case OperationTypeReceipt:
		direction = "IN"
	case OperationTypeDelivery:
		direction = "OUT"
	default:
		return nil, NewValidationError("type", "スキャン操作は入荷または出荷のみ対応しています", string(opType))
	}

	id := NewID()
	op := &Operation{
		ID: id,
		// IDの先頭6文字で参照番号を一意にする
		Reference:     fmt.Sprintf("WH/%s/SCAN-%s", direction, strings.ToUpper(id[:6])),
		Type:          opType,
		Partner:       ScanPartner,
		Status:        OperationStatusReady,
		ScheduledDate: time.Now().UTC().Format("2006-01-02"),
		Lines: []OperationLine{{
			ProductID:   productID,
			Quantity:    quantity,
			BatchNumber: strings.TrimSpace(batch),
		}},
	}
	if err := ValidateOperation(op); err != nil {
		return nil, err
	}
	return op, nil
}
