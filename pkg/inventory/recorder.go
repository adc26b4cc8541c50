package inventory

import "time"

// MovementRecorder translates quantity changes into immutable ledger entries
// 数量変更を不変な在庫移動記録に変換
type MovementRecorder struct {
	clock func() time.Time
}

// NewMovementRecorder creates a recorder using the given clock
// 指定した時計を使うレコーダーを作成
func NewMovementRecorder(clock func() time.Time) *MovementRecorder {
	if clock == nil {
		clock = time.Now
	}
	return &MovementRecorder{clock: clock}
}

// Entry builds a movement with a fresh id and the current timestamp.
// balanceAfter must be taken from the already-updated product.
func (r *MovementRecorder) Entry(productID string, delta int64, kind MovementKind, reference string, balanceAfter int64, batch string) StockMovement {
	return StockMovement{
		ID:           NewID(),
		ProductID:    productID,
		Date:         r.clock().UTC(),
		Kind:         kind,
		Quantity:     delta,
		Reference:    reference,
		BatchNumber:  batch,
		BalanceAfter: balanceAfter,
	}
}

// ManualAdjustment returns the movement for a direct quantity edit,
// or false when the quantity did not change.
func (r *MovementRecorder) ManualAdjustment(productID string, oldQty, newQty int64) (StockMovement, bool) {
	delta := newQty - oldQty
	if delta == 0 {
		return StockMovement{}, false
	}
	return r.Entry(productID, delta, MovementKindAdjust, ReferenceManualAdjustment, newQty, ""), true
}

// InitialInventory returns the movement emitted when a product is created
func (r *MovementRecorder) InitialInventory(p Product) StockMovement {
	return r.Entry(p.ID, p.Quantity, MovementKindIn, ReferenceInitialInventory, p.Quantity, "")
}

// Replay sums movement deltas for one product in chronological order
// 商品の在庫移動を時系列に累積して数量を再計算
func Replay(movements []StockMovement, productID string) int64 {
	var total int64
	for _, m := range movements {
		if m.ProductID == productID {
			total += m.Quantity
		}
	}
	return total
}
