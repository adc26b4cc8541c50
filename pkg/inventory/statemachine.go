package inventory

import "fmt"

// TransitionOutcome tags the result of processing an operation
// オペレーション処理結果の種別
type TransitionOutcome int

const (
	// TransitionApplied means the operation moved to Done and its effect is ready to persist
	TransitionApplied TransitionOutcome = iota
	// TransitionAlreadyDone means the operation was already Done; nothing changes
	TransitionAlreadyDone
	// TransitionInsufficientStock means an outbound line could not be covered
	TransitionInsufficientStock
	// TransitionNotFound means the operation or a referenced product is missing
	TransitionNotFound
	// TransitionInvalid means a resulting quantity would leave the valid range
	TransitionInvalid
)

func (o TransitionOutcome) String() string {
	switch o {
	case TransitionApplied:
		return "applied"
	case TransitionAlreadyDone:
		return "already_done"
	case TransitionInsufficientStock:
		return "insufficient_stock"
	case TransitionNotFound:
		return "not_found"
	case TransitionInvalid:
		return "invalid"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// TransitionResult is the pure outcome of a Done transition
// Done遷移の計算結果
type TransitionResult struct {
	Outcome   TransitionOutcome
	Operation Operation       // 更新後のオペレーション（Applied時のみ有効）
	Products  []Product       // 数量が変化した商品
	Movements []StockMovement // 明細ごとの在庫移動
	Shortage  *InsufficientStockError
	Invalid   *ValidationError // 上限超過の原因
	MissingID string           // 見つからなかったオペレーションまたは商品のID
}

// Err converts a failed outcome to its error
// 失敗した結果をエラーに変換
func (r TransitionResult) Err() error {
	switch r.Outcome {
	case TransitionInsufficientStock:
		if r.Shortage != nil {
			return r.Shortage
		}
		return ErrInsufficientStock
	case TransitionNotFound:
		if r.MissingID == r.Operation.ID || r.Operation.ID == "" {
			return fmt.Errorf("%w: %s", ErrOperationNotFound, r.MissingID)
		}
		return fmt.Errorf("%w: %s", ErrProductNotFound, r.MissingID)
	case TransitionInvalid:
		if r.Invalid != nil {
			return r.Invalid
		}
		return NewValidationError("quantity", "数量が有効範囲を超えています", "")
	}
	return nil
}

// StateMachine governs the Draft → Ready → Done lifecycle
// 下書き → 準備完了 → 完了 のライフサイクルを管理
type StateMachine struct {
	recorder *MovementRecorder
}

// NewStateMachine creates a state machine emitting movements through recorder
func NewStateMachine(recorder *MovementRecorder) *StateMachine {
	if recorder == nil {
		recorder = NewMovementRecorder(nil)
	}
	return &StateMachine{recorder: recorder}
}

// Confirm moves a Draft operation to Ready
// 下書きを準備完了に遷移
func (s *StateMachine) Confirm(op Operation) (Operation, error) {
	switch op.Status {
	case OperationStatusDraft:
		op.Status = OperationStatusReady
		return op, nil
	case OperationStatusReady:
		return op, nil
	case OperationStatusDone:
		return op, NewBusinessRuleError("immutable_operation", "完了済みオペレーションは変更できません", op.Reference, ErrOperationImmutable)
	}
	return op, NewBusinessRuleError("invalid_transition", "不明な状態からは遷移できません", string(op.Status), ErrInvalidTransition)
}

// Process computes the Done transition of op against the current products.
// Inputs are never mutated; a non-Applied outcome carries no changes.
// 現在の商品に対してDone遷移を計算（入力は変更しない）
func (s *StateMachine) Process(op *Operation, products []Product) TransitionResult {
	if op == nil {
		return TransitionResult{Outcome: TransitionNotFound}
	}
	if op.Status == OperationStatusDone {
		return TransitionResult{Outcome: TransitionAlreadyDone, Operation: *op}
	}

	index := make(map[string]int, len(products))
	for i, p := range products {
		index[p.ID] = i
	}

	if op.Type == OperationTypeDelivery {
		if res, failed := validateOutbound(op, products, index); failed {
			return res
		}
	}

	working := make(map[string]Product)
	var order []string
	lookup := func(id string) (Product, bool) {
		if p, ok := working[id]; ok {
			return p, true
		}
		i, ok := index[id]
		if !ok {
			return Product{}, false
		}
		return products[i], true
	}

	updated := cloneOperation(*op)
	var movements []StockMovement

	for li, line := range op.Lines {
		if op.Type == OperationTypeInternal {
			// 社内移動は数量に影響しない
			updated.Lines[li].Done = line.Quantity
			continue
		}

		p, ok := lookup(line.ProductID)
		if !ok {
			return TransitionResult{Outcome: TransitionNotFound, Operation: *op, MissingID: line.ProductID}
		}

		var (
			delta int64
			kind  MovementKind
		)
		switch op.Type {
		case OperationTypeReceipt:
			delta, kind = line.Quantity, MovementKindIn
		case OperationTypeDelivery:
			delta, kind = -line.Quantity, MovementKindOut
		case OperationTypeAdjustment:
			// 明細数量は実地棚卸数として扱う
			delta, kind = line.Quantity-p.Quantity, MovementKindAdjust
		default:
			return TransitionResult{Outcome: TransitionNotFound, Operation: *op, MissingID: op.ID}
		}

		updated.Lines[li].Done = line.Quantity
		if delta == 0 {
			continue
		}

		if p.Quantity+delta > maxQuantity {
			return TransitionResult{
				Outcome:   TransitionInvalid,
				Operation: *op,
				Invalid: NewValidationError(fmt.Sprintf("lines[%d].quantity", li), "処理後の在庫数量が有効範囲を超えています",
					fmt.Sprintf("%d", p.Quantity+delta)),
			}
		}

		p.Quantity += delta
		if _, seen := working[p.ID]; !seen {
			order = append(order, p.ID)
		}
		working[p.ID] = p
		movements = append(movements, s.recorder.Entry(p.ID, delta, kind, op.Reference, p.Quantity, line.BatchNumber))
	}

	changed := make([]Product, 0, len(order))
	for _, id := range order {
		changed = append(changed, working[id])
	}

	updated.Status = OperationStatusDone
	return TransitionResult{
		Outcome:   TransitionApplied,
		Operation: updated,
		Products:  changed,
		Movements: movements,
	}
}

// validateOutbound checks every delivery line against on-hand stock,
// aggregating repeated lines for the same product.
func validateOutbound(op *Operation, products []Product, index map[string]int) (TransitionResult, bool) {
	requested := make(map[string]int64)
	var order []string
	for _, line := range op.Lines {
		if _, ok := requested[line.ProductID]; !ok {
			order = append(order, line.ProductID)
		}
		requested[line.ProductID] += line.Quantity
	}

	for _, id := range order {
		i, ok := index[id]
		if !ok {
			return TransitionResult{
				Outcome:   TransitionInsufficientStock,
				Operation: *op,
				Shortage:  &InsufficientStockError{ProductID: id, Requested: requested[id]},
				MissingID: id,
			}, true
		}
		if p := products[i]; p.Quantity < requested[id] {
			return TransitionResult{
				Outcome:   TransitionInsufficientStock,
				Operation: *op,
				Shortage: &InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Requested:   requested[id],
					Available:   p.Quantity,
				},
			}, true
		}
	}
	return TransitionResult{}, false
}

func cloneOperation(op Operation) Operation {
	lines := make([]OperationLine, len(op.Lines))
	copy(lines, op.Lines)
	op.Lines = lines
	return op
}
