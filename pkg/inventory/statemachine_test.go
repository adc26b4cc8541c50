package inventory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stockFixture() []Product {
	return []Product{
		{ID: "a", SKU: "A-1", Name: "Widget", Quantity: 5, MinLevel: 2},
		{ID: "b", SKU: "B-1", Name: "Gadget", Quantity: 0, MinLevel: 1},
	}
}

func TestStateMachine_Confirm(t *testing.T) {
	sm := NewStateMachine(nil)

	ready, err := sm.Confirm(Operation{Status: OperationStatusDraft})
	require.NoError(t, err)
	assert.Equal(t, OperationStatusReady, ready.Status)

	same, err := sm.Confirm(Operation{Status: OperationStatusReady})
	require.NoError(t, err)
	assert.Equal(t, OperationStatusReady, same.Status)

	_, err = sm.Confirm(Operation{Status: OperationStatusDone})
	assert.ErrorIs(t, err, ErrOperationImmutable)
}

func TestStateMachine_ProcessReceipt(t *testing.T) {
	sm := NewStateMachine(nil)
	products := stockFixture()
	op := &Operation{
		ID: "r1", Reference: "WH/IN/1", Type: OperationTypeReceipt, Status: OperationStatusReady,
		Lines: []OperationLine{
			{ProductID: "a", Quantity: 3, BatchNumber: "LOT-9"},
			{ProductID: "a", Quantity: 2},
		},
	}

	// テスト実行
	res := sm.Process(op, products)

	// アサーション
	require.Equal(t, TransitionApplied, res.Outcome)
	assert.Equal(t, OperationStatusDone, res.Operation.Status)
	require.Len(t, res.Movements, 2)
	assert.Equal(t, int64(8), res.Movements[0].BalanceAfter)
	assert.Equal(t, "LOT-9", res.Movements[0].BatchNumber)
	assert.Equal(t, int64(10), res.Movements[1].BalanceAfter)
	require.Len(t, res.Products, 1)
	assert.Equal(t, int64(10), res.Products[0].Quantity)
	for _, line := range res.Operation.Lines {
		assert.Equal(t, line.Quantity, line.Done)
	}

	// 入力は変更されない
	assert.Equal(t, OperationStatusReady, op.Status)
	assert.Equal(t, int64(0), op.Lines[0].Done)
	assert.Equal(t, int64(5), products[0].Quantity)
}

func TestStateMachine_ProcessDeliveryShortage(t *testing.T) {
	sm := NewStateMachine(nil)
	op := &Operation{
		ID: "d1", Type: OperationTypeDelivery, Status: OperationStatusReady,
		Lines: []OperationLine{
			{ProductID: "a", Quantity: 3},
			{ProductID: "a", Quantity: 3},
		},
	}

	// テスト実行
	res := sm.Process(op, stockFixture())

	// アサーション
	require.Equal(t, TransitionInsufficientStock, res.Outcome)
	assert.Empty(t, res.Movements)
	err := res.Err()
	assert.ErrorIs(t, err, ErrInsufficientStock)
	var shortage *InsufficientStockError
	require.True(t, errors.As(err, &shortage))
	assert.Equal(t, "Widget", shortage.ProductName)
	assert.Equal(t, int64(6), shortage.Requested)
	assert.Equal(t, int64(5), shortage.Available)
}

func TestStateMachine_ProcessDeliveryMissingProduct(t *testing.T) {
	sm := NewStateMachine(nil)
	op := &Operation{ID: "d2", Type: OperationTypeDelivery, Lines: []OperationLine{{ProductID: "ghost", Quantity: 1}}}

	res := sm.Process(op, stockFixture())

	assert.Equal(t, TransitionInsufficientStock, res.Outcome)
	assert.Equal(t, "ghost", res.MissingID)
}

func TestStateMachine_ProcessReceiptMissingProduct(t *testing.T) {
	sm := NewStateMachine(nil)
	op := &Operation{ID: "r2", Type: OperationTypeReceipt, Lines: []OperationLine{{ProductID: "ghost", Quantity: 1}}}

	res := sm.Process(op, stockFixture())

	assert.Equal(t, TransitionNotFound, res.Outcome)
	assert.ErrorIs(t, res.Err(), ErrProductNotFound)
}

func TestStateMachine_ProcessInternalTransfer(t *testing.T) {
	sm := NewStateMachine(nil)
	op := &Operation{ID: "t1", Type: OperationTypeInternal, Lines: []OperationLine{{ProductID: "a", Quantity: 4}}}

	res := sm.Process(op, stockFixture())

	require.Equal(t, TransitionApplied, res.Outcome)
	assert.Empty(t, res.Movements)
	assert.Empty(t, res.Products)
	assert.Equal(t, int64(4), res.Operation.Lines[0].Done)
	assert.Equal(t, OperationStatusDone, res.Operation.Status)
}

func TestStateMachine_ProcessAdjustment(t *testing.T) {
	sm := NewStateMachine(nil)
	op := &Operation{ID: "adj", Reference: "WH/ADJ/1", Type: OperationTypeAdjustment, Lines: []OperationLine{
		{ProductID: "a", Quantity: 2},
		{ProductID: "b", Quantity: 0},
	}}

	res := sm.Process(op, stockFixture())

	require.Equal(t, TransitionApplied, res.Outcome)
	// 差分が0の明細は移動を生成しない
	require.Len(t, res.Movements, 1)
	assert.Equal(t, MovementKindAdjust, res.Movements[0].Kind)
	assert.Equal(t, int64(-3), res.Movements[0].Quantity)
	assert.Equal(t, int64(2), res.Movements[0].BalanceAfter)
}

func TestStateMachine_ProcessAdjustmentCountsToZero(t *testing.T) {
	sm := NewStateMachine(nil)
	op := &Operation{ID: "adj0", Reference: "WH/ADJ/0", Type: OperationTypeAdjustment, Lines: []OperationLine{
		{ProductID: "a", Quantity: 0},
	}}

	res := sm.Process(op, stockFixture())

	require.Equal(t, TransitionApplied, res.Outcome)
	require.Len(t, res.Movements, 1)
	assert.Equal(t, int64(-5), res.Movements[0].Quantity)
	assert.Equal(t, int64(0), res.Movements[0].BalanceAfter)
	require.Len(t, res.Products, 1)
	assert.Equal(t, int64(0), res.Products[0].Quantity)
}

func TestStateMachine_ProcessRejectsQuantityOverflow(t *testing.T) {
	sm := NewStateMachine(nil)
	products := []Product{
		{ID: "a", SKU: "A-1", Name: "Widget", Quantity: 10},
		{ID: "full", SKU: "F-1", Name: "Full", Quantity: maxQuantity},
	}
	op := &Operation{ID: "in", Reference: "WH/IN/9", Type: OperationTypeReceipt, Status: OperationStatusReady, Lines: []OperationLine{
		{ProductID: "a", Quantity: 5},
		{ProductID: "full", Quantity: maxQuantity},
	}}

	// テスト実行
	res := sm.Process(op, products)

	// アサーション
	assert.Equal(t, TransitionInvalid, res.Outcome)
	assert.Empty(t, res.Products)
	assert.Empty(t, res.Movements)
	assert.True(t, IsValidationError(res.Err()))
	assert.Equal(t, OperationStatusReady, op.Status)
	assert.Equal(t, int64(10), products[0].Quantity)
}

func TestStateMachine_ProcessTerminalAndMissing(t *testing.T) {
	sm := NewStateMachine(nil)

	done := sm.Process(&Operation{ID: "x", Status: OperationStatusDone}, nil)
	assert.Equal(t, TransitionAlreadyDone, done.Outcome)
	assert.NoError(t, done.Err())

	missing := sm.Process(nil, nil)
	assert.Equal(t, TransitionNotFound, missing.Outcome)
	assert.ErrorIs(t, missing.Err(), ErrOperationNotFound)
	assert.Equal(t, "not_found", missing.Outcome.String())
}

func BenchmarkStateMachine_Process(b *testing.B) {
	sm := NewStateMachine(nil)
	products := stockFixture()
	op := &Operation{ID: "r", Type: OperationTypeReceipt, Lines: []OperationLine{
		{ProductID: "a", Quantity: 1}, {ProductID: "b", Quantity: 1},
	}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sm.Process(op, products)
	}
}
