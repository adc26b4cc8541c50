package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// assertLedgerBalanced は全商品について移動の累積和と数量が一致することを確認する
func assertLedgerBalanced(t *testing.T, m *Manager) {
	t.Helper()
	ctx := context.Background()
	products, err := m.ListProducts(ctx, ProductFilter{})
	require.NoError(t, err)
	movements, err := m.ListMovements(ctx, "")
	require.NoError(t, err)
	for _, p := range products {
		assert.Equal(t, p.Quantity, Replay(movements, p.ID), "product %s", p.ID)
	}
}

// assertRunningBalance は移動を古い順にたどり、各BalanceAfterが直前の残高+増減量と一致することを確認する
func assertRunningBalance(t *testing.T, m *Manager, productID string) {
	t.Helper()
	movements, err := m.ListMovements(context.Background(), productID)
	require.NoError(t, err)
	product, err := m.GetProduct(context.Background(), productID)
	require.NoError(t, err)

	var balance int64
	for i := len(movements) - 1; i >= 0; i-- {
		mv := movements[i]
		balance += mv.Quantity
		assert.Equal(t, balance, mv.BalanceAfter, "movement %s (%s)", mv.ID, mv.Reference)
	}
	assert.Equal(t, product.Quantity, balance)
}

func newDelivery(id, productID string, qty int64) *Operation {
	return &Operation{
		ID: id, Reference: "WH/OUT/" + id, Type: OperationTypeDelivery, Status: OperationStatusReady,
		Lines: []OperationLine{{ProductID: productID, Quantity: qty}},
	}
}

// TestManager_CreateProduct は商品作成時の初期在庫移動のテスト
func TestManager_CreateProduct(t *testing.T) {
	m, _, pub := newTestManager(t)
	ctx := WithActor(context.Background(), "Admin User")

	product := &Product{SKU: "A1", Name: "Alpha", Quantity: 7, MinLevel: 10}

	// テスト実行
	err := m.CreateProduct(ctx, product)

	// アサーション
	require.NoError(t, err)
	assert.NotEmpty(t, product.ID)

	movements, err := m.ListMovements(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, MovementKindIn, movements[0].Kind)
	assert.Equal(t, int64(7), movements[0].Quantity)
	assert.Equal(t, int64(7), movements[0].BalanceAfter)
	assert.Equal(t, ReferenceInitialInventory, movements[0].Reference)

	logs, err := m.ListAuditLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, AuditActionCreate, logs[0].Action)
	assert.Equal(t, "Admin User", logs[0].User)
	assert.Equal(t, "Created product: Alpha", logs[0].Details)

	// 7 <= 10 なので低在庫アラートが発行される
	assert.Len(t, pub.changed, 1)
	assert.Len(t, pub.lowStock, 1)
}

func TestManager_CreateProductDuplicateSKU(t *testing.T) {
	m, _, _ := newTestManager(t, Product{ID: "a", SKU: "A1", Name: "Alpha", Quantity: 1})

	err := m.CreateProduct(context.Background(), &Product{SKU: "A1", Name: "Other"})

	assert.ErrorIs(t, err, ErrDuplicateSKU)
}

func TestManager_CreateProductValidation(t *testing.T) {
	m, _, _ := newTestManager(t)

	err := m.CreateProduct(context.Background(), &Product{SKU: "A1", Name: "Alpha", Quantity: -1})

	assert.True(t, IsValidationError(err))
}

// TestManager_DeliveryExample は出荷の成功と在庫不足のテスト
func TestManager_DeliveryExample(t *testing.T) {
	m, _, _ := newTestManager(t, Product{ID: "a1", SKU: "A1", Name: "Alpha", Quantity: 5, MinLevel: 10})
	ctx := context.Background()

	require.NoError(t, m.CreateOperation(ctx, newDelivery("d1", "a1", 3)))

	// テスト実行
	res, err := m.ProcessOperation(ctx, "d1")

	// アサーション
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	require.Len(t, res.Movements, 1)
	assert.Equal(t, MovementKindOut, res.Movements[0].Kind)
	assert.Equal(t, int64(-3), res.Movements[0].Quantity)
	assert.Equal(t, int64(2), res.Movements[0].BalanceAfter)

	p, err := m.GetProduct(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Quantity)

	// 在庫を超える出荷は失敗し、数量は変わらない
	require.NoError(t, m.CreateOperation(ctx, newDelivery("d2", "a1", 10)))
	_, err = m.ProcessOperation(ctx, "d2")
	assert.ErrorIs(t, err, ErrInsufficientStock)

	p, err = m.GetProduct(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Quantity)
	assertLedgerBalanced(t, m)
}

// TestManager_InsufficientDeliveryLeavesStateUnchanged は失敗時に何も書き込まれないことのテスト
func TestManager_InsufficientDeliveryLeavesStateUnchanged(t *testing.T) {
	m, store, pub := newTestManager(t,
		Product{ID: "a", SKU: "A", Name: "Alpha", Quantity: 5},
		Product{ID: "b", SKU: "B", Name: "Beta", Quantity: 1},
	)
	ctx := context.Background()

	op := &Operation{
		ID: "d", Reference: "WH/OUT/D", Type: OperationTypeDelivery, Status: OperationStatusReady,
		Lines: []OperationLine{{ProductID: "a", Quantity: 2}, {ProductID: "b", Quantity: 2}},
	}
	require.NoError(t, m.CreateOperation(ctx, op))
	before := store.snapshot()

	// テスト実行
	_, err := m.ProcessOperation(ctx, "d")

	// アサーション
	var shortage *InsufficientStockError
	require.True(t, errors.As(err, &shortage))
	assert.Equal(t, "b", shortage.ProductID)
	assert.Equal(t, "Beta", shortage.ProductName)
	assert.Equal(t, before, store.snapshot())
	assert.Empty(t, pub.processed)

	stored, err := m.GetOperation(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, OperationStatusReady, stored.Status)
}

// TestManager_ProcessIsIdempotent は同じオペレーションの二重処理のテスト
func TestManager_ProcessIsIdempotent(t *testing.T) {
	m, _, pub := newTestManager(t, Product{ID: "a", SKU: "A", Name: "Alpha", Quantity: 1})
	ctx := context.Background()
	require.NoError(t, m.CreateOperation(ctx, &Operation{
		ID: "r", Reference: "WH/IN/R", Type: OperationTypeReceipt, Status: OperationStatusReady,
		Lines: []OperationLine{{ProductID: "a", Quantity: 4}},
	}))

	// テスト実行
	first, err := m.ProcessOperation(ctx, "r")
	require.NoError(t, err)
	second, err := m.ProcessOperation(ctx, "r")
	require.NoError(t, err)

	// アサーション
	assert.False(t, first.AlreadyProcessed)
	assert.True(t, second.AlreadyProcessed)
	assert.Empty(t, second.Movements)

	movements, err := m.ListMovements(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, movements, 2) // 初期在庫 + 入荷

	p, err := m.GetProduct(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Quantity)
	assert.Len(t, pub.processed, 1)

	logs, err := m.ListAuditLogs(ctx)
	require.NoError(t, err)
	processed := 0
	for _, l := range logs {
		if l.Action == AuditActionProcessOp {
			processed++
		}
	}
	assert.Equal(t, 1, processed)
}

// TestManager_TwoLineReceipt は複数明細の入荷で監査ログが1件のみであることのテスト
func TestManager_TwoLineReceipt(t *testing.T) {
	m, _, _ := newTestManager(t,
		Product{ID: "a", SKU: "A", Name: "Alpha"},
		Product{ID: "b", SKU: "B", Name: "Beta"},
	)
	ctx := context.Background()
	require.NoError(t, m.CreateOperation(ctx, &Operation{
		ID: "r", Reference: "WH/IN/2", Type: OperationTypeReceipt, Status: OperationStatusReady,
		Lines: []OperationLine{{ProductID: "a", Quantity: 5}, {ProductID: "b", Quantity: 7}},
	}))
	logsBefore, err := m.ListAuditLogs(ctx)
	require.NoError(t, err)

	// テスト実行
	res, err := m.ProcessOperation(ctx, "r")

	// アサーション
	require.NoError(t, err)
	require.Len(t, res.Movements, 2)
	assert.Equal(t, "a", res.Movements[0].ProductID)
	assert.Equal(t, "b", res.Movements[1].ProductID)
	for _, mv := range res.Movements {
		assert.Equal(t, MovementKindIn, mv.Kind)
		assert.Equal(t, "WH/IN/2", mv.Reference)
	}

	logsAfter, err := m.ListAuditLogs(ctx)
	require.NoError(t, err)
	assert.Len(t, logsAfter, len(logsBefore)+1)
	assert.Equal(t, AuditActionProcessOp, logsAfter[0].Action)
	assertLedgerBalanced(t, m)
}

func TestManager_ProcessMissingOperation(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.ProcessOperation(context.Background(), "nope")

	assert.ErrorIs(t, err, ErrOperationNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_OperationLifecycle(t *testing.T) {
	m, _, _ := newTestManager(t, Product{ID: "a", SKU: "A", Name: "Alpha", Quantity: 10})
	ctx := context.Background()

	op := &Operation{Reference: "WH/INT/1", Type: OperationTypeInternal, Lines: []OperationLine{{ProductID: "a", Quantity: 3}}}
	require.NoError(t, m.CreateOperation(ctx, op))
	assert.Equal(t, OperationStatusDraft, op.Status)

	// 参照番号の重複は拒否される
	dup := &Operation{Reference: "WH/INT/1", Type: OperationTypeInternal, Lines: []OperationLine{{ProductID: "a", Quantity: 1}}}
	assert.ErrorIs(t, m.CreateOperation(ctx, dup), ErrDuplicateOperation)

	require.NoError(t, m.ConfirmOperation(ctx, op.ID))
	got, err := m.GetOperation(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, OperationStatusReady, got.Status)

	res, err := m.ProcessOperation(ctx, op.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Movements)
	assert.Equal(t, OperationStatusDone, res.Operation.Status)

	// 完了後は変更できない
	got.Partner = "changed"
	assert.ErrorIs(t, m.UpdateOperation(ctx, got), ErrOperationImmutable)
	assert.ErrorIs(t, m.ConfirmOperation(ctx, op.ID), ErrOperationImmutable)

	p, err := m.GetProduct(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Quantity)
}

func TestManager_CreateOperationRejectsDone(t *testing.T) {
	m, _, _ := newTestManager(t, Product{ID: "a", SKU: "A", Name: "Alpha", Quantity: 10})

	err := m.CreateOperation(context.Background(), &Operation{
		Reference: "X", Type: OperationTypeReceipt, Status: OperationStatusDone,
		Lines: []OperationLine{{ProductID: "a", Quantity: 1}},
	})

	assert.True(t, IsValidationError(err))
}

func TestManager_UpdateProductRecordsAdjustment(t *testing.T) {
	m, _, _ := newTestManager(t, Product{ID: "a", SKU: "A", Name: "Alpha", Quantity: 10})
	ctx := context.Background()

	p, err := m.GetProduct(ctx, "a")
	require.NoError(t, err)
	p.Quantity = 4
	p.Location = "WH/Stock/Row9"

	// テスト実行
	require.NoError(t, m.UpdateProduct(ctx, p))

	// アサーション
	movements, err := m.ListMovements(ctx, "a")
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, MovementKindAdjust, movements[0].Kind)
	assert.Equal(t, int64(-6), movements[0].Quantity)
	assert.Equal(t, ReferenceManualAdjustment, movements[0].Reference)

	// 数量以外の変更では移動は記録されない
	p.Name = "Alpha v2"
	require.NoError(t, m.UpdateProduct(ctx, p))
	movements, err = m.ListMovements(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, movements, 2)
	assertLedgerBalanced(t, m)
}

func TestManager_AdjustStock(t *testing.T) {
	m, _, _ := newTestManager(t, Product{ID: "a", SKU: "A", Name: "Alpha", Quantity: 10})
	ctx := context.Background()

	require.NoError(t, m.AdjustStock(ctx, "a", 13, "Cycle count"))
	require.NoError(t, m.AdjustStock(ctx, "a", 13, "Cycle count"))

	movements, err := m.ListMovements(ctx, "a")
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, int64(3), movements[0].Quantity)
	assert.Equal(t, "Cycle count", movements[0].Reference)

	assert.ErrorIs(t, m.AdjustStock(ctx, "missing", 1, ""), ErrProductNotFound)
	assertLedgerBalanced(t, m)
}

func TestManager_DeleteKeepsHistory(t *testing.T) {
	m, _, _ := newTestManager(t,
		Product{ID: "a", SKU: "A", Name: "Alpha", Quantity: 1},
		Product{ID: "b", SKU: "B", Name: "Beta", Quantity: 2},
		Product{ID: "c", SKU: "C", Name: "Gamma", Quantity: 3},
	)
	ctx := context.Background()

	require.NoError(t, m.DeleteProduct(ctx, "a"))
	n, err := m.BulkDeleteProducts(ctx, []string{"b", "c", "c", "zzz"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	products, err := m.ListProducts(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.Empty(t, products)

	movements, err := m.ListMovements(ctx, "")
	require.NoError(t, err)
	assert.Len(t, movements, 3)

	logs, err := m.ListAuditLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, AuditActionBulkDelete, logs[0].Action)
	assert.Equal(t, "Deleted 2 products", logs[0].Details)

	_, err = m.BulkDeleteProducts(ctx, []string{"zzz"})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestManager_PersistenceFailure(t *testing.T) {
	m, store, _ := newTestManager(t, Product{ID: "a", SKU: "A", Name: "Alpha", Quantity: 5})
	ctx := context.Background()
	require.NoError(t, m.CreateOperation(ctx, newDelivery("d", "a", 1)))
	store.failUpdate = errors.New("disk full")

	// テスト実行
	_, err := m.ProcessOperation(ctx, "d")

	// アサーション
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)

	store.failUpdate = nil
	op, err := m.GetOperation(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, OperationStatusReady, op.Status)
	assertLedgerBalanced(t, m)
}

// MockAdvisor はテスト用のAdvisorモック
type MockAdvisor struct {
	mock.Mock
}

func (a *MockAdvisor) Analyze(ctx context.Context, snapshot InventorySnapshot) ([]Insight, error) {
	args := a.Called(ctx, snapshot)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Insight), args.Error(1)
}

func TestManager_Insights(t *testing.T) {
	products := []Product{{ID: "a", SKU: "A", Name: "Alpha", Quantity: 2, MinLevel: 5, Price: 3}}

	t.Run("アドバイザー未設定", func(t *testing.T) {
		m, _, _ := newTestManager(t, products...)
		insights, err := m.Insights(context.Background())
		require.NoError(t, err)
		assert.Equal(t, FallbackInsights(), insights)
	})

	t.Run("アドバイザー成功", func(t *testing.T) {
		advisor := new(MockAdvisor)
		want := []Insight{{Type: InsightWarning, Message: "Reorder Alpha", Action: "Reorder Now"}}
		advisor.On("Analyze", mock.Anything, BuildSnapshot(products)).Return(want, nil)

		m, _, _ := newTestManager(t, products...)
		m.advisor = advisor

		insights, err := m.Insights(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, insights)
		advisor.AssertExpectations(t)
	})

	t.Run("アドバイザー失敗", func(t *testing.T) {
		advisor := new(MockAdvisor)
		advisor.On("Analyze", mock.Anything, mock.Anything).Return(nil, errors.New("quota exceeded"))

		m, store, _ := newTestManager(t, products...)
		m.advisor = advisor
		before := store.snapshot()

		insights, err := m.Insights(context.Background())
		require.NoError(t, err)
		assert.Equal(t, FallbackInsights(), insights)
		assert.Equal(t, before, store.snapshot())
	})
}

func TestManager_Dashboard(t *testing.T) {
	store := newDocStore()
	ledger := NewLedger(store, zap.NewNop())
	m := NewManager(ledger, nil, zap.NewNop(), nil, WithMetrics(NewMetrics(nil)))

	summary, err := m.Dashboard(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, summary.TotalProducts)
	assert.Equal(t, 2, summary.LowStock)
	assert.Equal(t, 1, summary.OutOfStock)
}

func TestManager_UsersAndLogin(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	user := &User{Name: "Picker", Email: "picker@nex.com", Role: RoleUser}
	require.NoError(t, m.CreateUser(ctx, user, "s3cret"))
	assert.Empty(t, user.PasswordHash)

	dup := &User{Name: "Other", Email: "PICKER@nex.com", Role: RoleUser}
	assert.ErrorIs(t, m.CreateUser(ctx, dup, "x"), ErrDuplicateUser)

	logged, err := m.Login(ctx, "picker@nex.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.Empty(t, logged.PasswordHash)

	_, err = m.Login(ctx, "picker@nex.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	users, err := m.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Empty(t, users[0].PasswordHash)

	require.NoError(t, m.DeleteUser(ctx, user.ID))
	assert.ErrorIs(t, m.DeleteUser(ctx, user.ID), ErrUserNotFound)
}

func TestManager_Reset(t *testing.T) {
	store := newDocStore()
	ledger := NewLedger(store, zap.NewNop())
	m := NewManager(ledger, nil, zap.NewNop(), nil, WithManagerClock(func() time.Time {
		return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	}))
	ctx := WithActor(context.Background(), "Admin User")

	require.NoError(t, m.DeleteProduct(ctx, "1"))

	// テスト実行
	require.NoError(t, m.Reset(ctx))

	// アサーション
	products, err := m.ListProducts(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, products, 5)

	logs, err := m.ListAuditLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, AuditActionReset, logs[0].Action)
	assertLedgerBalanced(t, m)
}

// ベンチマークテスト
func BenchmarkManager_ProcessOperation(b *testing.B) {
	m, _, _ := newTestManager(b, Product{ID: "a", SKU: "A", Name: "Alpha"})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		op := &Operation{
			Reference: NewID(), Type: OperationTypeReceipt, Status: OperationStatusReady,
			Lines: []OperationLine{{ProductID: "a", Quantity: 1}},
		}
		if err := m.CreateOperation(ctx, op); err != nil {
			b.Fatal(err)
		}
		if _, err := m.ProcessOperation(ctx, op.ID); err != nil {
			b.Fatal(err)
		}
	}
}

// TestManager_CreateProductRejectsReusedID は削除済み商品IDの再利用拒否のテスト
func TestManager_CreateProductRejectsReusedID(t *testing.T) {
	m, _, _ := newTestManager(t, Product{ID: "a", SKU: "A", Name: "Alpha", Quantity: 5})
	ctx := context.Background()
	require.NoError(t, m.DeleteProduct(ctx, "a"))

	// テスト実行
	err := m.CreateProduct(ctx, &Product{ID: "a", SKU: "A", Name: "Alpha again", Quantity: 3})

	// アサーション
	assert.ErrorIs(t, err, ErrDuplicateProduct)

	fresh := &Product{SKU: "A", Name: "Alpha again", Quantity: 3}
	require.NoError(t, m.CreateProduct(ctx, fresh))
	assert.NotEqual(t, "a", fresh.ID)
	assertLedgerBalanced(t, m)
	assertRunningBalance(t, m, fresh.ID)
}

// TestManager_ProcessReceiptOverflowWritesNothing は上限を超える入荷の拒否のテスト
func TestManager_ProcessReceiptOverflowWritesNothing(t *testing.T) {
	m, store, _ := newTestManager(t, Product{ID: "a", SKU: "A", Name: "Alpha", Quantity: maxQuantity})
	ctx := context.Background()
	op := &Operation{
		Reference: "WH/IN/900", Type: OperationTypeReceipt, Status: OperationStatusReady,
		Lines: []OperationLine{{ProductID: "a", Quantity: maxQuantity}},
	}
	require.NoError(t, m.CreateOperation(ctx, op))
	before := store.snapshot()

	// テスト実行
	_, err := m.ProcessOperation(ctx, op.ID)

	// アサーション
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, before, store.snapshot())

	stored, err := m.GetOperation(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, OperationStatusReady, stored.Status)

	// 数量を変えない更新は引き続き可能
	p, err := m.GetProduct(ctx, "a")
	require.NoError(t, err)
	p.Name = "Alpha renamed"
	assert.NoError(t, m.UpdateProduct(ctx, p))
}

// TestManager_RunningBalanceAcrossLifecycle は作成・入出荷・編集・調整を通した残高連鎖のテスト
func TestManager_RunningBalanceAcrossLifecycle(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	product := &Product{SKU: "CHAIN-1", Name: "Chain", Quantity: 10, MinLevel: 1}
	require.NoError(t, m.CreateProduct(ctx, product))

	receipt := &Operation{
		Reference: "WH/IN/CHAIN", Type: OperationTypeReceipt, Status: OperationStatusReady,
		Lines: []OperationLine{{ProductID: product.ID, Quantity: 4}, {ProductID: product.ID, Quantity: 6}},
	}
	require.NoError(t, m.CreateOperation(ctx, receipt))
	_, err := m.ProcessOperation(ctx, receipt.ID)
	require.NoError(t, err)

	delivery := newDelivery("chain-out", product.ID, 7)
	require.NoError(t, m.CreateOperation(ctx, delivery))
	_, err = m.ProcessOperation(ctx, delivery.ID)
	require.NoError(t, err)

	edited, err := m.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	edited.Quantity = 20
	require.NoError(t, m.UpdateProduct(ctx, edited))

	count := &Operation{
		Reference: "WH/ADJ/CHAIN", Type: OperationTypeAdjustment, Status: OperationStatusReady,
		Lines: []OperationLine{{ProductID: product.ID, Quantity: 0}},
	}
	require.NoError(t, m.CreateOperation(ctx, count))
	_, err = m.ProcessOperation(ctx, count.ID)
	require.NoError(t, err)

	// アサーション
	movements, err := m.ListMovements(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, movements, 6)
	final, err := m.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), final.Quantity)
	assertRunningBalance(t, m, product.ID)
	assertLedgerBalanced(t, m)
}
