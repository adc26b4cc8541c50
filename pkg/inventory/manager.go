package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Manager implements the Service interface over a Ledger
// 台帳上でServiceインターフェースを実装
type Manager struct {
	ledger    *Ledger           // 台帳
	recorder  *MovementRecorder // 在庫移動レコーダー
	audit     *AuditTrail       // 監査証跡
	machine   *StateMachine     // 状態遷移
	auth      *Authenticator    // 認証
	publisher EventPublisher    // イベント発行者
	advisor   Advisor           // 外部アドバイザー
	metrics   *Metrics          // メトリクス
	logger    *zap.Logger       // ログ
	config    *Config           // 設定
	clock     func() time.Time

	// 書き込みは常に1件ずつ実行する
	writeMu sync.Mutex
}

// すべてのインターフェースを実装することを明示
var _ Service = (*Manager)(nil)

// Config holds configuration for the inventory manager
// 在庫マネージャーの設定を保持
type Config struct {
	AdvisorTimeout time.Duration `yaml:"advisor_timeout"` // アドバイザー呼び出しのタイムアウト
	LowStockAlerts bool          `yaml:"low_stock_alerts"` // 低在庫アラートイベントを発行
}

// DefaultConfig returns the manager defaults
func DefaultConfig() *Config {
	return &Config{
		AdvisorTimeout: 20 * time.Second,
		LowStockAlerts: true,
	}
}

// Option configures optional collaborators of the Manager
type Option func(*Manager)

// WithAdvisor sets the insight advisor
func WithAdvisor(advisor Advisor) Option {
	return func(m *Manager) { m.advisor = advisor }
}

// WithMetrics sets the Prometheus collectors
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithManagerClock overrides the time source for movements and audit entries
func WithManagerClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// NewManager creates a new inventory manager
// 新しい在庫マネージャーを作成
func NewManager(ledger *Ledger, publisher EventPublisher, logger *zap.Logger, config *Config, opts ...Option) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		ledger:    ledger,
		publisher: publisher,
		logger:    logger,
		config:    config,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.recorder = NewMovementRecorder(m.clock)
	m.audit = NewAuditTrail(ledger, m.clock)
	m.machine = NewStateMachine(m.recorder)
	m.auth = NewAuthenticator(ledger)
	return m
}

// ProcessResult reports the outcome of ProcessOperation
// オペレーション処理結果
type ProcessResult struct {
	Operation        Operation       `json:"operation"`
	Movements        []StockMovement `json:"movements"`
	AlreadyProcessed bool            `json:"already_processed"`
}

// ListProducts returns products matching the filter
// 条件に一致する商品一覧を取得
func (m *Manager) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	products, err := m.ledger.Products(ctx)
	if err != nil {
		return nil, err
	}
	return FilterProducts(products, filter), nil
}

// GetProduct returns one product
// 商品を1件取得
func (m *Manager) GetProduct(ctx context.Context, productID string) (*Product, error) {
	products, err := m.ledger.Products(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := findProduct(products, productID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return &p, nil
}

// CreateProduct adds a product and records its initial inventory
// 商品を追加し、初期在庫の移動を記録
func (m *Manager) CreateProduct(ctx context.Context, product *Product) error {
	if err := ValidateProduct(product); err != nil {
		return err
	}
	if product.ID == "" {
		product.ID = NewID()
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	products, err := m.ledger.Products(ctx)
	if err != nil {
		return err
	}
	if _, exists := findProduct(products, product.ID); exists {
		return NewBusinessRuleError("duplicate_product", "商品IDが重複しています", product.ID, ErrDuplicateProduct)
	}
	// 削除済み商品の移動履歴は残るため、そのIDは再利用できない
	history, err := m.ledger.Movements(ctx, product.ID)
	if err != nil {
		return err
	}
	if len(history) > 0 {
		return NewBusinessRuleError("reused_product_id", "商品IDは移動履歴で使用済みです", product.ID, ErrDuplicateProduct)
	}
	if err := checkSKU(products, product); err != nil {
		return err
	}

	user := ActorFromContext(ctx)
	movement := m.recorder.InitialInventory(*product)
	cs := ChangeSet{
		Products:  []Product{*product},
		Movements: []StockMovement{movement},
		AuditLogs: []AuditLog{m.audit.Entry(AuditActionCreate, fmt.Sprintf("Created product: %s", product.Name), user, product.ID)},
	}
	if err := m.ledger.Apply(ctx, cs); err != nil {
		return err
	}

	m.afterStockChange(ctx, append(products, *product), cs.Movements, user)
	m.logger.Info("商品登録完了",
		zap.String("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.Int64("quantity", product.Quantity),
		zap.String("user", user),
	)
	return nil
}

// UpdateProduct replaces a product, recording a manual adjustment when its quantity changed
// 商品を更新し、数量が変わった場合は手動調整として記録
func (m *Manager) UpdateProduct(ctx context.Context, product *Product) error {
	if err := ValidateProduct(product); err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	products, err := m.ledger.Products(ctx)
	if err != nil {
		return err
	}
	existing, ok := findProduct(products, product.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProductNotFound, product.ID)
	}
	if err := checkSKU(products, product); err != nil {
		return err
	}

	user := ActorFromContext(ctx)
	cs := ChangeSet{
		Products:  []Product{*product},
		AuditLogs: []AuditLog{m.audit.Entry(AuditActionUpdate, fmt.Sprintf("Updated product: %s", product.Name), user, product.ID)},
	}
	if mv, changed := m.recorder.ManualAdjustment(product.ID, existing.Quantity, product.Quantity); changed {
		cs.Movements = []StockMovement{mv}
	}
	if err := m.ledger.Apply(ctx, cs); err != nil {
		return err
	}

	m.afterStockChange(ctx, replaceProducts(products, cs.Products), cs.Movements, user)
	m.logger.Info("商品更新完了",
		zap.String("product_id", product.ID),
		zap.Int64("old_quantity", existing.Quantity),
		zap.Int64("new_quantity", product.Quantity),
		zap.String("user", user),
	)
	return nil
}

// DeleteProduct removes a product; its movement history is kept
// 商品を削除（在庫移動履歴は保持）
func (m *Manager) DeleteProduct(ctx context.Context, productID string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	products, err := m.ledger.Products(ctx)
	if err != nil {
		return err
	}
	p, ok := findProduct(products, productID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	user := ActorFromContext(ctx)
	err = m.ledger.Apply(ctx, ChangeSet{
		DeletedProductIDs: []string{productID},
		AuditLogs:         []AuditLog{m.audit.Entry(AuditActionDelete, fmt.Sprintf("Deleted product: %s", p.Name), user, productID)},
	})
	if err != nil {
		return err
	}

	m.logger.Info("商品削除完了", zap.String("product_id", productID), zap.String("user", user))
	return nil
}

// BulkDeleteProducts removes several products with a single audit entry
// 複数商品を削除し、監査ログは1件のみ記録
func (m *Manager) BulkDeleteProducts(ctx context.Context, productIDs []string) (int, error) {
	if len(productIDs) == 0 {
		return 0, NewValidationError("ids", "削除対象の商品IDが指定されていません", "")
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	products, err := m.ledger.Products(ctx)
	if err != nil {
		return 0, err
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, id := range productIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := findProduct(products, id); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: %v", ErrProductNotFound, productIDs)
	}

	user := ActorFromContext(ctx)
	err = m.ledger.Apply(ctx, ChangeSet{
		DeletedProductIDs: ids,
		AuditLogs:         []AuditLog{m.audit.Entry(AuditActionBulkDelete, fmt.Sprintf("Deleted %d products", len(ids)), user, "")},
	})
	if err != nil {
		return 0, err
	}

	m.logger.Info("商品一括削除完了", zap.Int("count", len(ids)), zap.String("user", user))
	return len(ids), nil
}

// AdjustStock sets a product's on-hand quantity, recording an ADJUST movement
// 商品の在庫数を直接設定し、調整移動を記録
func (m *Manager) AdjustStock(ctx context.Context, productID string, newQuantity int64, reason string) error {
	if err := ValidateQuantity("quantity", newQuantity); err != nil {
		return err
	}
	if reason == "" {
		reason = ReferenceManualAdjustment
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	products, err := m.ledger.Products(ctx)
	if err != nil {
		return err
	}
	p, ok := findProduct(products, productID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	delta := newQuantity - p.Quantity
	if delta == 0 {
		return nil
	}

	user := ActorFromContext(ctx)
	p.Quantity = newQuantity
	cs := ChangeSet{
		Products:  []Product{p},
		Movements: []StockMovement{m.recorder.Entry(p.ID, delta, MovementKindAdjust, reason, newQuantity, "")},
		AuditLogs: []AuditLog{m.audit.Entry(AuditActionAdjust, fmt.Sprintf("Adjusted %s by %+d (%s)", p.Name, delta, reason), user, p.ID)},
	}
	if err := m.ledger.Apply(ctx, cs); err != nil {
		return err
	}

	m.afterStockChange(ctx, replaceProducts(products, cs.Products), cs.Movements, user)
	m.logger.Info("在庫調整完了",
		zap.String("product_id", productID),
		zap.Int64("delta", delta),
		zap.String("reason", reason),
	)
	return nil
}

// ListOperations returns every operation
// すべてのオペレーションを取得
func (m *Manager) ListOperations(ctx context.Context) ([]Operation, error) {
	return m.ledger.Operations(ctx)
}

// GetOperation returns one operation
func (m *Manager) GetOperation(ctx context.Context, operationID string) (*Operation, error) {
	ops, err := m.ledger.Operations(ctx)
	if err != nil {
		return nil, err
	}
	op, ok := findOperation(ops, operationID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
	}
	return &op, nil
}

// CreateOperation stores a new Draft or Ready operation
// 下書きまたは準備完了のオペレーションを作成
func (m *Manager) CreateOperation(ctx context.Context, op *Operation) error {
	if err := ValidateOperation(op); err != nil {
		return err
	}
	switch op.Status {
	case "":
		op.Status = OperationStatusDraft
	case OperationStatusDraft, OperationStatusReady:
	default:
		return NewValidationError("status", "作成時の状態は Draft または Ready である必要があります", string(op.Status))
	}
	if op.ID == "" {
		op.ID = NewID()
	}
	for i := range op.Lines {
		op.Lines[i].Done = 0
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	ops, err := m.ledger.Operations(ctx)
	if err != nil {
		return err
	}
	if _, exists := findOperation(ops, op.ID); exists {
		return NewBusinessRuleError("duplicate_operation", "オペレーションIDが重複しています", op.ID, ErrDuplicateOperation)
	}
	if err := checkOperationUnique(ops, op); err != nil {
		return err
	}

	user := ActorFromContext(ctx)
	err = m.ledger.Apply(ctx, ChangeSet{
		Operations: []Operation{*op},
		AuditLogs:  []AuditLog{m.audit.Entry(AuditActionCreateOp, fmt.Sprintf("Created operation %s", op.Reference), user, op.ID)},
	})
	if err != nil {
		return err
	}

	m.logger.Info("オペレーション作成完了",
		zap.String("operation_id", op.ID),
		zap.String("reference", op.Reference),
		zap.String("type", string(op.Type)),
		zap.String("status", string(op.Status)),
	)
	return nil
}

// UpdateOperation edits an operation that is not yet Done
// 未完了のオペレーションを編集
func (m *Manager) UpdateOperation(ctx context.Context, op *Operation) error {
	if err := ValidateOperation(op); err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	ops, err := m.ledger.Operations(ctx)
	if err != nil {
		return err
	}
	existing, ok := findOperation(ops, op.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOperationNotFound, op.ID)
	}
	if existing.Status == OperationStatusDone {
		return NewBusinessRuleError("immutable_operation", "完了済みオペレーションは変更できません", existing.Reference, ErrOperationImmutable)
	}
	switch op.Status {
	case "":
		op.Status = existing.Status
	case OperationStatusDraft, OperationStatusReady:
	default:
		return NewBusinessRuleError("invalid_transition", "Done への遷移は処理でのみ行えます", string(op.Status), ErrInvalidTransition)
	}
	if err := checkOperationUnique(ops, op); err != nil {
		return err
	}
	for i := range op.Lines {
		op.Lines[i].Done = 0
	}

	user := ActorFromContext(ctx)
	err = m.ledger.Apply(ctx, ChangeSet{
		Operations: []Operation{*op},
		AuditLogs:  []AuditLog{m.audit.Entry(AuditActionUpdateOp, fmt.Sprintf("Updated operation %s", op.Reference), user, op.ID)},
	})
	if err != nil {
		return err
	}

	m.logger.Info("オペレーション更新完了", zap.String("operation_id", op.ID), zap.String("reference", op.Reference))
	return nil
}

// ConfirmOperation moves a Draft operation to Ready
// 下書きのオペレーションを準備完了にする
func (m *Manager) ConfirmOperation(ctx context.Context, operationID string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	ops, err := m.ledger.Operations(ctx)
	if err != nil {
		return err
	}
	existing, ok := findOperation(ops, operationID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
	}
	confirmed, err := m.machine.Confirm(existing)
	if err != nil {
		return err
	}
	if confirmed.Status == existing.Status {
		return nil
	}

	user := ActorFromContext(ctx)
	return m.ledger.Apply(ctx, ChangeSet{
		Operations: []Operation{confirmed},
		AuditLogs:  []AuditLog{m.audit.Entry(AuditActionConfirmOp, fmt.Sprintf("Confirmed operation %s", confirmed.Reference), user, confirmed.ID)},
	})
}

// ProcessOperation validates an operation against current stock and moves it to Done.
// Re-processing a Done operation is a successful no-op.
// オペレーションを在庫に対して検証し、完了に遷移させる
func (m *Manager) ProcessOperation(ctx context.Context, operationID string) (*ProcessResult, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	ops, err := m.ledger.Operations(ctx)
	if err != nil {
		return nil, err
	}
	products, err := m.ledger.Products(ctx)
	if err != nil {
		return nil, err
	}

	var target *Operation
	if op, ok := findOperation(ops, operationID); ok {
		target = &op
	}

	res := m.machine.Process(target, products)
	opType := OperationType("unknown")
	if target != nil {
		opType = target.Type
	}
	m.metrics.observeOperation(opType, res.Outcome)

	switch res.Outcome {
	case TransitionAlreadyDone:
		m.logger.Info("オペレーションは処理済みです", zap.String("operation_id", operationID))
		return &ProcessResult{Operation: res.Operation, AlreadyProcessed: true}, nil
	case TransitionNotFound:
		if target == nil {
			return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
		}
		return nil, res.Err()
	case TransitionInvalid:
		m.logger.Warn("数量が上限を超えるためオペレーションを処理できません",
			zap.String("operation_id", operationID),
			zap.Error(res.Err()),
		)
		return nil, res.Err()
	case TransitionInsufficientStock:
		m.logger.Warn("在庫不足のためオペレーションを処理できません",
			zap.String("operation_id", operationID),
			zap.Error(res.Err()),
		)
		return nil, res.Err()
	}

	user := ActorFromContext(ctx)
	cs := ChangeSet{
		Operations: []Operation{res.Operation},
		Products:   res.Products,
		Movements:  res.Movements,
		AuditLogs:  []AuditLog{m.audit.Entry(AuditActionProcessOp, fmt.Sprintf("Processed operation %s", res.Operation.Reference), user, res.Operation.ID)},
	}
	if err := m.ledger.Apply(ctx, cs); err != nil {
		m.logger.Error("オペレーション処理の書き込みに失敗しました",
			zap.String("operation_id", operationID),
			zap.Error(err),
		)
		return nil, err
	}

	m.afterStockChange(ctx, replaceProducts(products, res.Products), res.Movements, user)
	if m.publisher != nil {
		event := OperationProcessedEvent{
			OperationID: res.Operation.ID,
			Reference:   res.Operation.Reference,
			Type:        res.Operation.Type,
			Lines:       len(res.Operation.Lines),
			Timestamp:   m.clock().UTC(),
			User:        user,
		}
		if err := m.publisher.PublishOperationProcessed(ctx, event); err != nil {
			m.logger.Error("イベント発行に失敗しました", zap.Error(err))
		}
	}

	m.logger.Info("オペレーション処理完了",
		zap.String("operation_id", res.Operation.ID),
		zap.String("reference", res.Operation.Reference),
		zap.String("type", string(res.Operation.Type)),
		zap.Int("movements", len(res.Movements)),
		zap.String("user", user),
	)
	return &ProcessResult{Operation: res.Operation, Movements: res.Movements}, nil
}

// ListMovements returns stock movements newest-first, optionally for one product
// 在庫移動履歴を取得
func (m *Manager) ListMovements(ctx context.Context, productID string) ([]StockMovement, error) {
	return m.ledger.Movements(ctx, productID)
}

// ListAuditLogs returns audit entries newest-first
// 監査ログを取得
func (m *Manager) ListAuditLogs(ctx context.Context) ([]AuditLog, error) {
	return m.audit.List(ctx)
}

// Dashboard computes the dashboard summary
// ダッシュボード集計を取得
func (m *Manager) Dashboard(ctx context.Context) (*DashboardSummary, error) {
	var (
		products []Product
		ops      []Operation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = m.ledger.Products(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		ops, err = m.ledger.Operations(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	summary := Summarize(products, ops)
	return &summary, nil
}

// Insights asks the advisor about the current stock.
// Advisor failures yield the fallback insight and never affect the ledger.
// アドバイザーに在庫分析を依頼（失敗時は代替メッセージを返す）
func (m *Manager) Insights(ctx context.Context) ([]Insight, error) {
	products, err := m.ledger.Products(ctx)
	if err != nil {
		return nil, err
	}
	if m.advisor == nil {
		return FallbackInsights(), nil
	}

	actx := ctx
	if m.config.AdvisorTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, m.config.AdvisorTimeout)
		defer cancel()
	}

	insights, err := m.advisor.Analyze(actx, BuildSnapshot(products))
	if err != nil {
		m.logger.Warn("在庫分析に失敗しました", zap.Error(err))
		return FallbackInsights(), nil
	}
	if insights == nil {
		insights = []Insight{}
	}
	return insights, nil
}

// Analytics computes ABC classes, turnover and slow movers over the trailing window
// 直近の期間についてABC分類・回転率・滞留在庫を計算
func (m *Manager) Analytics(ctx context.Context, window time.Duration) (*AnalyticsReport, error) {
	if window <= 0 {
		return nil, NewValidationError("window", "分析期間は正の値である必要があります", window.String())
	}
	products, err := m.ledger.Products(ctx)
	if err != nil {
		return nil, err
	}
	movements, err := m.ledger.Movements(ctx, "")
	if err != nil {
		return nil, err
	}
	report := Analyze(products, movements, window, m.clock().UTC())
	return &report, nil
}

// StockReport renders the current stock as CSV
func (m *Manager) StockReport(ctx context.Context) ([]byte, error) {
	products, err := m.ledger.Products(ctx)
	if err != nil {
		return nil, err
	}
	return StockReportCSV(products)
}

// Login checks credentials
// 認証情報を照合
func (m *Manager) Login(ctx context.Context, email, password string) (*User, error) {
	user, err := m.auth.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			m.logger.Warn("ログインに失敗しました", zap.String("email", email))
		}
		return nil, err
	}
	m.logger.Info("ログイン成功", zap.String("user_id", user.ID))
	return user, nil
}

// ListUsers returns users without credential hashes
// ユーザー一覧を取得（パスワードハッシュなし）
func (m *Manager) ListUsers(ctx context.Context) ([]User, error) {
	users, err := m.ledger.Users(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]User, len(users))
	for i, u := range users {
		out[i] = u.Public()
	}
	return out, nil
}

// CreateUser registers a user with a hashed password
// ユーザーを登録
func (m *Manager) CreateUser(ctx context.Context, user *User, password string) error {
	if err := ValidateUser(user); err != nil {
		return err
	}
	if password == "" {
		return NewValidationError("password", "パスワードが空です", "")
	}
	if user.ID == "" {
		user.ID = NewID()
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	users, err := m.ledger.Users(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.ID == user.ID || strings.EqualFold(u.Email, user.Email) {
			return NewBusinessRuleError("duplicate_user", "ユーザーは既に存在します", user.Email, ErrDuplicateUser)
		}
	}

	stored := *user
	stored.PasswordHash = hash
	actor := ActorFromContext(ctx)
	err = m.ledger.Apply(ctx, ChangeSet{
		Users:     []User{stored},
		AuditLogs: []AuditLog{m.audit.Entry(AuditActionCreateUser, fmt.Sprintf("Created user: %s", user.Email), actor, user.ID)},
	})
	if err != nil {
		return err
	}
	user.PasswordHash = ""

	m.logger.Info("ユーザー登録完了", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return nil
}

// DeleteUser removes a user
// ユーザーを削除
func (m *Manager) DeleteUser(ctx context.Context, userID string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	users, err := m.ledger.Users(ctx)
	if err != nil {
		return err
	}
	var target *User
	for i := range users {
		if users[i].ID == userID {
			target = &users[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	actor := ActorFromContext(ctx)
	return m.ledger.Apply(ctx, ChangeSet{
		DeletedUserIDs: []string{userID},
		AuditLogs:      []AuditLog{m.audit.Entry(AuditActionDeleteUser, fmt.Sprintf("Deleted user: %s", target.Email), actor, userID)},
	})
}

// Reset discards all collections and re-seeds the defaults
// すべてのデータを破棄して初期データを再投入
func (m *Manager) Reset(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.ledger.Reset(ctx); err != nil {
		return err
	}
	actor := ActorFromContext(ctx)
	if _, err := m.audit.Record(ctx, AuditActionReset, "Reset database to defaults", actor, ""); err != nil {
		return err
	}
	m.logger.Warn("データベースをリセットしました", zap.String("user", actor))
	return nil
}

// Ping checks the storage backend
func (m *Manager) Ping(ctx context.Context) error {
	return m.ledger.Ping(ctx)
}

// afterStockChange publishes events and refreshes gauges for applied movements
func (m *Manager) afterStockChange(ctx context.Context, products []Product, movements []StockMovement, user string) {
	m.metrics.observeMovements(movements)
	m.metrics.setLowStock(products)

	if m.publisher == nil || len(movements) == 0 {
		return
	}

	touched := make(map[string]struct{})
	for _, mv := range movements {
		event := StockChangedEvent{
			ProductID:   mv.ProductID,
			OldQuantity: mv.BalanceAfter - mv.Quantity,
			NewQuantity: mv.BalanceAfter,
			Kind:        mv.Kind,
			Reference:   mv.Reference,
			MovementID:  mv.ID,
			Timestamp:   mv.Date,
			User:        user,
		}
		if err := m.publisher.PublishStockChanged(ctx, event); err != nil {
			m.logger.Error("イベント発行に失敗しました", zap.Error(err))
		}
		touched[mv.ProductID] = struct{}{}
	}

	if !m.config.LowStockAlerts {
		return
	}
	for _, p := range products {
		if _, ok := touched[p.ID]; !ok || !AtOrBelowMin(p) {
			continue
		}
		event := LowStockAlertEvent{
			ProductID:  p.ID,
			SKU:        p.SKU,
			CurrentQty: p.Quantity,
			MinLevel:   p.MinLevel,
			Timestamp:  m.clock().UTC(),
		}
		if err := m.publisher.PublishLowStockAlert(ctx, event); err != nil {
			m.logger.Error("低在庫アラートの発行に失敗しました", zap.Error(err))
		}
	}
}

func findProduct(products []Product, id string) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func findOperation(ops []Operation, id string) (Operation, bool) {
	for _, op := range ops {
		if op.ID == id {
			return cloneOperation(op), true
		}
	}
	return Operation{}, false
}

// replaceProducts returns a copy of products with updates substituted by id
func replaceProducts(products, updates []Product) []Product {
	out := make([]Product, len(products))
	copy(out, products)
	return upsertByID(out, updates, func(p Product) string { return p.ID }, false)
}

func checkSKU(products []Product, candidate *Product) error {
	for _, p := range products {
		if p.ID != candidate.ID && p.SKU == candidate.SKU {
			return NewBusinessRuleError("duplicate_sku", "SKUは既に使用されています", candidate.SKU, ErrDuplicateSKU)
		}
	}
	return nil
}

func checkOperationUnique(ops []Operation, candidate *Operation) error {
	for _, op := range ops {
		if op.ID == candidate.ID {
			// 更新時は自分自身を除外する
			continue
		}
		if op.Reference == candidate.Reference {
			return NewBusinessRuleError("duplicate_reference", "参照番号が重複しています", candidate.Reference, ErrDuplicateOperation)
		}
	}
	return nil
}
