package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// AuditRetention is the number of audit entries kept by the ledger
// 監査ログの保持件数
const AuditRetention = 100

// Ledger owns the persisted collections and applies pre-validated change sets
// 永続化コレクションを所有し、検証済みの変更セットを適用する
type Ledger struct {
	storage Storage
	logger  *zap.Logger
	metrics *Metrics
	clock   func() time.Time
	seed    SeedData
}

// LedgerOption configures a Ledger
type LedgerOption func(*Ledger)

// WithClock overrides the time source used for seeded movements
func WithClock(clock func() time.Time) LedgerOption {
	return func(l *Ledger) { l.clock = clock }
}

// WithSeed replaces the default data written on first use
func WithSeed(seed SeedData) LedgerOption {
	return func(l *Ledger) { l.seed = seed }
}

// WithLedgerMetrics attaches collectors for apply latency
func WithLedgerMetrics(metrics *Metrics) LedgerOption {
	return func(l *Ledger) { l.metrics = metrics }
}

// NewLedger creates a new ledger over the given storage backend
// 指定ストレージ上に新しい台帳を作成
func NewLedger(storage Storage, logger *zap.Logger, opts ...LedgerOption) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		storage: storage,
		logger:  logger,
		clock:   time.Now,
		seed:    DefaultSeed(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ChangeSet is one logical unit of writes produced by a validated mutation
// 検証済みの更新から生成される1つの論理的な書き込み単位
type ChangeSet struct {
	Operations        []Operation     // upsert（新規は先頭に追加）
	Products          []Product       // upsert
	DeletedProductIDs []string        // 削除する商品ID
	Movements         []StockMovement // 追記する在庫移動
	AuditLogs         []AuditLog      // 先頭に追加する監査ログ（古い順）
	Users             []User          // upsert
	DeletedUserIDs    []string        // 削除するユーザーID
}

// IsEmpty reports whether the change set writes nothing
func (c ChangeSet) IsEmpty() bool {
	return len(c.collections()) == 0
}

func (c ChangeSet) collections() []Collection {
	var cols []Collection
	if len(c.Products) > 0 || len(c.DeletedProductIDs) > 0 {
		cols = append(cols, CollectionProducts)
	}
	if len(c.Operations) > 0 {
		cols = append(cols, CollectionOperations)
	}
	if len(c.Movements) > 0 {
		cols = append(cols, CollectionMovements)
	}
	if len(c.AuditLogs) > 0 {
		cols = append(cols, CollectionAuditLogs)
	}
	if len(c.Users) > 0 || len(c.DeletedUserIDs) > 0 {
		cols = append(cols, CollectionUsers)
	}
	return cols
}

// Init seeds every missing collection exactly once
// 存在しないコレクションに初期データを一度だけ投入
func (l *Ledger) Init(ctx context.Context) error {
	var seeded []Collection
	err := l.storage.Update(ctx, AllCollections, func(docs map[Collection][]byte) (map[Collection][]byte, error) {
		out := make(map[Collection][]byte)
		seeded = seeded[:0]

		products, hasProducts, err := decodeDoc[Product](docs, CollectionProducts)
		if err != nil {
			return nil, err
		}
		if !hasProducts {
			products = append([]Product(nil), l.seed.Products...)
			if out[CollectionProducts], err = encodeDoc(products); err != nil {
				return nil, err
			}
			seeded = append(seeded, CollectionProducts)
		}

		if _, ok := docs[CollectionMovements]; !ok {
			// 既存の数量から初期在庫の移動を生成し、累積和と数量を一致させる
			recorder := NewMovementRecorder(l.clock)
			movements := make([]StockMovement, 0, len(products))
			for _, p := range products {
				movements = append(movements, recorder.Entry(p.ID, p.Quantity, MovementKindIn, ReferenceInitialInventory, p.Quantity, ""))
			}
			if out[CollectionMovements], err = encodeDoc(movements); err != nil {
				return nil, err
			}
			seeded = append(seeded, CollectionMovements)
		}

		if _, ok := docs[CollectionOperations]; !ok {
			if out[CollectionOperations], err = encodeDoc(l.seed.Operations); err != nil {
				return nil, err
			}
			seeded = append(seeded, CollectionOperations)
		}

		if _, ok := docs[CollectionAuditLogs]; !ok {
			if out[CollectionAuditLogs], err = encodeDoc([]AuditLog{}); err != nil {
				return nil, err
			}
			seeded = append(seeded, CollectionAuditLogs)
		}

		if _, ok := docs[CollectionUsers]; !ok {
			users, err := l.seed.users()
			if err != nil {
				return nil, err
			}
			if out[CollectionUsers], err = encodeDoc(users); err != nil {
				return nil, err
			}
			seeded = append(seeded, CollectionUsers)
		}
		return out, nil
	})
	if err != nil {
		return wrapStorage("init", "台帳の初期化に失敗しました", err)
	}

	if len(seeded) > 0 {
		cols := make([]string, len(seeded))
		for i, c := range seeded {
			cols[i] = string(c)
		}
		l.logger.Info("初期データを投入しました", zap.Strings("collections", cols))
	}
	return nil
}

// Reset discards every collection and re-seeds the defaults
// すべてのコレクションを破棄して初期データを再投入
func (l *Ledger) Reset(ctx context.Context) error {
	if err := l.storage.Delete(ctx, AllCollections...); err != nil {
		return wrapStorage("reset", "台帳のリセットに失敗しました", err)
	}
	l.logger.Warn("台帳をリセットしました")
	return l.Init(ctx)
}

// Ping checks the storage backend
func (l *Ledger) Ping(ctx context.Context) error {
	if err := l.storage.Ping(ctx); err != nil {
		return wrapStorage("ping", "ストレージへの接続確認に失敗しました", err)
	}
	return nil
}

// Products returns every product
// すべての商品を取得
func (l *Ledger) Products(ctx context.Context) ([]Product, error) {
	return loadCollection[Product](ctx, l, CollectionProducts)
}

// Operations returns every operation, most recently created first
// すべてのオペレーションを取得
func (l *Ledger) Operations(ctx context.Context) ([]Operation, error) {
	return loadCollection[Operation](ctx, l, CollectionOperations)
}

// Movements returns stock movements newest-first, optionally for one product
// 在庫移動を新しい順に取得（商品IDで絞り込み可能）
func (l *Ledger) Movements(ctx context.Context, productID string) ([]StockMovement, error) {
	movements, err := loadCollection[StockMovement](ctx, l, CollectionMovements)
	if err != nil {
		return nil, err
	}
	SortMovementsNewestFirst(movements)
	if productID == "" {
		return movements, nil
	}
	filtered := make([]StockMovement, 0)
	for _, m := range movements {
		if m.ProductID == productID {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// AuditLogs returns audit entries newest-first
// 監査ログを新しい順に取得
func (l *Ledger) AuditLogs(ctx context.Context) ([]AuditLog, error) {
	logs, err := loadCollection[AuditLog](ctx, l, CollectionAuditLogs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
	return logs, nil
}

// Users returns every user including credential hashes
func (l *Ledger) Users(ctx context.Context) ([]User, error) {
	return loadCollection[User](ctx, l, CollectionUsers)
}

// PutProducts replaces the product collection wholesale
func (l *Ledger) PutProducts(ctx context.Context, products []Product) error {
	return putCollection(ctx, l, CollectionProducts, products)
}

// PutOperations replaces the operation collection wholesale
func (l *Ledger) PutOperations(ctx context.Context, ops []Operation) error {
	return putCollection(ctx, l, CollectionOperations, ops)
}

// PutMovements replaces the movement collection wholesale
func (l *Ledger) PutMovements(ctx context.Context, movements []StockMovement) error {
	return putCollection(ctx, l, CollectionMovements, movements)
}

// PutAuditLogs replaces the audit collection, keeping the retention cap
func (l *Ledger) PutAuditLogs(ctx context.Context, logs []AuditLog) error {
	if len(logs) > AuditRetention {
		logs = logs[:AuditRetention]
	}
	return putCollection(ctx, l, CollectionAuditLogs, logs)
}

// PutUsers replaces the user collection wholesale
func (l *Ledger) PutUsers(ctx context.Context, users []User) error {
	return putCollection(ctx, l, CollectionUsers, users)
}

// SaveProduct upserts one product by id
// 商品をIDでupsert
func (l *Ledger) SaveProduct(ctx context.Context, product Product) error {
	return l.Apply(ctx, ChangeSet{Products: []Product{product}})
}

// SaveOperation upserts one operation by id
// オペレーションをIDでupsert
func (l *Ledger) SaveOperation(ctx context.Context, op Operation) error {
	return l.Apply(ctx, ChangeSet{Operations: []Operation{op}})
}

// Apply writes a change set as one unit
// 変更セットを1つの単位として書き込み
func (l *Ledger) Apply(ctx context.Context, cs ChangeSet) error {
	cols := cs.collections()
	if len(cols) == 0 {
		return nil
	}

	start := time.Now()
	err := l.storage.Update(ctx, cols, func(docs map[Collection][]byte) (map[Collection][]byte, error) {
		return applyChangeSet(docs, cs)
	})
	l.metrics.observeApply(time.Since(start), err)
	if err != nil {
		return wrapStorage("apply", "台帳への書き込みに失敗しました", err)
	}

	l.logger.Debug("台帳更新完了",
		zap.Int("operations", len(cs.Operations)),
		zap.Int("products", len(cs.Products)),
		zap.Int("deleted_products", len(cs.DeletedProductIDs)),
		zap.Int("movements", len(cs.Movements)),
		zap.Int("audit_logs", len(cs.AuditLogs)),
	)
	return nil
}

func applyChangeSet(docs map[Collection][]byte, cs ChangeSet) (map[Collection][]byte, error) {
	out := make(map[Collection][]byte)

	if len(cs.Products) > 0 || len(cs.DeletedProductIDs) > 0 {
		products, _, err := decodeDoc[Product](docs, CollectionProducts)
		if err != nil {
			return nil, err
		}
		products = upsertByID(products, cs.Products, func(p Product) string { return p.ID }, false)
		products = removeByID(products, cs.DeletedProductIDs, func(p Product) string { return p.ID })
		if out[CollectionProducts], err = encodeDoc(products); err != nil {
			return nil, err
		}
	}

	if len(cs.Operations) > 0 {
		ops, _, err := decodeDoc[Operation](docs, CollectionOperations)
		if err != nil {
			return nil, err
		}
		ops = upsertByID(ops, cs.Operations, func(o Operation) string { return o.ID }, true)
		if out[CollectionOperations], err = encodeDoc(ops); err != nil {
			return nil, err
		}
	}

	if len(cs.Movements) > 0 {
		movements, _, err := decodeDoc[StockMovement](docs, CollectionMovements)
		if err != nil {
			return nil, err
		}
		movements = append(movements, cs.Movements...)
		if out[CollectionMovements], err = encodeDoc(movements); err != nil {
			return nil, err
		}
	}

	if len(cs.AuditLogs) > 0 {
		logs, _, err := decodeDoc[AuditLog](docs, CollectionAuditLogs)
		if err != nil {
			return nil, err
		}
		logs = PrependAuditLogs(logs, cs.AuditLogs, AuditRetention)
		if out[CollectionAuditLogs], err = encodeDoc(logs); err != nil {
			return nil, err
		}
	}

	if len(cs.Users) > 0 || len(cs.DeletedUserIDs) > 0 {
		users, _, err := decodeDoc[User](docs, CollectionUsers)
		if err != nil {
			return nil, err
		}
		users = upsertByID(users, cs.Users, func(u User) string { return u.ID }, false)
		users = removeByID(users, cs.DeletedUserIDs, func(u User) string { return u.ID })
		if out[CollectionUsers], err = encodeDoc(users); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// SortMovementsNewestFirst orders movements by date descending.
// Movements sharing a timestamp keep reverse insertion order.
func SortMovementsNewestFirst(movements []StockMovement) {
	for i, j := 0, len(movements)-1; i < j; i, j = i+1, j-1 {
		movements[i], movements[j] = movements[j], movements[i]
	}
	sort.SliceStable(movements, func(i, j int) bool {
		return movements[i].Date.After(movements[j].Date)
	})
}

func loadCollection[T any](ctx context.Context, l *Ledger, col Collection) ([]T, error) {
	docs, err := l.storage.Load(ctx, col)
	if err != nil {
		return nil, wrapStorage("load_"+string(col), "コレクションの読み込みに失敗しました", err)
	}
	if _, ok := docs[col]; !ok {
		// 未作成のストアは空として扱い、初期データを投入する
		if err := l.Init(ctx); err != nil {
			// 並行した初期化に負けた場合は相手の投入結果を読み直す
			var ce *ConcurrencyError
			if !errors.As(err, &ce) {
				return nil, err
			}
		}
		if docs, err = l.storage.Load(ctx, col); err != nil {
			return nil, wrapStorage("load_"+string(col), "コレクションの読み込みに失敗しました", err)
		}
	}
	items, _, err := decodeDoc[T](docs, col)
	if err != nil {
		return nil, wrapStorage("decode_"+string(col), "コレクションの解析に失敗しました", err)
	}
	return items, nil
}

func putCollection[T any](ctx context.Context, l *Ledger, col Collection, items []T) error {
	raw, err := encodeDoc(items)
	if err != nil {
		return wrapStorage("encode_"+string(col), "コレクションのシリアライズに失敗しました", err)
	}
	err = l.storage.Update(ctx, []Collection{col}, func(map[Collection][]byte) (map[Collection][]byte, error) {
		return map[Collection][]byte{col: raw}, nil
	})
	if err != nil {
		return wrapStorage("put_"+string(col), "コレクションの書き込みに失敗しました", err)
	}
	return nil
}

func decodeDoc[T any](docs map[Collection][]byte, col Collection) ([]T, bool, error) {
	raw, ok := docs[col]
	if !ok || len(raw) == 0 {
		return []T{}, ok, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, true, fmt.Errorf("%s の解析に失敗しました: %w", col, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, true, nil
}

func encodeDoc[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

// upsertByID replaces items with a matching id and adds the rest.
// New items go to the front when prepend is set.
func upsertByID[T any](items, updates []T, id func(T) string, prepend bool) []T {
	index := make(map[string]int, len(items))
	for i, item := range items {
		index[id(item)] = i
	}
	var added []T
	addedIndex := make(map[string]int)
	for _, u := range updates {
		if i, ok := index[id(u)]; ok {
			items[i] = u
			continue
		}
		if i, ok := addedIndex[id(u)]; ok {
			added[i] = u
			continue
		}
		addedIndex[id(u)] = len(added)
		added = append(added, u)
	}
	if len(added) == 0 {
		return items
	}
	if prepend {
		// 後から追加されたものほど先頭に来る
		reversed := make([]T, 0, len(added)+len(items))
		for i := len(added) - 1; i >= 0; i-- {
			reversed = append(reversed, added[i])
		}
		return append(reversed, items...)
	}
	return append(items, added...)
}

func removeByID[T any](items []T, ids []string, id func(T) string) []T {
	if len(ids) == 0 {
		return items
	}
	drop := make(map[string]struct{}, len(ids))
	for _, i := range ids {
		drop[i] = struct{}{}
	}
	kept := items[:0]
	for _, item := range items {
		if _, ok := drop[id(item)]; !ok {
			kept = append(kept, item)
		}
	}
	return kept
}

func wrapStorage(op, msg string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return NewStorageError(op, msg, err)
}
