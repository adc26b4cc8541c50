package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MockStorage はテスト用のStorageモック
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Load(ctx context.Context, collections ...Collection) (map[Collection][]byte, error) {
	args := m.Called(ctx, collections)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[Collection][]byte), args.Error(1)
}

func (m *MockStorage) Update(ctx context.Context, collections []Collection, fn UpdateFunc) error {
	args := m.Called(ctx, collections, fn)
	return args.Error(0)
}

func (m *MockStorage) Delete(ctx context.Context, collections ...Collection) error {
	args := m.Called(ctx, collections)
	return args.Error(0)
}

func (m *MockStorage) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}

// docStore はテスト用のインメモリStorage
type docStore struct {
	mu   sync.Mutex
	docs map[Collection][]byte

	// failUpdate が設定されている場合、Update は常にこのエラーを返す
	failUpdate error
}

func newDocStore() *docStore {
	return &docStore{docs: make(map[Collection][]byte)}
}

func (s *docStore) Load(_ context.Context, collections ...Collection) (map[Collection][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Collection][]byte)
	for _, c := range collections {
		if raw, ok := s.docs[c]; ok {
			out[c] = append([]byte(nil), raw...)
		}
	}
	return out, nil
}

func (s *docStore) Update(_ context.Context, collections []Collection, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate != nil {
		return s.failUpdate
	}
	current := make(map[Collection][]byte)
	for _, c := range collections {
		if raw, ok := s.docs[c]; ok {
			current[c] = append([]byte(nil), raw...)
		}
	}
	out, err := fn(current)
	if err != nil {
		return err
	}
	for c, raw := range out {
		s.docs[c] = raw
	}
	return nil
}

func (s *docStore) Delete(_ context.Context, collections ...Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range collections {
		delete(s.docs, c)
	}
	return nil
}

func (s *docStore) Ping(context.Context) error { return nil }
func (s *docStore) Close() error               { return nil }

func (s *docStore) snapshot() map[Collection]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Collection]string, len(s.docs))
	for c, raw := range s.docs {
		out[c] = string(raw)
	}
	return out
}

// recordingPublisher は発行されたイベントを保持する
type recordingPublisher struct {
	mu        sync.Mutex
	changed   []StockChangedEvent
	lowStock  []LowStockAlertEvent
	processed []OperationProcessedEvent
}

func (p *recordingPublisher) PublishStockChanged(_ context.Context, e StockChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, e)
	return nil
}

func (p *recordingPublisher) PublishLowStockAlert(_ context.Context, e LowStockAlertEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lowStock = append(p.lowStock, e)
	return nil
}

func (p *recordingPublisher) PublishOperationProcessed(_ context.Context, e OperationProcessedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = append(p.processed, e)
	return nil
}

func init() {
	PasswordCost = bcrypt.MinCost
}

// newTestManager は空の台帳と指定商品でマネージャーを作成する
func newTestManager(t testing.TB, products ...Product) (*Manager, *docStore, *recordingPublisher) {
	t.Helper()
	store := newDocStore()
	ledger := NewLedger(store, zap.NewNop(), WithSeed(SeedData{Products: products}))
	require.NoError(t, ledger.Init(context.Background()))
	pub := &recordingPublisher{}
	return NewManager(ledger, pub, zap.NewNop(), nil), store, pub
}
