package inventory

import (
	"context"
	"time"
)

type actorKey struct{}

// WithActor attaches the acting user's display name to the context
// 実行ユーザーの表示名をコンテキストに設定
func WithActor(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, actorKey{}, name)
}

// ActorFromContext returns the acting user or "system"
// コンテキストから実行ユーザーを取得（未設定ならsystem）
func ActorFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(actorKey{}).(string); ok && name != "" {
		return name
	}
	return "system"
}

// AuditTrail records user-attributed actions
// ユーザーに紐づく操作を記録する監査証跡
type AuditTrail struct {
	ledger *Ledger
	clock  func() time.Time
}

// NewAuditTrail creates an audit trail over the ledger
func NewAuditTrail(ledger *Ledger, clock func() time.Time) *AuditTrail {
	if clock == nil {
		clock = time.Now
	}
	return &AuditTrail{ledger: ledger, clock: clock}
}

// Entry builds an audit record without writing it
func (a *AuditTrail) Entry(action AuditAction, details, user, entityID string) AuditLog {
	return AuditLog{
		ID:        NewID(),
		Action:    action,
		Details:   details,
		User:      user,
		Timestamp: a.clock().UTC(),
		EntityID:  entityID,
	}
}

// Record prepends an entry, evicting the oldest beyond the retention cap
// 監査ログを先頭に追加し、保持件数を超えた古いものを削除
func (a *AuditTrail) Record(ctx context.Context, action AuditAction, details, user, entityID string) (AuditLog, error) {
	entry := a.Entry(action, details, user, entityID)
	if err := a.ledger.Apply(ctx, ChangeSet{AuditLogs: []AuditLog{entry}}); err != nil {
		return AuditLog{}, err
	}
	return entry, nil
}

// List returns entries newest-first
func (a *AuditTrail) List(ctx context.Context) ([]AuditLog, error) {
	return a.ledger.AuditLogs(ctx)
}

// PrependAuditLogs puts entries (given oldest first) ahead of logs and truncates to limit
// 監査ログを先頭に追加して上限件数に切り詰め
func PrependAuditLogs(logs, entries []AuditLog, limit int) []AuditLog {
	out := make([]AuditLog, 0, len(logs)+len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	out = append(out, logs...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
