package inventory

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// StockFilter selects products by derived stock state
// 在庫状態による絞り込み
type StockFilter string

const (
	StockFilterAll StockFilter = "all"
	StockFilterLow StockFilter = "low"
	StockFilterOut StockFilter = "out"
)

// ProductFilter narrows a product listing
// 商品一覧の絞り込み条件
type ProductFilter struct {
	Stock  StockFilter `json:"stock"`
	Search string      `json:"search"` // 商品名またはSKUの部分一致（大文字小文字を区別しない）
}

// IsOutOfStock reports quantity == 0
func IsOutOfStock(p Product) bool {
	return p.Quantity == 0
}

// IsLowStock reports 0 < quantity <= minimum level.
// Out-of-stock products are not low.
func IsLowStock(p Product) bool {
	return p.Quantity > 0 && p.Quantity <= p.MinLevel
}

// AtOrBelowMin reports quantity <= minimum level, including out-of-stock products.
// The dashboard low-stock count uses this broader predicate.
func AtOrBelowMin(p Product) bool {
	return p.Quantity <= p.MinLevel
}

// StatusOf returns the display status of a product
// 商品の在庫状態ラベルを返す
func StatusOf(p Product) ProductStatus {
	switch {
	case IsOutOfStock(p):
		return ProductStatusOutOfStock
	case IsLowStock(p):
		return ProductStatusLowStock
	default:
		return ProductStatusInStock
	}
}

// FilterProducts applies a stock filter and search term
// 在庫フィルタと検索語を適用
func FilterProducts(products []Product, filter ProductFilter) []Product {
	term := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		switch filter.Stock {
		case StockFilterLow:
			if !IsLowStock(p) {
				continue
			}
		case StockFilterOut:
			if !IsOutOfStock(p) {
				continue
			}
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.SKU), term) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// PendingByType counts operations of the given type that are not Done
// 指定種別の未完了オペレーション数
func PendingByType(ops []Operation, t OperationType) int {
	n := 0
	for _, op := range ops {
		if op.Type == t && op.Status != OperationStatusDone {
			n++
		}
	}
	return n
}

// InventoryValue sums quantity × unit price, rounded to cents
// 在庫金額（数量 × 単価）の合計
func InventoryValue(products []Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(p.Quantity)))
	}
	return total.Round(2)
}

// CategoryStock is the on-hand quantity of one category
type CategoryStock struct {
	Category string `json:"category"`
	Quantity int64  `json:"quantity"`
}

// StockByCategory aggregates quantities per category, sorted by name
// カテゴリ別の在庫数量を集計
func StockByCategory(products []Product) []CategoryStock {
	totals := make(map[string]int64)
	for _, p := range products {
		totals[p.Category] += p.Quantity
	}
	out := make([]CategoryStock, 0, len(totals))
	for c, q := range totals {
		out = append(out, CategoryStock{Category: c, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// DashboardSummary holds the derived counts shown on the dashboard
// ダッシュボードに表示する集計値
type DashboardSummary struct {
	TotalProducts     int             `json:"total_products"`
	TotalValue        decimal.Decimal `json:"total_value"`
	LowStock          int             `json:"low_stock"` // 在庫切れを含む
	OutOfStock        int             `json:"out_of_stock"`
	PendingReceipts   int             `json:"pending_receipts"`
	PendingDeliveries int             `json:"pending_deliveries"`
	ByCategory        []CategoryStock `json:"by_category"`
}

// Summarize computes the dashboard summary from current state
// 現在の状態からダッシュボード集計を計算
func Summarize(products []Product, ops []Operation) DashboardSummary {
	s := DashboardSummary{
		TotalProducts:     len(products),
		TotalValue:        InventoryValue(products),
		PendingReceipts:   PendingByType(ops, OperationTypeReceipt),
		PendingDeliveries: PendingByType(ops, OperationTypeDelivery),
		ByCategory:        StockByCategory(products),
	}
	for _, p := range products {
		if AtOrBelowMin(p) {
			s.LowStock++
		}
		if IsOutOfStock(p) {
			s.OutOfStock++
		}
	}
	return s
}

// SnapshotProduct is the advisory view of one product
type SnapshotProduct struct {
	Name  string  `json:"name"`
	SKU   string  `json:"sku"`
	Qty   int64   `json:"qty"`
	Min   int64   `json:"min"`
	Value float64 `json:"value"`
}

// InventorySnapshot is the read-only payload handed to the advisor
// アドバイザーに渡す読み取り専用スナップショット
type InventorySnapshot struct {
	Products []SnapshotProduct `json:"products"`
}

// BuildSnapshot converts products into the advisory payload
func BuildSnapshot(products []Product) InventorySnapshot {
	out := InventorySnapshot{Products: make([]SnapshotProduct, 0, len(products))}
	for _, p := range products {
		out.Products = append(out.Products, SnapshotProduct{
			Name:  p.Name,
			SKU:   p.SKU,
			Qty:   p.Quantity,
			Min:   p.MinLevel,
			Value: p.Price,
		})
	}
	return out
}

// FallbackInsights is returned when the advisor is unavailable
// アドバイザー利用不可時に返す分析結果
func FallbackInsights() []Insight {
	return []Insight{{
		Type:    InsightWarning,
		Message: "AI Analysis currently unavailable. Check API Key.",
		Action:  "Retry",
	}}
}
