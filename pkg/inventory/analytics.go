package inventory

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ABCClass is a product's share of total stock value
type ABCClass string

const (
	ABCClassA ABCClass = "A" // 累積80%まで
	ABCClassB ABCClass = "B" // 累積95%まで
	ABCClassC ABCClass = "C"
)

// ProductAnalytics is the per-product result of an analytics run
// 商品ごとの分析結果
type ProductAnalytics struct {
	ProductID    string          `json:"product_id"`
	SKU          string          `json:"sku"`
	StockValue   decimal.Decimal `json:"stock_value"`
	Class        ABCClass        `json:"abc_class"`
	Outbound     int64           `json:"outbound"`      // 期間中の出庫数量
	TurnoverRate float64         `json:"turnover_rate"` // 年換算の回転率
	SlowMoving   bool            `json:"slow_moving"`
}

// AnalyticsReport summarises stock movement over a window
// 指定期間の在庫分析レポート
type AnalyticsReport struct {
	From     time.Time          `json:"from"`
	To       time.Time          `json:"to"`
	Products []ProductAnalytics `json:"products"`
}

// StockValue is quantity × unit cost
func StockValue(p Product) decimal.Decimal {
	return decimal.NewFromFloat(p.Cost).Mul(decimal.NewFromInt(p.Quantity)).Round(2)
}

// ClassifyABC ranks products by stock value and splits them 80/15/5
// 在庫金額でABC分類（80-15-5の法則）
func ClassifyABC(products []Product) map[string]ABCClass {
	type ranked struct {
		id    string
		value decimal.Decimal
	}
	items := make([]ranked, 0, len(products))
	total := decimal.Zero
	for _, p := range products {
		v := StockValue(p)
		items = append(items, ranked{id: p.ID, value: v})
		total = total.Add(v)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].value.GreaterThan(items[j].value)
	})

	classes := make(map[string]ABCClass, len(items))
	if total.IsZero() {
		for _, it := range items {
			classes[it.id] = ABCClassC
		}
		return classes
	}

	a, b := decimal.NewFromFloat(0.8), decimal.NewFromFloat(0.95)
	cumulative := decimal.Zero
	for _, it := range items {
		cumulative = cumulative.Add(it.value)
		share := cumulative.Div(total)
		switch {
		case share.LessThanOrEqual(a):
			classes[it.id] = ABCClassA
		case share.LessThanOrEqual(b):
			classes[it.id] = ABCClassB
		default:
			classes[it.id] = ABCClassC
		}
	}
	return classes
}

// OutboundQuantity sums OUT movements for a product within [from, to]
func OutboundQuantity(movements []StockMovement, productID string, from, to time.Time) int64 {
	var total int64
	for _, m := range movements {
		if m.ProductID != productID || m.Kind != MovementKindOut {
			continue
		}
		if m.Date.Before(from) || m.Date.After(to) {
			continue
		}
		total += -m.Quantity
	}
	return total
}

// AverageBalance averages the balances observed in [from, to] together with the current quantity
// 期間内の残高と現在数量の平均
func AverageBalance(movements []StockMovement, productID string, current int64, from, to time.Time) float64 {
	sum, n := current, int64(1)
	for _, m := range movements {
		if m.ProductID != productID || m.Date.Before(from) || m.Date.After(to) {
			continue
		}
		sum += m.BalanceAfter
		n++
	}
	return float64(sum) / float64(n)
}

// TurnoverRate is outbound over average balance, annualised to 365 days
// 在庫回転率（年換算）
func TurnoverRate(outbound int64, avgBalance float64, window time.Duration) float64 {
	days := window.Hours() / 24
	if avgBalance <= 0 || days <= 0 {
		return 0
	}
	return float64(outbound) / avgBalance * (365 / days)
}

// Analyze builds the analytics report for the window ending at now.
// A product with stock and no outbound movement in the window is slow moving.
// 期間内の出庫から分析レポートを作成
func Analyze(products []Product, movements []StockMovement, window time.Duration, now time.Time) AnalyticsReport {
	from := now.Add(-window)
	classes := ClassifyABC(products)

	report := AnalyticsReport{From: from, To: now, Products: make([]ProductAnalytics, 0, len(products))}
	for _, p := range products {
		out := OutboundQuantity(movements, p.ID, from, now)
		avg := AverageBalance(movements, p.ID, p.Quantity, from, now)
		report.Products = append(report.Products, ProductAnalytics{
			ProductID:    p.ID,
			SKU:          p.SKU,
			StockValue:   StockValue(p),
			Class:        classes[p.ID],
			Outbound:     out,
			TurnoverRate: TurnoverRate(out, avg, window),
			SlowMoving:   out == 0 && p.Quantity > 0,
		})
	}
	return report
}

// StockReportCSV renders the current stock as CSV
// 在庫一覧をCSV形式で出力
func StockReportCSV(products []Product) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "sku", "name", "category", "quantity", "min_level", "status", "location"}); err != nil {
		return nil, err
	}
	for _, p := range products {
		row := []string{
			p.ID, p.SKU, p.Name, p.Category,
			strconv.FormatInt(p.Quantity, 10),
			strconv.FormatInt(p.MinLevel, 10),
			string(StatusOf(p)),
			p.Location,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
