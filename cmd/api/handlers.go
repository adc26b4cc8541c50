package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nemonet1337/nexinventory/internal/auth"
	"github.com/nemonet1337/nexinventory/pkg/inventory"
)

// Handlers holds HTTP handlers for the inventory API
// 在庫API用のHTTPハンドラーを保持
type Handlers struct {
	service  inventory.Service
	tokens   *auth.Issuer
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandlers creates new HTTP handlers
// 新しいHTTPハンドラーを作成
func NewHandlers(service inventory.Service, tokens *auth.Issuer, logger *zap.Logger) *Handlers {
	return &Handlers{
		service:  service,
		tokens:   tokens,
		validate: validator.New(),
		logger:   logger,
	}
}

// APIResponse represents standard API response format
// 標準的なAPIレスポンス形式を表現
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// LoginRequest represents a sign-in request
// ログインリクエストを表現
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued token
type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      inventory.User `json:"user"`
}

// ProductRequest represents a product create or update body
// 商品作成・更新リクエストを表現
type ProductRequest struct {
	SKU      string  `json:"sku" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Category string  `json:"category"`
	Quantity int64   `json:"quantity" validate:"min=0"`
	Unit     string  `json:"unit"`
	Location string  `json:"location"`
	Price    float64 `json:"price" validate:"min=0"`
	Cost     float64 `json:"cost" validate:"min=0"`
	Supplier string  `json:"supplier"`
	MinLevel int64   `json:"min_level" validate:"min=0"`
}

func (p ProductRequest) product(id string) inventory.Product {
	return inventory.Product{
		ID:       id,
		SKU:      p.SKU,
		Name:     p.Name,
		Category: p.Category,
		Quantity: p.Quantity,
		Unit:     p.Unit,
		Location: p.Location,
		Price:    p.Price,
		Cost:     p.Cost,
		Supplier: p.Supplier,
		MinLevel: p.MinLevel,
	}
}

// BulkDeleteRequest lists products to delete
type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// AdjustStockRequest represents request to adjust stock
// 在庫調整リクエストを表現
type AdjustStockRequest struct {
	Quantity int64  `json:"quantity" validate:"min=0"`
	Reason   string `json:"reason"`
}

// OperationLineRequest is one line of an operation body
type OperationLineRequest struct {
	ProductID   string `json:"product_id" validate:"required"`
	Quantity    int64  `json:"quantity" validate:"min=0"`
	BatchNumber string `json:"batch_number"`
}

// OperationRequest represents an operation create or update body
// オペレーション作成・更新リクエストを表現
type OperationRequest struct {
	Reference     string                 `json:"reference" validate:"required"`
	Type          string                 `json:"type" validate:"required,oneof=Receipt Delivery 'Internal Transfer' 'Inventory Adjustment'"`
	Partner       string                 `json:"partner"`
	Status        string                 `json:"status" validate:"omitempty,oneof=Draft Ready"`
	ScheduledDate string                 `json:"scheduled_date" validate:"omitempty,datetime=2006-01-02"`
	Lines         []OperationLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (o OperationRequest) operation(id string) inventory.Operation {
	lines := make([]inventory.OperationLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, inventory.OperationLine{
			ProductID:   l.ProductID,
			Quantity:    l.Quantity,
			BatchNumber: l.BatchNumber,
		})
	}
	return inventory.Operation{
		ID:            id,
		Reference:     o.Reference,
		Type:          inventory.OperationType(o.Type),
		Partner:       o.Partner,
		Status:        inventory.OperationStatus(o.Status),
		ScheduledDate: o.ScheduledDate,
		Lines:         lines,
	}
}

// ScanRequest represents a barcode-scanner operation
// スキャナーからのオペレーション作成リクエスト
type ScanRequest struct {
	Type        string `json:"type" validate:"required,oneof=Receipt Delivery"`
	ProductID   string `json:"product_id" validate:"required"`
	Quantity    int64  `json:"quantity" validate:"gt=0"`
	BatchNumber string `json:"batch_number"`
}

// UserRequest represents a user creation body
type UserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,oneof=admin manager user"`
	Password string `json:"password" validate:"required,min=3"`
	Avatar   string `json:"avatar"`
}

// HealthCheck handles health check requests
// ヘルスチェックリクエストを処理
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("ヘルスチェックに失敗しました", zap.Error(err))
		h.sendError(w, http.StatusServiceUnavailable, "ストレージが利用できません")
		return
	}
	h.sendSuccess(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "nexinventory",
	})
}

// Login handles sign-in and issues a token
// ログインしてトークンを発行
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	token, expires, err := h.tokens.Issue(*user)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendSuccess(w, LoginResponse{Token: token, ExpiresAt: expires, User: user.Public()})
}

// ListProducts handles product listing with optional stock filter and search
// 商品一覧を取得
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := inventory.ProductFilter{
		Stock:  inventory.StockFilter(q.Get("filter")),
		Search: q.Get("q"),
	}
	switch filter.Stock {
	case "", inventory.StockFilterAll, inventory.StockFilterLow, inventory.StockFilterOut:
	default:
		h.sendError(w, http.StatusBadRequest, "filterは all, low, out のいずれかです")
		return
	}

	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, products)
}

// GetProduct handles get product requests
// 商品取得リクエストを処理
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, product)
}

// CreateProduct handles create product requests
// 商品作成リクエストを処理
func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	product := req.product("")
	if err := h.service.CreateProduct(r.Context(), &product); err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendCreated(w, product)
}

// UpdateProduct handles update product requests
// 商品更新リクエストを処理
func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	product := req.product(mux.Vars(r)["id"])
	if err := h.service.UpdateProduct(r.Context(), &product); err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, product)
}

// DeleteProduct handles delete product requests
// 商品削除リクエストを処理
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProduct(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, map[string]string{"message": "商品を削除しました"})
}

// BulkDeleteProducts handles bulk deletion
// 商品の一括削除
func (h *Handlers) BulkDeleteProducts(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if !h.decode(w, r, &req) {
		return
	}

	deleted, err := h.service.BulkDeleteProducts(r.Context(), req.IDs)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, map[string]int{"deleted": deleted})
}

// AdjustStock handles a manual stock count correction
// 在庫調整リクエストを処理
func (h *Handlers) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockRequest
	if !h.decode(w, r, &req) {
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.service.AdjustStock(r.Context(), id, req.Quantity, req.Reason); err != nil {
		h.sendServiceError(w, err)
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, product)
}

// ListOperations handles operation listing
// オペレーション一覧を取得
func (h *Handlers) ListOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := h.service.ListOperations(r.Context())
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, ops)
}

// GetOperation handles get operation requests
func (h *Handlers) GetOperation(w http.ResponseWriter, r *http.Request) {
	op, err := h.service.GetOperation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, op)
}

// CreateOperation handles create operation requests
// オペレーション作成リクエストを処理
func (h *Handlers) CreateOperation(w http.ResponseWriter, r *http.Request) {
	var req OperationRequest
	if !h.decode(w, r, &req) {
		return
	}

	op := req.operation("")
	if err := h.service.CreateOperation(r.Context(), &op); err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendCreated(w, op)
}

// UpdateOperation handles edits of a non-Done operation
// オペレーション更新リクエストを処理
func (h *Handlers) UpdateOperation(w http.ResponseWriter, r *http.Request) {
	var req OperationRequest
	if !h.decode(w, r, &req) {
		return
	}

	op := req.operation(mux.Vars(r)["id"])
	if err := h.service.UpdateOperation(r.Context(), &op); err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, op)
}

// ConfirmOperation moves a Draft operation to Ready
// 下書きオペレーションを準備完了にする
func (h *Handlers) ConfirmOperation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.service.ConfirmOperation(r.Context(), id); err != nil {
		h.sendServiceError(w, err)
		return
	}
	op, err := h.service.GetOperation(r.Context(), id)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, op)
}

// ProcessOperation validates an operation and applies its stock effects
// オペレーションを処理して在庫に反映
func (h *Handlers) ProcessOperation(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ProcessOperation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, result)
}

// ScanOperation creates a Ready operation from a scanner event
// スキャン結果からオペレーションを作成
func (h *Handlers) ScanOperation(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if !h.decode(w, r, &req) {
		return
	}

	op, err := inventory.NewScanOperation(inventory.OperationType(req.Type), req.ProductID, req.Quantity, req.BatchNumber)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	if err := h.service.CreateOperation(r.Context(), op); err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendCreated(w, op)
}

// ListMovements handles movement history requests
// 在庫移動履歴を取得
func (h *Handlers) ListMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.service.ListMovements(r.Context(), r.URL.Query().Get("product_id"))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, movements)
}

// ListAuditLogs handles audit log requests
// 監査ログを取得
func (h *Handlers) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.service.ListAuditLogs(r.Context())
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, logs)
}

// Dashboard handles dashboard summary requests
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, summary)
}

// Insights handles advisory insight requests
// AI分析結果を取得
func (h *Handlers) Insights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.service.Insights(r.Context())
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, insights)
}

// Analytics handles analytics report requests; days defaults to 30
// 在庫分析レポートを取得
func (h *Handlers) Analytics(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			h.sendError(w, http.StatusBadRequest, "daysは正の整数である必要があります")
			return
		}
		days = parsed
	}

	report, err := h.service.Analytics(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, report)
}

// StockReport streams the stock report as CSV
// 在庫レポートをCSVで出力
func (h *Handlers) StockReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.StockReport(r.Context())
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="stock.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(report); err != nil {
		h.logger.Error("レスポンス送信に失敗しました", zap.Error(err))
	}
}

// ListUsers handles user listing
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, users)
}

// CreateUser handles user creation
// ユーザー作成リクエストを処理
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user := inventory.User{
		Name:   req.Name,
		Email:  req.Email,
		Role:   inventory.Role(req.Role),
		Avatar: req.Avatar,
	}
	if err := h.service.CreateUser(r.Context(), &user, req.Password); err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendCreated(w, user.Public())
}

// DeleteUser handles user deletion
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if claims, ok := claimsFromContext(r.Context()); ok && claims.UserID == id {
		h.sendError(w, http.StatusConflict, "ログイン中のユーザーは削除できません")
		return
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, map[string]string{"message": "ユーザーを削除しました"})
}

// Reset restores the seeded demo state
// データベースを初期状態に戻す
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(r.Context()); err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendSuccess(w, map[string]string{"message": "データベースを初期化しました"})
}

// ヘルパーメソッド

// decode reads a JSON body and runs struct validation; it writes the error response itself
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fieldErr := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fieldErr.Field(), fieldErr.Tag()))
			}
			h.sendError(w, http.StatusBadRequest, "入力値が不正です: "+strings.Join(fields, ", "))
			return false
		}
		h.sendError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// statusFor maps a service error to an HTTP status
// サービスエラーをHTTPステータスに変換
func statusFor(err error) int {
	var (
		verr *inventory.ValidationError
		cerr *inventory.ConcurrencyError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, inventory.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, inventory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrDuplicateSKU),
		errors.Is(err, inventory.ErrDuplicateProduct),
		errors.Is(err, inventory.ErrDuplicateOperation),
		errors.Is(err, inventory.ErrDuplicateUser),
		errors.Is(err, inventory.ErrOperationImmutable),
		errors.Is(err, inventory.ErrInvalidTransition),
		errors.As(err, &cerr):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sendServiceError logs unexpected failures and writes the mapped error response
func (h *Handlers) sendServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("リクエスト処理に失敗しました", zap.Int("status", status), zap.Error(err))
	}
	h.sendError(w, status, err.Error())
}

// sendSuccess sends a successful API response
// 成功APIレスポンスを送信
func (h *Handlers) sendSuccess(w http.ResponseWriter, data interface{}) {
	h.send(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func (h *Handlers) sendCreated(w http.ResponseWriter, data interface{}) {
	h.send(w, http.StatusCreated, APIResponse{Success: true, Data: data})
}

// sendError sends an error API response
// エラーAPIレスポンスを送信
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.send(w, statusCode, APIResponse{Success: false, Error: message})
}

func (h *Handlers) send(w http.ResponseWriter, statusCode int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("レスポンス送信に失敗しました", zap.Error(err))
	}
}
