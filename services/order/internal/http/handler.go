package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sagacore/order-saga/pkg/logger"
	"github.com/sagacore/order-saga/services/order/internal/domain"
	"github.com/sagacore/order-saga/services/order/internal/service"
)

// OrderHandler — HTTP-обработчик заказов поверх service.OrderService.
type OrderHandler struct {
	svc service.OrderService
}

// NewOrderHandler создаёт обработчик заказов.
func NewOrderHandler(svc service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterRoutes монтирует маршруты Order Service на переданную группу.
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/orders", h.CreateOrder)
	rg.GET("/orders", h.ListOrders)
	rg.GET("/orders/:id", h.GetOrder)
	rg.GET("/orders/:id/saga-logs", h.ListSagaLogs)
	rg.DELETE("/orders/:id", h.CancelOrder)
}

// === DTO ===

type moneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type orderItemRequest struct {
	ProductID   string   `json:"product_id" binding:"required"`
	ProductName string   `json:"product_name" binding:"required"`
	Quantity    int32    `json:"quantity" binding:"required,min=1"`
	UnitPrice   moneyDTO `json:"unit_price" binding:"required"`
}

type createOrderRequest struct {
	CustomerID      string             `json:"customer_id" binding:"required"`
	ShippingAddress string             `json:"shipping_address" binding:"required"`
	CorrelationID   string             `json:"correlation_id"`
	Items           []orderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type orderItemResponse struct {
	ProductID   string   `json:"product_id"`
	ProductName string   `json:"product_name"`
	Quantity    int32    `json:"quantity"`
	UnitPrice   moneyDTO `json:"unit_price"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	CustomerID      string              `json:"customer_id"`
	Status          string              `json:"status"`
	CurrentStep     string              `json:"current_step"`
	Items           []orderItemResponse `json:"items"`
	TotalAmount     moneyDTO            `json:"total_amount"`
	ShippingAddress string              `json:"shipping_address"`
	CorrelationID   string              `json:"correlation_id"`
	ReservationID   *string             `json:"reservation_id,omitempty"`
	TransactionID   *string             `json:"transaction_id,omitempty"`
	ShippingID      *string             `json:"shipping_id,omitempty"`
	ErrorMessage    *string             `json:"error_message,omitempty"`
	CreatedAt       int64               `json:"created_at"`
	UpdatedAt       int64               `json:"updated_at"`
}

type sagaLogResponse struct {
	ID            string  `json:"id"`
	Step          string  `json:"step"`
	EventType     string  `json:"event_type"`
	EventID       string  `json:"event_id"`
	Status        string  `json:"status"`
	Error         *string `json:"error,omitempty"`
	CreatedAt     int64   `json:"created_at"`
	CorrelationID string  `json:"correlation_id"`
}

func orderToResponse(o *domain.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   moneyDTO{Amount: it.UnitPrice.Amount, Currency: it.UnitPrice.Currency},
		}
	}
	return orderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Status:          string(o.Status),
		CurrentStep:     string(o.CurrentStep),
		Items:           items,
		TotalAmount:     moneyDTO{Amount: o.TotalAmount.Amount, Currency: o.TotalAmount.Currency},
		ShippingAddress: o.ShippingAddress,
		CorrelationID:   o.CorrelationID,
		ReservationID:   o.ReservationID,
		TransactionID:   o.TransactionID,
		ShippingID:      o.ShippingID,
		ErrorMessage:    o.ErrorMessage,
		CreatedAt:       o.CreatedAt.Unix(),
		UpdatedAt:       o.UpdatedAt.Unix(),
	}
}

// === Handlers ===

// CreateOrder создаёт новый заказ и запускает сагу.
// POST /orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx := c.Request.Context()

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	items := make([]domain.OrderItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   domain.Money{Amount: it.UnitPrice.Amount, Currency: it.UnitPrice.Currency},
		}
	}

	order, err := h.svc.CreateOrder(ctx, req.CustomerID, req.ShippingAddress, req.CorrelationID, items)
	if err != nil {
		writeError(c, err, "CreateOrder")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": orderToResponse(order)})
}

// GetOrder возвращает заказ по ID.
// GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.svc.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "GetOrder")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": orderToResponse(order)})
}

// ListSagaLogs возвращает журнал саги заказа.
// GET /orders/:id/saga-logs
func (h *OrderHandler) ListSagaLogs(c *gin.Context) {
	logs, err := h.svc.ListSagaLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "ListSagaLogs")
		return
	}

	out := make([]sagaLogResponse, len(logs))
	for i, l := range logs {
		out[i] = sagaLogResponse{
			ID:            l.ID,
			Step:          string(l.Step),
			EventType:     l.EventType,
			EventID:       l.EventID,
			Status:        string(l.Status),
			Error:         l.Error,
			CreatedAt:     l.CreatedAt.Unix(),
			CorrelationID: l.CorrelationID,
		}
	}
	c.JSON(http.StatusOK, gin.H{"saga_logs": out})
}

// ListOrders возвращает заказы покупателя с пагинацией.
// GET /orders?customer_id=...&page=1&page_size=20&status=pending
func (h *OrderHandler) ListOrders(c *gin.Context) {
	log := logger.FromContext(c.Request.Context())

	customerID := c.Query("customer_id")
	if customerID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "customer_id обязателен"})
		return
	}

	page := 1
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page = v
	}
	pageSize := 20
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 {
		pageSize = v
	}

	var status *domain.OrderStatus
	if s := c.Query("status"); s != "" {
		st := domain.OrderStatus(s)
		status = &st
	}

	orders, total, err := h.svc.ListOrders(c.Request.Context(), customerID, status, page, pageSize)
	if err != nil {
		writeError(c, err, "ListOrders")
		return
	}

	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = orderToResponse(o)
	}

	log.Debug().Str("customer_id", customerID).Int("count", len(out)).Msg("список заказов получен")
	c.JSON(http.StatusOK, gin.H{"orders": out, "total": total, "page": page, "page_size": pageSize})
}

// CancelOrder отменяет заказ, пока сага ещё не начала необратимые эффекты.
// DELETE /orders/:id
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	if err := h.svc.CancelOrder(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err, "CancelOrder")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
