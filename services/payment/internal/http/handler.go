package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sagacore/order-saga/services/payment/internal/domain"
	"github.com/sagacore/order-saga/services/payment/internal/service"
)

// PaymentHandler — HTTP-обработчик транзакций поверх service.PaymentService.
type PaymentHandler struct {
	svc service.PaymentService
}

// NewPaymentHandler создаёт обработчик транзакций.
func NewPaymentHandler(svc service.PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// RegisterRoutes монтирует маршруты Payment Service на переданную группу.
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/transactions/:id", h.GetTransaction)
	rg.GET("/orders/:order_id/transaction", h.GetTransactionByOrderID)
}

type transactionResponse struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	GatewayReference string `json:"gateway_reference,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
	CreatedAt        int64  `json:"created_at"`
	UpdatedAt        int64  `json:"updated_at"`
}

func transactionToResponse(t *domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:               t.ID,
		OrderID:          t.OrderID,
		Amount:           t.Amount,
		Currency:         t.Currency,
		Status:           string(t.Status),
		GatewayReference: t.GatewayReference,
		ErrorCode:        t.ErrorCode,
		ErrorMessage:     t.ErrorMessage,
		CreatedAt:        t.CreatedAt.Unix(),
		UpdatedAt:        t.UpdatedAt.Unix(),
	}
}

// GetTransaction возвращает транзакцию по ID.
// GET /transactions/:id
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	tx, err := h.svc.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "GetTransaction")
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": transactionToResponse(tx)})
}

// GetTransactionByOrderID возвращает транзакцию списания по заказу.
// GET /orders/:order_id/transaction
func (h *PaymentHandler) GetTransactionByOrderID(c *gin.Context) {
	tx, err := h.svc.GetTransactionByOrderID(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		writeError(c, err, "GetTransactionByOrderID")
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": transactionToResponse(tx)})
}
