package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sagacore/order-saga/services/shipping/internal/domain"
	"github.com/sagacore/order-saga/services/shipping/internal/service"
)

// ShippingHandler — HTTP-обработчик отгрузок поверх service.ShippingService.
type ShippingHandler struct {
	svc service.ShippingService
}

// NewShippingHandler создаёт обработчик отгрузок.
func NewShippingHandler(svc service.ShippingService) *ShippingHandler {
	return &ShippingHandler{svc: svc}
}

// RegisterRoutes монтирует маршруты Shipping Service на переданную группу.
func (h *ShippingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/shipments/:id", h.GetShipment)
	rg.GET("/orders/:order_id/shipment", h.GetShipmentByOrderID)
}

type shipmentResponse struct {
	ID                string `json:"id"`
	OrderID           string `json:"order_id"`
	Status            string `json:"status"`
	TrackingNumber    string `json:"tracking_number,omitempty"`
	ShippingAddress   string `json:"shipping_address"`
	EstimatedDelivery *int64 `json:"estimated_delivery,omitempty"`
	FailureReason     string `json:"failure_reason,omitempty"`
	CreatedAt         int64  `json:"created_at"`
}

func shipmentToResponse(s *domain.Shipment) shipmentResponse {
	resp := shipmentResponse{
		ID:              s.ID,
		OrderID:         s.OrderID,
		Status:          string(s.Status),
		TrackingNumber:  s.TrackingNumber,
		ShippingAddress: s.ShippingAddress,
		FailureReason:   s.FailureReason,
		CreatedAt:       s.CreatedAt.Unix(),
	}
	if s.EstimatedDelivery != nil {
		ts := s.EstimatedDelivery.Unix()
		resp.EstimatedDelivery = &ts
	}
	return resp
}

// GetShipment возвращает отгрузку по ID.
// GET /shipments/:id
func (h *ShippingHandler) GetShipment(c *gin.Context) {
	shipment, err := h.svc.GetShipment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "GetShipment")
		return
	}
	c.JSON(http.StatusOK, gin.H{"shipment": shipmentToResponse(shipment)})
}

// GetShipmentByOrderID возвращает отгрузку по заказу.
// GET /orders/:order_id/shipment
func (h *ShippingHandler) GetShipmentByOrderID(c *gin.Context) {
	shipment, err := h.svc.GetShipmentByOrderID(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		writeError(c, err, "GetShipmentByOrderID")
		return
	}
	c.JSON(http.StatusOK, gin.H{"shipment": shipmentToResponse(shipment)})
}
