package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sagacore/order-saga/services/inventory/internal/domain"
	"github.com/sagacore/order-saga/services/inventory/internal/service"
)

// InventoryHandler — HTTP-обработчик каталога и резервирований поверх
// service.InventoryService.
type InventoryHandler struct {
	svc service.InventoryService
}

// NewInventoryHandler создаёт обработчик каталога и резервирований.
func NewInventoryHandler(svc service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// RegisterRoutes монтирует маршруты Inventory Service на переданную группу.
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/products", h.ListProducts)
	rg.GET("/products/:id", h.GetProduct)
	rg.GET("/orders/:order_id/reservation", h.GetReservationByOrderID)
}

type productResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	PriceMinorUnits int64  `json:"price"`
	Currency        string `json:"currency"`
	AvailableQty    int32  `json:"available_quantity"`
	ReservedQty     int32  `json:"reserved_quantity"`
}

func productToResponse(p *domain.Product) productResponse {
	return productResponse{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		PriceMinorUnits: p.PriceMinorUnits,
		Currency:        p.Currency,
		AvailableQty:    p.AvailableQty,
		ReservedQty:     p.ReservedQty,
	}
}

type reservationItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type reservationResponse struct {
	ID         string                    `json:"id"`
	OrderID    string                    `json:"order_id"`
	Status     string                    `json:"status"`
	Items      []reservationItemResponse `json:"items"`
	CreatedAt  int64                     `json:"created_at"`
	ReleasedAt *int64                    `json:"released_at,omitempty"`
}

func reservationToResponse(r *domain.Reservation) reservationResponse {
	items := make([]reservationItemResponse, len(r.Items))
	for i, it := range r.Items {
		items[i] = reservationItemResponse{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	resp := reservationResponse{
		ID:        r.ID,
		OrderID:   r.OrderID,
		Status:    string(r.Status),
		Items:     items,
		CreatedAt: r.CreatedAt.Unix(),
	}
	if r.ReleasedAt != nil {
		released := r.ReleasedAt.Unix()
		resp.ReleasedAt = &released
	}
	return resp
}

// ListProducts возвращает весь каталог товаров.
// GET /products
func (h *InventoryHandler) ListProducts(c *gin.Context) {
	products, err := h.svc.ListProducts(c.Request.Context())
	if err != nil {
		writeError(c, err, "ListProducts")
		return
	}
	responses := make([]productResponse, len(products))
	for i, p := range products {
		responses[i] = productToResponse(p)
	}
	c.JSON(http.StatusOK, gin.H{"products": responses})
}

// GetProduct возвращает товар по ID.
// GET /products/:id
func (h *InventoryHandler) GetProduct(c *gin.Context) {
	product, err := h.svc.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "GetProduct")
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": productToResponse(product)})
}

// GetReservationByOrderID возвращает резервирование склада по заказу.
// GET /orders/:order_id/reservation
func (h *InventoryHandler) GetReservationByOrderID(c *gin.Context) {
	reservation, err := h.svc.GetReservationByOrderID(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		writeError(c, err, "GetReservationByOrderID")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservation": reservationToResponse(reservation)})
}
