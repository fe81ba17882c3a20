package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/quickbite/orderflow/internal/domain/cart"
	"github.com/quickbite/orderflow/internal/domain/catalog"
	"github.com/quickbite/orderflow/internal/domain/order"
	"github.com/quickbite/orderflow/internal/domain/payment"
)

type restaurantDTO struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Cuisine      string  `json:"cuisine,omitempty"`
	Rating       float64 `json:"rating,omitempty"`
	DeliveryTime string  `json:"deliveryTime,omitempty"`
	Image        string  `json:"image,omitempty"`
	Description  string  `json:"description,omitempty"`
}

type menuItemDTO struct {
	ID           string  `json:"id"`
	RestaurantID string  `json:"restaurantId"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Price        float64 `json:"price"`
	Image        string  `json:"image,omitempty"`
	Category     string  `json:"category,omitempty"`
}

type orderLineDTO struct {
	MenuItemID string  `json:"menuItemId"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	TotalPrice float64 `json:"totalPrice"`
}

type orderDTO struct {
	ID                    string         `json:"id"`
	RestaurantID          string         `json:"restaurantId"`
	Restaurant            *restaurantDTO `json:"restaurant,omitempty"`
	CustomerName          string         `json:"customerName"`
	CustomerEmail         string         `json:"customerEmail"`
	CustomerPhone         string         `json:"customerPhone,omitempty"`
	DeliveryAddress       string         `json:"deliveryAddress"`
	Status                string         `json:"status"`
	Subtotal              float64        `json:"subtotal"`
	Tax                   float64        `json:"tax"`
	DeliveryFee           float64        `json:"deliveryFee"`
	Total                 float64        `json:"total"`
	PaymentMethod         string         `json:"paymentMethod,omitempty"`
	PaymentTransactionID  string         `json:"paymentTransactionId,omitempty"`
	EstimatedDeliveryTime *time.Time     `json:"estimatedDeliveryTime,omitempty"`
	ActualDeliveryTime    *time.Time     `json:"actualDeliveryTime,omitempty"`
	SpecialInstructions   string         `json:"specialInstructions,omitempty"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt"`
	Items                 []orderLineDTO `json:"items,omitempty"`
}

type statisticsDTO struct {
	TotalOrders       int            `json:"totalOrders"`
	OrdersByStatus    map[string]int `json:"ordersByStatus"`
	TotalRevenue      float64        `json:"totalRevenue"`
	AverageOrderValue float64        `json:"averageOrderValue"`
}

func toRestaurantDTO(r *catalog.Restaurant) *restaurantDTO {
	return &restaurantDTO{
		ID:           r.ID,
		Name:         r.Name,
		Cuisine:      r.Cuisine,
		Rating:       r.Rating,
		DeliveryTime: r.DeliveryTime,
		Image:        r.Image,
		Description:  r.Description,
	}
}

func toMenuItemDTO(m catalog.MenuItem) menuItemDTO {
	return menuItemDTO{
		ID:           m.ID,
		RestaurantID: m.RestaurantID,
		Name:         m.Name,
		Description:  m.Description,
		Price:        m.Price.InexactFloat64(),
		Image:        m.Image,
		Category:     m.Category,
	}
}

func toOrderDTO(o *order.Order) orderDTO {
	dto := orderDTO{
		ID:                    o.ID,
		RestaurantID:          o.RestaurantID,
		CustomerName:          o.CustomerName,
		CustomerEmail:         o.CustomerEmail,
		CustomerPhone:         o.CustomerPhone,
		DeliveryAddress:       o.DeliveryAddress,
		Status:                string(o.Status),
		Subtotal:              o.Subtotal.InexactFloat64(),
		Tax:                   o.Tax.InexactFloat64(),
		DeliveryFee:           o.DeliveryFee.InexactFloat64(),
		Total:                 o.Total.InexactFloat64(),
		PaymentMethod:         o.PaymentMethod,
		PaymentTransactionID:  o.PaymentTransactionID,
		EstimatedDeliveryTime: o.EstimatedDeliveryTime,
		ActualDeliveryTime:    o.ActualDeliveryTime,
		SpecialInstructions:   o.SpecialInstructions,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
	for _, l := range o.Lines {
		dto.Items = append(dto.Items, orderLineDTO{
			MenuItemID: l.MenuItemID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice.InexactFloat64(),
			TotalPrice: l.TotalPrice.InexactFloat64(),
		})
	}
	return dto
}

func toOrderDTOs(orders []order.Order) []orderDTO {
	out := make([]orderDTO, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderDTO(&orders[i]))
	}
	return out
}

type errorBody struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses: not-found lookups are
// 404, payment declines are 402, validation and illegal state moves are 400,
// everything else is 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, catalog.ErrRestaurantNotFound),
		errors.Is(err, catalog.ErrMenuItemNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}

	var provErr *payment.ProviderError
	if errors.As(err, &provErr) {
		writeJSON(w, http.StatusPaymentRequired, errorBody{
			Error:     provErr.Message,
			ErrorCode: provErr.Code,
		})
		return
	}

	if isValidationError(err) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	zctx.From(r.Context()).Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrQuoteMismatch),
		errors.Is(err, order.ErrRestaurantMismatch):
		return true
	}

	var (
		conflict    *cart.RestaurantConflictError
		unavailable *order.MenuItemUnavailableError
		quantity    *order.InvalidQuantityError
		transition  *order.InvalidTransitionError
		cancel      *order.CannotCancelError
	)
	return errors.As(err, &conflict) ||
		errors.As(err, &unavailable) ||
		errors.As(err, &quantity) ||
		errors.As(err, &transition) ||
		errors.As(err, &cancel)
}
