package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quickbite/orderflow/internal/domain/order"
	"github.com/quickbite/orderflow/internal/domain/payment"
	"github.com/quickbite/orderflow/internal/domain/pricing"
)

type checkoutItemJSON struct {
	MenuItemID string `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
}

type checkoutCustomerJSON struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	DeliveryAddress     string `json:"deliveryAddress"`
	SpecialInstructions string `json:"specialInstructions"`
}

type checkoutCardJSON struct {
	Number         string `json:"number"`
	ExpiryMonth    string `json:"expiryMonth"`
	ExpiryYear     string `json:"expiryYear"`
	CVV            string `json:"cvv"`
	CardholderName string `json:"cardholderName"`
}

type checkoutPaymentJSON struct {
	Method   string           `json:"method"`
	Provider string           `json:"provider"`
	Card     checkoutCardJSON `json:"card"`
}

type quoteJSON struct {
	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	DeliveryFee float64 `json:"deliveryFee"`
	Total       float64 `json:"total"`
}

type checkoutRequestJSON struct {
	RestaurantID   string               `json:"restaurantId"`
	Items          []checkoutItemJSON   `json:"items"`
	Customer       checkoutCustomerJSON `json:"customer"`
	Payment        checkoutPaymentJSON  `json:"payment"`
	ClientQuote    *quoteJSON           `json:"clientQuote"`
	IdempotencyKey string               `json:"idempotencyKey"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if req.Customer.Name == "" || req.Customer.Email == "" || req.Customer.DeliveryAddress == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "customer name, email, and delivery address are required"})
		return
	}

	items := make([]order.ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemInput{MenuItemID: it.MenuItemID, Quantity: it.Quantity}
	}

	c, err := h.orders.BuildCart(r.Context(), order.CartInput{
		RestaurantID: req.RestaurantID,
		Items:        items,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	checkoutReq := order.CheckoutRequest{
		Customer: order.CustomerInfo{
			Name:                req.Customer.Name,
			Email:               req.Customer.Email,
			Phone:               req.Customer.Phone,
			DeliveryAddress:     req.Customer.DeliveryAddress,
			SpecialInstructions: req.Customer.SpecialInstructions,
		},
		Payment: order.PaymentInfo{
			Method:   req.Payment.Method,
			Provider: payment.Provider(req.Payment.Provider),
			Card: payment.CardDetails{
				Number:         req.Payment.Card.Number,
				ExpiryMonth:    req.Payment.Card.ExpiryMonth,
				ExpiryYear:     req.Payment.Card.ExpiryYear,
				CVV:            req.Payment.Card.CVV,
				CardholderName: req.Payment.Card.CardholderName,
			},
		},
		IdempotencyKey: req.IdempotencyKey,
	}
	if q := req.ClientQuote; q != nil {
		checkoutReq.ClientQuote = &pricing.Breakdown{
			Subtotal:    decimal.NewFromFloat(q.Subtotal),
			Tax:         decimal.NewFromFloat(q.Tax),
			DeliveryFee: decimal.NewFromFloat(q.DeliveryFee),
			Total:       decimal.NewFromFloat(q.Total),
		}
	}

	result, err := h.orders.Checkout(r.Context(), c, checkoutReq)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	} else {
		h.metrics.orderCreated(r, result.Order.RestaurantID)
	}
	writeJSON(w, status, toOrderDTO(result.Order))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		orders []order.Order
		err    error
	)
	switch {
	case q.Get("customerEmail") != "":
		orders, err = h.orders.ListByCustomerEmail(r.Context(), q.Get("customerEmail"))
	case q.Get("restaurantId") != "":
		orders, err = h.orders.ListByRestaurant(r.Context(), q.Get("restaurantId"))
	case q.Get("status") != "":
		var status order.Status
		status, err = order.ParseStatus(q.Get("status"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		orders, err = h.orders.ListByStatus(r.Context(), status)
	default:
		orders, err = h.orders.List(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTOs(orders))
}

func (h *Handler) activeOrders(w http.ResponseWriter, r *http.Request) {
	restaurantID := r.URL.Query().Get("restaurantId")
	if restaurantID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "restaurantId query parameter is required"})
		return
	}

	orders, err := h.orders.ActiveByRestaurant(r.Context(), restaurantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTOs(orders))
}

func (h *Handler) orderStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Statistics(r.Context(), r.URL.Query().Get("restaurantId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	dto := statisticsDTO{
		TotalOrders:       stats.TotalOrders,
		OrdersByStatus:    make(map[string]int, len(stats.OrdersByStatus)),
		TotalRevenue:      stats.TotalRevenue.InexactFloat64(),
		AverageOrderValue: stats.AverageOrderValue.InexactFloat64(),
	}
	for status, count := range stats.OrdersByStatus {
		dto.OrdersByStatus[string(status)] = count
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if r.URL.Query().Get("includeItems") != "true" {
		o, err := h.orders.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderDTO(o))
		return
	}

	o, err := h.orders.GetWithLines(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dto := toOrderDTO(o)
	if rest, err := h.catalog.GetRestaurant(r.Context(), o.RestaurantID); err == nil {
		dto.Restaurant = toRestaurantDTO(rest)
	}
	writeJSON(w, http.StatusOK, dto)
}

type updateOrderJSON struct {
	Status                string `json:"status"`
	EstimatedDeliveryTime string `json:"estimatedDeliveryTime"`
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateOrderJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	switch {
	case req.Status != "":
		target, err := order.ParseStatus(req.Status)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		o, err := h.orders.Transition(r.Context(), id, target)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.metrics.transition(r, target)
		writeJSON(w, http.StatusOK, toOrderDTO(o))

	case req.EstimatedDeliveryTime != "":
		estimated, err := time.Parse(time.RFC3339, req.EstimatedDeliveryTime)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "estimatedDeliveryTime must be RFC 3339"})
			return
		}
		o, err := h.orders.UpdateEstimatedDeliveryTime(r.Context(), id, estimated)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderDTO(o))

	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "status or estimatedDeliveryTime is required"})
	}
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.transition(r, order.StatusCancelled)
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
