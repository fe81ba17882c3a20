package handler

import (
	"net/http"
)

func (h *Handler) listRestaurants(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.catalog.ListRestaurants(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]restaurantDTO, 0, len(restaurants))
	for i := range restaurants {
		out = append(out, *toRestaurantDTO(&restaurants[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getRestaurant(w http.ResponseWriter, r *http.Request) {
	rest, err := h.catalog.GetRestaurant(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRestaurantDTO(rest))
}

func (h *Handler) getMenu(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// 404 for unknown restaurants rather than an empty menu.
	if _, err := h.catalog.GetRestaurant(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.catalog.ListMenu(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]menuItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, toMenuItemDTO(item))
	}
	writeJSON(w, http.StatusOK, out)
}
