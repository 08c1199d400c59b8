package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AgregarCarritoRequest struct {
	UserID    string `json:"user_id"    validate:"required,uuid"`
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  *int   `json:"quantity"   validate:"required"`
}

type ActualizarCantidadRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CarritoItemResponse struct {
	ID       string           `json:"id"`
	Quantity int              `json:"quantity"`
	Product  ProductoResponse `json:"product"`
}

// CarritoResponse is also returned (with only Message set) when the user has
// no pending cart; that is not an error.
type CarritoResponse struct {
	ID      string                `json:"id,omitempty"`
	Estado  string                `json:"estado,omitempty"`
	UserID  string                `json:"user_id"`
	Items   []CarritoItemResponse `json:"items"`
	Message string                `json:"message,omitempty"`
}

type AgregarCarritoResponse struct {
	Message string `json:"message"`
	CartID  string `json:"cart_id"`
	Estado  string `json:"estado"`
}
