package dto

import "github.com/shopspring/decimal"

// FechaLayout is the timestamp format used in every JSON response.
const FechaLayout = "2006-01-02 15:04:05"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// CrearProductoRequest carries the new product and its 4 images as data URIs.
// Precio and Stock are pointers so that 0 is accepted while absence is not.
type CrearProductoRequest struct {
	Nombre      string           `json:"nombre"      validate:"required,max=255"`
	Precio      *decimal.Decimal `json:"precio"`
	Stock       *int             `json:"stock"`
	Descripcion string           `json:"descripcion" validate:"required"`
	Imagenes    []string         `json:"imagenes"`
}

// ActualizarProductoRequest is a partial update: nil fields are left untouched.
type ActualizarProductoRequest struct {
	Nombre      *string          `json:"nombre"      validate:"omitempty,min=1,max=255"`
	Precio      *decimal.Decimal `json:"precio"`
	Stock       *int             `json:"stock"`
	Descripcion *string          `json:"descripcion"`
	Visible     *bool            `json:"visible"`
	Imagenes    []string         `json:"imagenes"`
}

type AjustarStockRequest struct {
	Cantidad *int `json:"cantidad" validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductoResponse struct {
	ID          string          `json:"id"`
	Nombre      string          `json:"nombre"`
	Precio      decimal.Decimal `json:"precio"`
	Stock       int             `json:"stock"`
	Descripcion string          `json:"descripcion"`
	Imagen      *string         `json:"imagen"`
	Imagenes    []string        `json:"imagenes"`
	Visible     bool            `json:"visible"`
}

type ProductoMutacionResponse struct {
	Message  string           `json:"message"`
	Producto ProductoResponse `json:"producto"`
}

type StockResponse struct {
	Message     string `json:"message"`
	StockActual int    `json:"stock_actual"`
}

type CheckStockResponse struct {
	Disponible         bool `json:"disponible"`
	StockActual        int  `json:"stock_actual"`
	CantidadSolicitada int  `json:"cantidad_solicitada"`
}

type MovimientoStockResponse struct {
	ID            string  `json:"id"`
	ProductoID    string  `json:"producto_id"`
	Tipo          string  `json:"tipo"`
	Cantidad      int     `json:"cantidad"`
	StockAnterior int     `json:"stock_anterior"`
	StockNuevo    int     `json:"stock_nuevo"`
	Motivo        string  `json:"motivo"`
	ReferenciaID  *string `json:"referencia_id"`
	CreatedAt     string  `json:"created_at"`
}

// ─── Bulk import ─────────────────────────────────────────────────────────────

type ImportErrorRow struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type ImportResponse struct {
	Message  string           `json:"message"`
	Imported int              `json:"imported"`
	Errors   []ImportErrorRow `json:"errors"`
}
