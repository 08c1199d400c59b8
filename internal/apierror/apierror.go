// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
// The optional fields carry context for stock and import failures.
type APIError struct {
	Error              string   `json:"error"`
	Detalles           string   `json:"detalles,omitempty"`
	Code               string   `json:"code,omitempty"`
	StockDisponible    *int     `json:"stock_disponible,omitempty"`
	StockActual        *int     `json:"stock_actual,omitempty"`
	CantidadActual     *int     `json:"cantidad_actual,omitempty"`
	CantidadSolicitada *int     `json:"cantidad_solicitada,omitempty"`
	MissingColumns     []string `json:"missing_columns,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Error: msg}
}

// WithDetalles attaches a human readable detail line.
func (e *APIError) WithDetalles(d string) *APIError {
	e.Detalles = d
	return e
}

func (e *APIError) WithCode(code string) *APIError {
	e.Code = code
	return e
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Error    string            `json:"error"`
	Detalles string            `json:"detalles,omitempty"`
	Fields   map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Error: "Error de validacion", Fields: fields}
}

// Int is a small helper for the optional numeric context fields.
func Int(v int) *int { return &v }
