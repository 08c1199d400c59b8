package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Sentinel errors. Services wrap them with fmt.Errorf("...: %w") and the HTTP
// layer maps them with errors.Is / errors.As.
var (
	ErrValidacion            = errors.New("datos invalidos")
	ErrNoEncontrado          = errors.New("no encontrado")
	ErrStockInsuficiente     = errors.New("stock insuficiente")
	ErrCantidadInvalida      = errors.New("la cantidad debe ser mayor que 0")
	ErrEstadoInvalido        = errors.New("estado no valido")
	ErrTransicionInvalida    = errors.New("transicion de estado no permitida")
	ErrRolInvalido           = errors.New("rol no valido")
	ErrCredencialesInvalidas = errors.New("credenciales invalidas")
	ErrUsuarioBloqueado      = errors.New("usuario bloqueado")
	ErrCarritoNoPendiente    = errors.New("no hay carrito pendiente para este usuario")
	ErrCarritoVacio          = errors.New("el carrito esta vacio")
	ErrConflicto             = errors.New("conflicto")
)

// ValidacionError carries per-field messages. It matches ErrValidacion.
type ValidacionError struct {
	Msg            string
	Fields         map[string]string
	MissingColumns []string
}

func (e *ValidacionError) Error() string {
	if len(e.Fields) == 0 {
		return e.Msg
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Msg + " (" + strings.Join(parts, ", ") + ")"
}

func (e *ValidacionError) Is(target error) bool { return target == ErrValidacion }

func validacion(msg string, fields map[string]string) error {
	return &ValidacionError{Msg: msg, Fields: fields}
}

// StockInsuficienteError reports the stock a request ran into.
// CantidadActual is only set when an existing cart line was being increased.
type StockInsuficienteError struct {
	ProductoID         uuid.UUID
	Nombre             string
	StockDisponible    int
	CantidadActual     *int
	CantidadSolicitada int
}

func (e *StockInsuficienteError) Error() string {
	return fmt.Sprintf("stock insuficiente para %q: disponible %d, solicitado %d",
		e.Nombre, e.StockDisponible, e.CantidadSolicitada)
}

func (e *StockInsuficienteError) Is(target error) bool { return target == ErrStockInsuficiente }

func noEncontrado(entidad string) error {
	return fmt.Errorf("%s %w", entidad, ErrNoEncontrado)
}
