package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/Ambrosio03/TFG/internal/apierror"
	"github.com/Ambrosio03/TFG/internal/middleware"
	"github.com/Ambrosio03/TFG/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// Report JSON field names instead of Go field names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido").WithDetalles(err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		c.JSON(http.StatusBadRequest, apierror.NewValidation(fields))
		return false
	}
	return true
}

// parseUUIDParam reads a uuid path parameter, answering 400 when malformed.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido").WithDetalles(name+" no es un UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// requireOwnerOrAdmin lets admins through and otherwise requires the token
// subject to be owner.
func requireOwnerOrAdmin(c *gin.Context, owner uuid.UUID) bool {
	claims := middleware.GetClaims(c)
	if claims != nil && (claims.EsAdmin() || claims.UUID() == owner) {
		return true
	}
	c.JSON(http.StatusForbidden, apierror.New("Permisos insuficientes").
		WithDetalles("solo puedes acceder a tus propios datos"))
	return false
}

// respondError maps service errors to HTTP responses. Anything unrecognised is
// logged and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	var verr *service.ValidacionError
	var serr *service.StockInsuficienteError

	switch {
	case errors.As(err, &serr):
		body := apierror.New("Stock insuficiente").WithDetalles(serr.Error())
		body.StockDisponible = apierror.Int(serr.StockDisponible)
		body.CantidadActual = serr.CantidadActual
		body.CantidadSolicitada = apierror.Int(serr.CantidadSolicitada)
		c.JSON(http.StatusBadRequest, body)

	case errors.As(err, &verr):
		if len(verr.Fields) > 0 {
			body := apierror.NewValidation(verr.Fields)
			body.Detalles = verr.Msg
			c.JSON(http.StatusBadRequest, body)
			return
		}
		body := apierror.New(verr.Msg)
		body.MissingColumns = verr.MissingColumns
		c.JSON(http.StatusBadRequest, body)

	case errors.Is(err, service.ErrNoEncontrado):
		c.JSON(http.StatusNotFound, apierror.New(capitalizar(err.Error())))

	case errors.Is(err, service.ErrCantidadInvalida),
		errors.Is(err, service.ErrEstadoInvalido),
		errors.Is(err, service.ErrTransicionInvalida),
		errors.Is(err, service.ErrRolInvalido),
		errors.Is(err, service.ErrCarritoNoPendiente),
		errors.Is(err, service.ErrCarritoVacio):
		c.JSON(http.StatusBadRequest, apierror.New(capitalizar(err.Error())))

	case errors.Is(err, service.ErrCredencialesInvalidas):
		c.JSON(http.StatusUnauthorized, apierror.New("Credenciales invalidas"))

	case errors.Is(err, service.ErrUsuarioBloqueado):
		c.JSON(http.StatusForbidden, apierror.New("Usuario bloqueado").WithCode("USUARIO_BLOQUEADO"))

	case errors.Is(err, service.ErrConflicto):
		c.JSON(http.StatusConflict, apierror.New(capitalizar(err.Error())))

	default:
		log.Error().
			Err(err).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("unhandled error")
		c.JSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
	}
}

func capitalizar(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
