package handler

import (
	"net/http"

	"github.com/Ambrosio03/TFG/internal/dto"
	"github.com/Ambrosio03/TFG/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CarritoHandler struct{ svc service.CarritoService }

func NewCarritoHandler(svc service.CarritoService) *CarritoHandler {
	return &CarritoHandler{svc: svc}
}

func (h *CarritoHandler) Obtener(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "userId")
	if !ok || !requireOwnerOrAdmin(c, userID) {
		return
	}
	resp, err := h.svc.ObtenerCarrito(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Agregar godoc
// @Summary Añade un producto al carrito pendiente del usuario
// @Tags carrito
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AgregarCarritoRequest true "Item"
// @Success 200 {object} dto.AgregarCarritoResponse
// @Failure 400 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /cart/add [post]
func (h *CarritoHandler) Agregar(c *gin.Context) {
	var req dto.AgregarCarritoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	userID := uuid.MustParse(req.UserID)
	if !requireOwnerOrAdmin(c, userID) {
		return
	}
	resp, err := h.svc.AgregarItem(c.Request.Context(), userID, uuid.MustParse(req.ProductID), *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CarritoHandler) ActualizarCantidad(c *gin.Context) {
	itemID, ok := parseUUIDParam(c, "itemId")
	if !ok {
		return
	}
	var req dto.ActualizarCantidadRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if !h.autorizarItem(c, itemID) {
		return
	}
	if err := h.svc.ActualizarCantidad(c.Request.Context(), itemID, *req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cantidad actualizada correctamente"})
}

func (h *CarritoHandler) EliminarItem(c *gin.Context) {
	itemID, ok := parseUUIDParam(c, "itemId")
	if !ok || !h.autorizarItem(c, itemID) {
		return
	}
	if err := h.svc.EliminarItem(c.Request.Context(), itemID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Producto eliminado del carrito"})
}

func (h *CarritoHandler) autorizarItem(c *gin.Context, itemID uuid.UUID) bool {
	owner, err := h.svc.PropietarioItem(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, err)
		return false
	}
	return requireOwnerOrAdmin(c, owner)
}
