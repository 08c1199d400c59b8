package handler

import (
	"bytes"
	"net/http"

	"github.com/Ambrosio03/TFG/internal/dto"
	"github.com/Ambrosio03/TFG/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PedidosHandler struct{ svc service.PedidoService }

func NewPedidosHandler(svc service.PedidoService) *PedidosHandler {
	return &PedidosHandler{svc: svc}
}

// Crear godoc
// @Summary Convierte el carrito pendiente del usuario en un pedido
// @Tags pedidos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CrearPedidoRequest true "Usuario"
// @Success 201 {object} dto.CrearPedidoResponse
// @Failure 400 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /pedidos/crear [post]
func (h *PedidosHandler) Crear(c *gin.Context) {
	var req dto.CrearPedidoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	userID := uuid.MustParse(req.UserID)
	if !requireOwnerOrAdmin(c, userID) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *PedidosHandler) Listar(c *gin.Context) {
	resp, err := h.svc.Listar(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PedidosHandler) ObtenerPorID(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerPorID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !requireOwnerOrAdmin(c, uuid.MustParse(resp.UsuarioID)) {
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PedidosHandler) ListarPorUsuario(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "userId")
	if !ok || !requireOwnerOrAdmin(c, userID) {
		return
	}
	resp, err := h.svc.ListarPorUsuario(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PedidosHandler) MisPedidos(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "userId")
	if !ok || !requireOwnerOrAdmin(c, userID) {
		return
	}
	resp, err := h.svc.MisPedidos(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PedidosHandler) Items(c *gin.Context) {
	id, ok := parseUUIDParam(c, "pedidoId")
	if !ok || !h.autorizar(c, id) {
		return
	}
	resp, err := h.svc.Items(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PedidosHandler) ItemsTodos(c *gin.Context) {
	resp, err := h.svc.ItemsTodos(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PedidosHandler) ActualizarEstado(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.ActualizarEstadoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ActualizarEstado(c.Request.Context(), id, req.Estado)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Comprobante streams the receipt PDF of the order.
func (h *PedidosHandler) Comprobante(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok || !h.autorizar(c, id) {
		return
	}
	var buf bytes.Buffer
	if err := h.svc.Comprobante(c.Request.Context(), id, &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "inline; filename=pedido_"+id.String()+".pdf")
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *PedidosHandler) autorizar(c *gin.Context, pedidoID uuid.UUID) bool {
	owner, err := h.svc.Propietario(c.Request.Context(), pedidoID)
	if err != nil {
		respondError(c, err)
		return false
	}
	return requireOwnerOrAdmin(c, owner)
}
