package handler

import (
	"bytes"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Ambrosio03/TFG/internal/apierror"
	"github.com/Ambrosio03/TFG/internal/dto"
	"github.com/Ambrosio03/TFG/internal/service"

	"github.com/gin-gonic/gin"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ProductosHandler struct{ svc service.ProductoService }

func NewProductosHandler(svc service.ProductoService) *ProductosHandler {
	return &ProductosHandler{svc: svc}
}

// ListarVisibles godoc
// @Summary Catalogo publico (solo productos visibles)
// @Tags productos
// @Produce json
// @Success 200 {array} dto.ProductoResponse
// @Router /product [get]
func (h *ProductosHandler) ListarVisibles(c *gin.Context) {
	resp, err := h.svc.ListarVisibles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductosHandler) ListarTodos(c *gin.Context) {
	resp, err := h.svc.ListarTodos(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductosHandler) ObtenerPorID(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerPorID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CheckStock answers whether ?cantidad= units (default 1) are available.
func (h *ProductosHandler) CheckStock(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	cantidad, err := strconv.Atoi(c.DefaultQuery("cantidad", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("La cantidad debe ser un numero entero"))
		return
	}
	resp, err := h.svc.VerificarStock(c.Request.Context(), id, cantidad)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Crear godoc
// @Summary Alta de producto con 4 imagenes en data URI
// @Tags productos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CrearProductoRequest true "Producto"
// @Success 201 {object} dto.ProductoMutacionResponse
// @Failure 400 {object} apierror.ValidationError
// @Router /product [post]
func (h *ProductosHandler) Crear(c *gin.Context) {
	var req dto.CrearProductoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ProductoMutacionResponse{Message: "Producto creado correctamente", Producto: *resp})
}

func (h *ProductosHandler) Actualizar(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.ActualizarProductoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Actualizar(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ProductoMutacionResponse{Message: "Producto actualizado correctamente", Producto: *resp})
}

func (h *ProductosHandler) Eliminar(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Eliminar(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Producto eliminado correctamente"})
}

// AjustarStock applies body.cantidad as a signed delta.
func (h *ProductosHandler) AjustarStock(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.AjustarStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AjustarStock(c.Request.Context(), id, *req.Cantidad)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductosHandler) Movimientos(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ListarMovimientos(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ── Bulk import / export ──────────────────────────────────────────────────────

func (h *ProductosHandler) ImportarCSV(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("No se ha proporcionado ningún archivo"))
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") && fh.Header.Get("Content-Type") != "text/csv" {
		c.JSON(http.StatusBadRequest, apierror.New("El archivo debe ser de tipo CSV"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	resp, err := h.svc.ImportarCSV(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductosHandler) ImportarExcel(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("No se ha proporcionado ningún archivo"))
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".xlsx") {
		c.JSON(http.StatusBadRequest, apierror.New("El archivo debe ser de tipo Excel (.xlsx)"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	resp, err := h.svc.ImportarExcel(c.Request.Context(), f, fh.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductosHandler) ExportarExcel(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.svc.ExportarExcel(c.Request.Context(), &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=productos.xlsx")
	c.Data(http.StatusOK, mimeXLSX, buf.Bytes())
}
