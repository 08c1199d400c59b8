package infra

// pdf.go: order receipt ("comprobante") generation using go-pdf/fpdf.
// A5 page with store header, order number and date, item table with unit
// price and subtotal, and the bold order total.

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Ambrosio03/TFG/internal/model"

	"github.com/go-pdf/fpdf"
)

const nombreTienda = "Tienda TFG"

// GenerarComprobantePDF writes the receipt of p to storagePath and returns the
// file path. The worker attaches it to the confirmation email.
func GenerarComprobantePDF(p *model.Pedido, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("pedido_%s.pdf", p.ID))

	if err := renderComprobante(p).OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

// EscribirComprobantePDF streams the receipt of p to w.
func EscribirComprobantePDF(w io.Writer, p *model.Pedido) error {
	if err := renderComprobante(p).Output(w); err != nil {
		return fmt.Errorf("pdf: render: %w", err)
	}
	return nil
}

func renderComprobante(p *model.Pedido) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 20

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, nombreTienda, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Comprobante de pedido", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 5, tr("Pedido N° "+p.ID.String()), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Fecha: "+p.FechaCreacion.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, "Estado: "+string(p.Estado), "", 1, "L", false, 0, "")
	if p.Usuario != nil {
		pdf.CellFormat(contentW, 5, tr("Cliente: "+p.Usuario.NombreUsuario+" <"+p.Usuario.Email+">"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	// ── Items ────────────────────────────────────────────────────────────────
	col1 := contentW * 0.46
	col2 := contentW * 0.12
	col3 := contentW * 0.20
	col4 := contentW * 0.22

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1, 6, "Producto", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 6, "Cant", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 6, "Precio", "B", 0, "R", false, 0, "")
	pdf.CellFormat(col4, 6, "Subtotal", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, item := range p.Items {
		nombre := item.ProductoID.String()[:8]
		if item.Producto != nil {
			nombre = item.Producto.Nombre
		}
		if r := []rune(nombre); len(r) > 32 {
			nombre = string(r[:31]) + "..."
		}
		pdf.CellFormat(col1, 6, tr(nombre), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 6, fmt.Sprintf("%d", item.Cantidad), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 6, item.PrecioUnitario.StringFixed(2)+" EUR", "", 0, "R", false, 0, "")
		pdf.CellFormat(col4, 6, item.Subtotal().StringFixed(2)+" EUR", "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(10, pdf.GetY(), pageW-10, pdf.GetY())
	pdf.Ln(2)

	// ── Total ────────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(col1+col2+col3, 7, "TOTAL", "", 0, "L", false, 0, "")
	pdf.CellFormat(col4, 7, p.Total.StringFixed(2)+" EUR", "", 1, "R", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(contentW, 4, tr("¡Gracias por su compra!"), "", 1, "C", false, 0, "")
	return pdf
}
