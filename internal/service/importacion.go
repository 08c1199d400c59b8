package service

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/Ambrosio03/TFG/internal/dto"
	"github.com/Ambrosio03/TFG/internal/model"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
)

// columnasImportacion must all be present in the header; order is free and
// extra columns are ignored.
var columnasImportacion = []string{"nombre", "descripcion", "precio", "stock", "visible"}

var valoresBooleanos = map[string]bool{
	"1": true, "true": true, "yes": true, "on": true, "si": true, "sí": true,
	"0": false, "false": false, "no": false, "off": false,
}

// ── CSV ───────────────────────────────────────────────────────────────────────

// ImportarCSV creates one product per valid data row. Invalid rows are reported
// by their 1-based position after the header and skipped.
func (s *productoService) ImportarCSV(ctx context.Context, r io.Reader) (*dto.ImportResponse, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, validacion("el archivo CSV esta vacio", nil)
	}
	if err != nil {
		return nil, validacion("no se pudo leer la cabecera del CSV: "+err.Error(), nil)
	}
	idx, err := indiceColumnas(header)
	if err != nil {
		return nil, err
	}

	imp := importador{svc: s}
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			imp.fallo(row, "fila ilegible: "+err.Error())
			continue
		}
		imp.importar(ctx, row, celdas(idx, rec))
	}
	return imp.resultado(ctx), nil
}

// ── Excel ─────────────────────────────────────────────────────────────────────

// ImportarExcel applies the CSV rules to the first sheet of an .xlsx workbook.
func (s *productoService) ImportarExcel(ctx context.Context, r io.ReaderAt, size int64) (*dto.ImportResponse, error) {
	file, err := xlsx.OpenReaderAt(r, size)
	if err != nil {
		return nil, validacion("el archivo no es un Excel valido", nil)
	}
	if len(file.Sheets) == 0 || len(file.Sheets[0].Rows) == 0 {
		return nil, validacion("el Excel esta vacio", nil)
	}
	sheet := file.Sheets[0]

	idx, err := indiceColumnas(filaExcel(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	imp := importador{svc: s}
	for i := 1; i < len(sheet.Rows); i++ {
		rec := filaExcel(sheet.Rows[i])
		if filaVacia(rec) {
			continue
		}
		imp.importar(ctx, i, celdas(idx, rec))
	}
	return imp.resultado(ctx), nil
}

// ExportarExcel writes the full catalog using the import column names, so the
// file can be edited and imported again.
func (s *productoService) ExportarExcel(ctx context.Context, w io.Writer) error {
	productos, err := s.repo.ListAll(ctx)
	if err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Productos")
	if err != nil {
		return err
	}

	headerRow := sheet.AddRow()
	for _, h := range []string{"id", "nombre", "descripcion", "precio", "stock", "visible", "imagen"} {
		headerRow.AddCell().SetValue(h)
	}
	for _, p := range productos {
		row := sheet.AddRow()
		row.AddCell().SetValue(p.ID.String())
		row.AddCell().SetValue(p.Nombre)
		row.AddCell().SetValue(p.Descripcion)
		row.AddCell().SetValue(p.Precio.StringFixed(2))
		row.AddCell().SetValue(p.Stock)
		row.AddCell().SetValue(strconv.FormatBool(p.Visible))
		imagen := ""
		if p.Imagen != nil {
			imagen = *p.Imagen
		}
		row.AddCell().SetValue(imagen)
	}
	return file.Write(w)
}

// ── Shared row handling ───────────────────────────────────────────────────────

type importador struct {
	svc      *productoService
	imported int
	errors   []dto.ImportErrorRow
}

func (imp *importador) fallo(row int, msg string) {
	imp.errors = append(imp.errors, dto.ImportErrorRow{Row: row, Error: msg})
}

func (imp *importador) importar(ctx context.Context, row int, get func(string) string) {
	p, err := parseFilaProducto(get)
	if err != nil {
		imp.fallo(row, err.Error())
		return
	}
	ph := imp.svc.images.Placeholder()
	p.Imagen = &ph
	p.Imagenes = model.Imagenes{ph, ph, ph, ph}

	if err := imp.svc.crearConMovimiento(ctx, p, "importacion"); err != nil {
		log.Error().Err(err).Int("row", row).Msg("importacion: no se pudo crear el producto")
		imp.fallo(row, "no se pudo guardar el producto")
		return
	}
	imp.imported++
}

func (imp *importador) resultado(ctx context.Context) *dto.ImportResponse {
	if imp.imported > 0 {
		imp.svc.cache.invalidar(ctx)
	}
	errs := imp.errors
	if errs == nil {
		errs = []dto.ImportErrorRow{}
	}
	log.Info().Int("imported", imp.imported).Int("errors", len(errs)).Msg("importacion completada")
	return &dto.ImportResponse{Message: "Importación completada", Imported: imp.imported, Errors: errs}
}

func parseFilaProducto(get func(string) string) (*model.Producto, error) {
	nombre, descripcion := get("nombre"), get("descripcion")
	if nombre == "" || descripcion == "" {
		return nil, errors.New("nombre y descripcion son obligatorios")
	}
	precio, err := decimal.NewFromString(get("precio"))
	if err != nil || precio.IsNegative() {
		return nil, errors.New("precio invalido")
	}
	stock, err := strconv.Atoi(get("stock"))
	if err != nil || stock < 0 {
		return nil, errors.New("stock invalido")
	}
	visible, ok := valoresBooleanos[strings.ToLower(get("visible"))]
	if !ok {
		return nil, errors.New("valor de visibilidad invalido")
	}
	return &model.Producto{
		Nombre:      nombre,
		Descripcion: descripcion,
		Precio:      precio.Round(2),
		Stock:       stock,
		Visible:     visible,
	}, nil
}

// indiceColumnas maps each normalized header name to its position.
func indiceColumnas(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	var missing []string
	for _, col := range columnasImportacion {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidacionError{
			Msg:            "faltan columnas obligatorias: " + strings.Join(missing, ", "),
			MissingColumns: missing,
		}
	}
	return idx, nil
}

func celdas(idx map[string]int, rec []string) func(string) string {
	return func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
}

func filaExcel(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		if c != nil {
			out[i] = c.String()
		}
	}
	return out
}

func filaVacia(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
