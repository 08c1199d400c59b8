package infra

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ambrosio03/TFG/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pngDataURI = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// ── Circuit breaker ───────────────────────────────────────────────────────────

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: time.Minute})
	cb.now = func() time.Time { return now }
	boom := errors.New("smtp down")

	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, CBClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, CBOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(time.Minute)
	assert.Equal(t, CBHalfOpen, cb.State())
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: time.Second})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errors.New("x") })
	now = now.Add(2 * time.Second)
	_ = cb.Execute(func() error { return errors.New("x") })
	assert.Equal(t, CBOpen, cb.State())
}

// ── Images ────────────────────────────────────────────────────────────────────

func TestDecodeDataURI(t *testing.T) {
	ext, data, err := DecodeDataURI(pngDataURI)
	require.NoError(t, err)
	assert.Equal(t, "png", ext)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	ext, _, err = DecodeDataURI("data:image/jpeg;base64,/9j/4AAQ")
	require.NoError(t, err)
	assert.Equal(t, "jpg", ext)

	for _, bad := range []string{"", "http://x/a.png", "data:image/gif;base64,R0lG", "data:image/png;base64,@@@", "data:image/png;base64,"} {
		_, _, err := DecodeDataURI(bad)
		assert.ErrorIs(t, err, ErrImagenInvalida, bad)
	}
}

func TestImageStore_SaveAndDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "products")
	store := NewImageStore(dir, "placeholder.webp")

	names, err := store.Save([]string{pngDataURI, pngDataURI})
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.NotEqual(t, names[0], names[1])
	for _, n := range names {
		assert.True(t, strings.HasSuffix(n, ".png"))
		assert.FileExists(t, filepath.Join(dir, n))
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "placeholder.webp"), []byte("x"), 0644))
	store.Delete(append(names, "placeholder.webp", "missing.png"))
	for _, n := range names {
		assert.NoFileExists(t, filepath.Join(dir, n))
	}
	assert.FileExists(t, filepath.Join(dir, "placeholder.webp"))
}

func TestImageStore_SaveRejectsBeforeWriting(t *testing.T) {
	dir := t.TempDir()
	store := NewImageStore(dir, "placeholder.webp")

	_, err := store.Save([]string{pngDataURI, "data:image/bmp;base64,Qk0="})
	assert.ErrorIs(t, err, ErrImagenInvalida)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// ── PDF ───────────────────────────────────────────────────────────────────────

func testPedido() *model.Pedido {
	p := model.NuevoPedido(uuid.New(), time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC))
	p.Usuario = &model.Usuario{NombreUsuario: "ana", Email: "ana@example.com"}
	p.Items = []model.PedidoItem{{
		ID: uuid.New(), PedidoID: p.ID, ProductoID: uuid.New(), Cantidad: 2,
		PrecioUnitario: decimal.RequireFromString("10.00"),
		Producto:       &model.Producto{Nombre: "Taza"},
	}}
	p.Total = p.CalcularTotal()
	return p
}

func TestComprobantePDF(t *testing.T) {
	p := testPedido()

	var buf bytes.Buffer
	require.NoError(t, EscribirComprobantePDF(&buf, p))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))

	path, err := GenerarComprobantePDF(p, filepath.Join(t.TempDir(), "pdf"))
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Contains(t, path, p.ID.String())
}
