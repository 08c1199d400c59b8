package worker

// comprobante_worker.go
// Processes receipt jobs from QueueComprobante:
//  1. load the Pedido with user and items
//  2. render the PDF receipt to PDF_STORAGE_PATH
//  3. enqueue the confirmation email with the PDF attached

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Ambrosio03/TFG/internal/infra"
	"github.com/Ambrosio03/TFG/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ComprobanteJobPayload is the job envelope sent to QueueComprobante.
type ComprobanteJobPayload struct {
	PedidoID string `json:"pedido_id"`
	Email    string `json:"email,omitempty"`
}

type emailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

type ComprobanteWorker struct {
	pedidoRepo     repository.PedidoRepository
	emails         emailEnqueuer
	pdfStoragePath string
}

func NewComprobanteWorker(pedidoRepo repository.PedidoRepository, emails emailEnqueuer, pdfStoragePath string) *ComprobanteWorker {
	return &ComprobanteWorker{pedidoRepo: pedidoRepo, emails: emails, pdfStoragePath: pdfStoragePath}
}

func (w *ComprobanteWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ComprobanteJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("comprobante_worker: invalid payload")
		return nil
	}
	pedidoID, err := uuid.Parse(payload.PedidoID)
	if err != nil {
		log.Error().Str("pedido_id", payload.PedidoID).Msg("comprobante_worker: invalid pedido_id")
		return nil
	}

	pedido, err := w.pedidoRepo.FindByID(ctx, pedidoID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn().Str("pedido_id", payload.PedidoID).Msg("comprobante_worker: pedido not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("comprobante_worker: load pedido: %w", err)
	}

	pdfPath, err := infra.GenerarComprobantePDF(pedido, w.pdfStoragePath)
	if err != nil {
		return err
	}
	log.Info().Str("pdf", pdfPath).Str("pedido_id", payload.PedidoID).Msg("comprobante_worker: PDF generated")

	to := payload.Email
	if to == "" && pedido.Usuario != nil {
		to = pedido.Usuario.Email
	}
	if to == "" {
		return nil
	}

	emailJob := EmailJobPayload{
		ToEmail: to,
		Subject: fmt.Sprintf("Confirmación de pedido %s", shortID(payload.PedidoID)),
		Body: fmt.Sprintf("Hemos recibido tu pedido.\nTotal: %s EUR\nAdjunto encontrarás el comprobante.",
			pedido.Total.StringFixed(2)),
		PDFPath: pdfPath,
	}
	if err := w.emails.EnqueueEmail(ctx, emailJob); err != nil {
		log.Warn().Err(err).Str("email", to).Msg("comprobante_worker: failed to enqueue email")
		return nil
	}
	log.Info().Str("email", to).Msg("comprobante_worker: email job enqueued")
	return nil
}
