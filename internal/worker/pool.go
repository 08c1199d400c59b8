package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Ambrosio03/TFG/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueComprobante = "jobs:comprobante"
	QueueEmail       = "jobs:email"

	JobComprobante = "comprobante"
	JobEmail       = "email"

	// DefaultMaxAttempts is how many times a job runs before it goes to the DLQ.
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the pause after a failed BRPOP (Redis unreachable).
	DefaultRetryDelay = 2 * time.Second
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Handler processes one job payload. A returned error schedules a retry.
type Handler func(ctx context.Context, payload json.RawMessage) error

// ── Dispatcher ────────────────────────────────────────────────────────────────

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueComprobante pushes a receipt job: PDF generation plus confirmation email.
func (d *Dispatcher) EnqueueComprobante(ctx context.Context, payload ComprobanteJobPayload) error {
	return d.enqueue(ctx, QueueComprobante, Job{Type: JobComprobante}, payload)
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, Job{Type: JobEmail}, payload)
}

// PedidoCreado schedules the receipt of a freshly created order.
func (d *Dispatcher) PedidoCreado(ctx context.Context, p *model.Pedido, email string) error {
	return d.EnqueueComprobante(ctx, ComprobanteJobPayload{PedidoID: p.ID.String(), Email: email})
}

// EstadoCambiado notifies the owner when an order ships or is delivered.
func (d *Dispatcher) EstadoCambiado(ctx context.Context, p *model.Pedido, email string) error {
	var body string
	switch p.Estado {
	case model.EstadoEnviado:
		body = "Tu pedido %s ha sido enviado. Lo recibirás en los próximos días."
	case model.EstadoEntregado:
		body = "Tu pedido %s ha sido entregado. ¡Gracias por tu compra!"
	default:
		return nil
	}
	return d.EnqueueEmail(ctx, EmailJobPayload{
		ToEmail: email,
		Subject: fmt.Sprintf("Pedido %s: %s", shortID(p.ID.String()), p.Estado),
		Body:    fmt.Sprintf(body, p.ID),
	})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue string, job Job, payload interface{}) error {
	if d == nil || d.rdb == nil {
		return errors.New("dispatcher: redis no disponible")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job.Payload = data
	return d.push(ctx, queue, job)
}

func (d *Dispatcher) push(ctx context.Context, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ── Pool ──────────────────────────────────────────────────────────────────────

// Pool runs numWorkers goroutines consuming both queues. Failed jobs are pushed
// back with Attempts+1 until MaxAttempts, then moved to the DLQ.
type Pool struct {
	rdb         *redis.Client
	dispatcher  *Dispatcher
	handlers    map[string]Handler
	numWorkers  int
	MaxAttempts int
	RetryDelay  time.Duration
	wg          sync.WaitGroup
}

func NewPool(rdb *redis.Client, numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool{
		rdb:         rdb,
		dispatcher:  NewDispatcher(rdb),
		handlers:    make(map[string]Handler),
		numWorkers:  numWorkers,
		MaxAttempts: DefaultMaxAttempts,
		RetryDelay:  DefaultRetryDelay,
	}
}

// Register binds a job type to its handler. Call before Start.
func (p *Pool) Register(jobType string, h Handler) {
	p.handlers[jobType] = h
}

// Start launches the workers. Each goroutine blocks on BRPOP and stays idle until a job arrives.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}
	log.Info().Int("workers", p.numWorkers).Msg("worker pool started")
}

// Wait blocks until every worker has returned after ctx cancellation.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, id int) {
	queues := []string{QueueComprobante, QueueEmail}
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("worker", id).Msg("worker shutting down")
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue // timeout or context cancelled
				}
				log.Warn().Err(err).Int("worker", id).Dur("retry_in", p.RetryDelay).Msg("brpop failed")
				select {
				case <-ctx.Done():
				case <-time.After(p.RetryDelay):
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, p.rdb, queue, "", json.RawMessage(raw), "payload invalido", 0)
		return
	}

	h, ok := p.handlers[job.Type]
	if !ok {
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, "tipo de job desconocido", job.Attempts)
		return
	}

	err := h(ctx, job.Payload)
	if err == nil {
		return
	}

	job.Attempts++
	if job.Attempts >= p.MaxAttempts {
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
		return
	}
	log.Warn().
		Err(err).
		Str("type", job.Type).
		Int("attempt", job.Attempts).
		Msg("job failed, requeued")
	if perr := p.dispatcher.push(ctx, queue, job); perr != nil {
		log.Error().Err(perr).Str("queue", queue).Msg("failed to requeue job")
	}
}
