package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Ambrosio03/TFG/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── Fixed-window counter ──────────────────────────────────────────────────────

type ventana struct {
	count int
	fin   time.Time
}

// windowLimiter counts hits per key in fixed windows of length window.
type windowLimiter struct {
	nombre  string
	window  time.Duration
	mu      sync.Mutex
	ventana map[string]*ventana
}

var (
	limitersMu sync.Mutex
	limiters   []*windowLimiter
	purgeOnce  sync.Once
)

func newWindowLimiter(nombre string, window time.Duration) *windowLimiter {
	l := &windowLimiter{nombre: nombre, window: window, ventana: make(map[string]*ventana)}
	limitersMu.Lock()
	limiters = append(limiters, l)
	limitersMu.Unlock()
	purgeOnce.Do(func() { go purgeLoop() })
	return l
}

// hit records one request for key. It returns false and the seconds until the
// window resets once the count goes over limit.
func (l *windowLimiter) hit(key string, limit int) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	v, ok := l.ventana[key]
	if !ok || now.After(v.fin) {
		v = &ventana{fin: now.Add(l.window)}
		l.ventana[key] = v
	}
	v.count++
	if v.count > limit {
		return false, int(v.fin.Sub(now).Seconds()) + 1
	}
	return true, 0
}

func (l *windowLimiter) purge(now time.Time) (purged, remaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range l.ventana {
		if now.After(v.fin) {
			delete(l.ventana, k)
			purged++
		}
	}
	return purged, len(l.ventana)
}

func (l *windowLimiter) handler(limit int, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retry := l.hit(c.ClientIP(), limit)
		if !ok {
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(msg))
			return
		}
		c.Next()
	}
}

// ── Middleware ────────────────────────────────────────────────────────────────

// credenciales is shared by every credential endpoint, so /login and /register
// draw from the same per-IP budget.
var credenciales = newWindowLimiter("credenciales", time.Minute)

// LoginRateLimiter limits credential endpoints to limit attempts per minute per IP.
func LoginRateLimiter(limit int) gin.HandlerFunc {
	return credenciales.handler(limit, "Demasiados intentos. Intente en 1 minuto.")
}

// RateLimiter returns a general-purpose fixed-window rate limiter per IP.
// Each call owns its own counters.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return newWindowLimiter("api", window).
		handler(limit, "Demasiadas solicitudes. Intente nuevamente en un momento.")
}

// ── Purge ─────────────────────────────────────────────────────────────────────

const purgeInterval = 5 * time.Minute

// purgeLoop drops expired windows so IPs that never return do not pile up.
func purgeLoop() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for now := range ticker.C {
		limitersMu.Lock()
		activos := append([]*windowLimiter(nil), limiters...)
		limitersMu.Unlock()

		for _, l := range activos {
			purged, remaining := l.purge(now)
			if purged > 0 {
				log.Debug().
					Str("limiter", l.nombre).
					Int("purged", purged).
					Int("remaining", remaining).
					Msg("rate limiter purged")
			}
		}
	}
}
