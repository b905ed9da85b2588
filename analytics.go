package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Event is a named interaction, shaped like a gtag event.
type Event struct {
	Action   string `json:"action" binding:"required,max=64"`
	Category string `json:"category" binding:"required,max=64"`
	Label    string `json:"label" binding:"max=256"`
	Value    *int   `json:"value,omitempty"`
}

//go:generate mockgen -source=analytics.go -destination=mock_reporter_test.go -package=main

// Reporter receives interaction events. Report must not block and its
// failures are the reporter's own business.
type Reporter interface {
	Report(ctx context.Context, e Event)
}

type NopReporter struct{}

func (NopReporter) Report(context.Context, Event) {}

const defaultEventQueue = 256

// SQLiteReporter writes events to the store from a single background worker.
// When the queue is full the event is dropped.
type SQLiteReporter struct {
	store   *Store
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

func NewSQLiteReporter(store *Store, logger *slog.Logger, metrics *Metrics, queueSize int) *SQLiteReporter {
	if queueSize <= 0 {
		queueSize = defaultEventQueue
	}
	r := &SQLiteReporter{
		store:   store,
		logger:  logger,
		metrics: metrics,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *SQLiteReporter) Report(_ context.Context, e Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- e:
	default:
		if r.metrics != nil {
			r.metrics.EventsDropped.Inc()
		}
		r.logger.Warn("event queue full, dropping event", "action", e.Action)
	}
}

func (r *SQLiteReporter) run() {
	defer close(r.done)
	for e := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.RecordEvent(ctx, uuid.NewString(), e); err != nil {
			r.logger.Error("recording event", "action", e.Action, "error", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be written.
func (r *SQLiteReporter) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

// visitorHasher hashes client addresses with a per-process salt so raw IPs
// never reach the database.
type visitorHasher struct {
	salt string
}

func newVisitorHasher() (visitorHasher, error) {
	salt, err := generateToken()
	if err != nil {
		return visitorHasher{}, err
	}
	return visitorHasher{salt: salt}, nil
}

func (h visitorHasher) Hash(ip string) string {
	sum := sha256.Sum256([]byte(ip + h.salt))
	return hex.EncodeToString(sum[:])[:16]
}

var untrackedPrefixes = []string{
	"/static/", "/images/", "/admin/", "/api/", "/favicon", "/privacy", "/metrics", "/healthz",
}

// visitorTrackingMiddleware records page views in the background. Visitors
// sending DNT: 1 are not recorded.
func visitorTrackingMiddleware(store *Store, hasher visitorHasher, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != "GET" || c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}
		for _, prefix := range untrackedPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		hashed := hasher.Hash(c.ClientIP())
		ua := c.GetHeader("User-Agent")
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.RecordVisit(ctx, hashed, ua, path); err != nil {
				logger.Error("recording visitor", "error", err)
			}
		}()
		c.Next()
	}
}

// runRetention purges old analytics rows now and then once a day until ctx
// is done.
func runRetention(ctx context.Context, store *Store, retention time.Duration, logger *slog.Logger) error {
	if retention <= 0 {
		return nil
	}
	purge := func() {
		n, err := store.PurgeOlderThan(ctx, retention)
		if err != nil {
			logger.Error("analytics retention", "error", err)
			return
		}
		if n > 0 {
			logger.Info("analytics retention removed old rows", "rows", n, "retention", retention)
		}
	}

	purge()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			purge()
		}
	}
}
