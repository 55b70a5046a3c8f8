package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/usecase/batch"
	"batchtrack/internal/usecase/feed"
)

const (
	RequestIDHeader   = "X-Request-ID"
	ActorIDHeader     = "X-Actor-ID"
	ActorRoleHeader   = "X-Actor-Role"
	IdempotencyHeader = "Idempotency-Key"
)

// Batches is the batch service surface the API exposes.
type Batches interface {
	CreateBatch(ctx context.Context, input batch.CreateBatchInput) (string, error)
	SubmitSample(ctx context.Context, input batch.SubmitSampleInput) (string, error)
	DecideSample(ctx context.Context, input batch.DecideSampleInput) error
	ClaimForTesting(ctx context.Context, input batch.ClaimInput) error
	SetOnHold(ctx context.Context, input batch.HoldInput) error
	RejectBatch(ctx context.Context, input batch.RejectInput) error
	ReassignProcessor(ctx context.Context, input batch.ReassignInput) error
	ReassignQA(ctx context.Context, input batch.ReassignInput) error
	GetBatch(ctx context.Context, batchID string) (batch.BatchDetail, error)
	ListView(ctx context.Context, view domainbatch.View) ([]batch.BatchView, error)
	ListSamples(ctx context.Context, batchID string) ([]batch.SampleView, error)
}

// Streams opens snapshot subscriptions.
type Streams interface {
	Subscribe(view domainbatch.View, batchID string, callback func(feed.Snapshot)) (*feed.Subscription, error)
}

type Server struct {
	ctx     context.Context
	batches Batches
	streams Streams
	metrics http.Handler
}

// NewRouter mounts the JSON API, websocket streams, health and metrics.
// ctx carries the base logger; streams and metrics may be nil.
func NewRouter(ctx context.Context, batches Batches, streams Streams, metrics http.Handler) http.Handler {
	s := &Server{
		ctx:     logging.WithAttrs(ctx, slog.String("component", "transport.httpapi")),
		batches: batches,
		streams: streams,
		metrics: metrics,
	}

	r := chi.NewRouter()
	r.Use(s.requestContext)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/batches", s.createBatch)
		r.Get("/views/{view}", s.listView)
		r.Route("/batches/{batchID}", func(r chi.Router) {
			r.Get("/", s.getBatch)
			r.Get("/samples", s.listSamples)
			r.Post("/samples", s.submitSample)
			r.Post("/samples/{sampleID}/decision", s.decideSample)
			r.Post("/claim", s.claim)
			r.Post("/hold", s.hold)
			r.Post("/reject", s.reject)
			r.Post("/reassign", s.reassign)
		})
	})

	if streams != nil {
		r.Get("/ws/views/{view}", s.streamView)
		r.Get("/ws/batches/{batchID}/samples", s.streamSamples)
	}
	return r
}

type actorKey struct{}

// requestContext tags the request with an id, the caller's actor headers and
// a request-scoped logger.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, rid)

		actor := domainbatch.Actor{
			ID:   r.Header.Get(ActorIDHeader),
			Role: domainbatch.Role(r.Header.Get(ActorRoleHeader)),
		}

		ctx := logging.WithLogger(r.Context(), logging.Logger(s.ctx))
		ctx = logging.WithAttrs(ctx, logging.Attrs(s.ctx)...)
		ctx = logging.WithAttrs(ctx,
			slog.String("request_id", rid),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		ctx = context.WithValue(ctx, actorKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(ctx context.Context) domainbatch.Actor {
	actor, _ := ctx.Value(actorKey{}).(domainbatch.Actor)
	return actor
}
