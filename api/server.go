package api

import (
	"net/http"
	"time"

	"betledger/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// CallerHeader carries the authenticated identity of the caller
const CallerHeader = "X-Caller-Address"

// Server exposes the engine over HTTP
type Server struct {
	engine   service.Engine
	gatherer prometheus.Gatherer
	router   http.Handler
}

// New constructs the router. gatherer backs /metrics and may be nil.
func New(engine service.Engine, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		engine:   engine,
		gatherer: gatherer,
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured HTTP router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.Health)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/activities", func(r chi.Router) {
		r.With(requireCaller).Post("/", s.CreateActivity)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetActivityDetail)
			r.Get("/exists", s.ActivityExists)
			r.Get("/choices/count", s.GetChoicesCount)
			r.Get("/tickets", s.GetActivityTicketIDs)
			r.With(requireCaller).Post("/fund", s.FundActivity)
			r.With(requireCaller).Post("/tickets", s.BuyTicket)
			r.With(requireCaller).Post("/settle", s.SettleActivity)
		})
	})

	r.Route("/tickets/{id}", func(r chi.Router) {
		r.Get("/", s.GetTicketInfo)
		r.With(requireCaller).Post("/approve", s.ApproveTicket)
		r.Get("/listing", s.GetListing)
		r.With(requireCaller).Post("/listing", s.ListTicket)
		r.With(requireCaller).Delete("/listing", s.CancelListing)
		r.With(requireCaller).Post("/listing/buy", s.BuyListedTicket)
	})

	r.Get("/listings", s.GetAllListings)
	r.Get("/trades", s.GetAllTrades)
	r.Get("/owners/{address}/tickets", s.GetTicketsByOwner)

	r.Route("/vault", func(r chi.Router) {
		r.With(requireCaller).Post("/withdraw", s.Withdraw)
		r.Get("/{address}", s.GetBalance)
		r.Get("/{address}/history", s.GetVaultHistory)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.WithFields(log.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"bytes":     ww.BytesWritten(),
			"duration":  time.Since(start),
			"requestId": chimw.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}
