// Package server exposes the newsletter pipeline over HTTP: ingestion
// triggers, draft generation, the newsletter lifecycle, subscriber management
// and the on-demand scheduler tick.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/letter4ceo/morning-letter/pkg/ai"
	"github.com/letter4ceo/morning-letter/pkg/domain"
	"github.com/letter4ceo/morning-letter/pkg/stibee"
)

// Server represents HTTP server instance
type Server struct {
	config      ConfigProvider
	fetcher     Fetcher
	news        NewsStore
	letters     LetterService
	dispatcher  Dispatcher
	subscribers SubscriberStore
	generator   Generator
	scheduler   Scheduler
	mailer      Mailer
	version     string
	debug       bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Fetcher ingests configured feeds on demand
type Fetcher interface {
	FetchAll(ctx context.Context) domain.FetchResult
	FetchCategory(ctx context.Context, category string) (domain.FetchResult, error)
}

// NewsStore provides news item access for the API
type NewsStore interface {
	GetNews(ctx context.Context, id int64) (*domain.NewsItem, error)
	ListNews(ctx context.Context, filter domain.NewsFilter) ([]*domain.NewsItem, error)
	CountNews(ctx context.Context, filter domain.NewsFilter) (int, error)
	DeleteNews(ctx context.Context, id int64) error
	UpdateAISummary(ctx context.Context, id int64, summary string) error
}

// LetterService manages the newsletter lifecycle
type LetterService interface {
	Create(ctx context.Context, n *domain.Newsletter) error
	Get(ctx context.Context, id int64) (*domain.Newsletter, error)
	List(ctx context.Context, filter domain.NewsletterFilter) ([]*domain.Newsletter, error)
	Update(ctx context.Context, n *domain.Newsletter) error
	Delete(ctx context.Context, id int64) error
	Schedule(ctx context.Context, id int64, at time.Time) error
	CancelSchedule(ctx context.Context, id int64) error
	SelectItem(ctx context.Context, newsletterID, newsID int64, displayOrder int) error
	DeselectItem(ctx context.Context, newsID int64) error
	Stats(ctx context.Context) (*domain.NewsletterStats, error)
}

// Dispatcher delivers letters
type Dispatcher interface {
	Send(ctx context.Context, id int64) (*domain.SendResult, error)
	SendTest(ctx context.Context, id int64, email string) (html string, delivered bool, err error)
	Preview(ctx context.Context, id int64) (string, error)
}

// SubscriberStore provides subscriber access for the API
type SubscriberStore interface {
	CreateSubscriber(ctx context.Context, s *domain.Subscriber) error
	GetSubscriber(ctx context.Context, id int64) (*domain.Subscriber, error)
	GetSubscriberByEmail(ctx context.Context, email string) (*domain.Subscriber, error)
	ListSubscribers(ctx context.Context, filter domain.SubscriberFilter) ([]*domain.Subscriber, error)
	CountSubscribers(ctx context.Context, filter domain.SubscriberFilter) (int, error)
	UpdateStatus(ctx context.Context, email string, status domain.SubscriberStatus) error
	DeleteSubscriber(ctx context.Context, id int64) error
	ActiveSubscribers(ctx context.Context) ([]*domain.Subscriber, error)
	Stats(ctx context.Context) (*domain.SubscriberStats, error)
}

// Generator drafts letter content
type Generator interface {
	GenerateLetter(ctx context.Context, seedTitles []string, instruction string) (*ai.Draft, error)
	Summarize(ctx context.Context, title, content string) string
}

// Scheduler runs the periodic jobs, exposed for the on-demand trigger
type Scheduler interface {
	Tick(ctx context.Context, now time.Time)
	JobNames() []string
}

// Mailer mirrors subscriber records into the delivery provider list
type Mailer interface {
	IsConfigured() bool
	AddSubscribers(ctx context.Context, subscribers []stibee.Subscriber) (*stibee.UpsertResult, error)
	DeleteSubscriber(ctx context.Context, email string) error
	GetSubscribers(ctx context.Context, offset, limit int) ([]stibee.Subscriber, error)
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// New initializes a new server instance
func New(cfg ConfigProvider, fetcher Fetcher, news NewsStore, letters LetterService, dispatcher Dispatcher,
	subscribers SubscriberStore, generator Generator, scheduler Scheduler, mailer Mailer,
	version string, debug bool) *Server {
	s := &Server{
		config:      cfg,
		fetcher:     fetcher,
		news:        news,
		letters:     letters,
		dispatcher:  dispatcher,
		subscribers: subscribers,
		generator:   generator,
		scheduler:   scheduler,
		mailer:      mailer,
		version:     version,
		debug:       debug,
		router:      routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("morning-letter", "letter4ceo", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("POST /scheduler/tick", s.schedulerTickHandler)

		r.HandleFunc("POST /news/fetch", s.fetchNewsHandler)
		r.HandleFunc("GET /news", s.listNewsHandler)
		r.HandleFunc("DELETE /news/{id}", s.deleteNewsHandler)
		r.HandleFunc("POST /news/{id}/select", s.selectNewsHandler)
		r.HandleFunc("POST /news/{id}/summarize", s.summarizeNewsHandler)
		r.HandleFunc("POST /news/link-preview", s.linkPreviewHandler)

		r.HandleFunc("GET /newsletters", s.listNewslettersHandler)
		r.HandleFunc("POST /newsletters", s.createNewsletterHandler)
		r.HandleFunc("GET /newsletters/stats/summary", s.newsletterStatsHandler)
		r.HandleFunc("GET /newsletters/{id}", s.getNewsletterHandler)
		r.HandleFunc("PUT /newsletters/{id}", s.updateNewsletterHandler)
		r.HandleFunc("DELETE /newsletters/{id}", s.deleteNewsletterHandler)
		r.HandleFunc("POST /newsletters/{id}/schedule", s.scheduleNewsletterHandler)
		r.HandleFunc("POST /newsletters/{id}/cancel-schedule", s.cancelScheduleHandler)
		r.HandleFunc("POST /newsletters/{id}/send", s.sendNewsletterHandler)
		r.HandleFunc("POST /newsletters/{id}/send-test", s.sendTestHandler)
		r.HandleFunc("GET /newsletters/{id}/preview", s.previewNewsletterHandler)

		r.HandleFunc("POST /subscribers/subscribe", s.subscribeHandler)
		r.HandleFunc("POST /subscribers/unsubscribe", s.unsubscribeHandler)
		r.HandleFunc("GET /subscribers", s.listSubscribersHandler)
		r.HandleFunc("POST /subscribers", s.createSubscriberHandler)
		r.HandleFunc("DELETE /subscribers/{id}", s.deleteSubscriberHandler)
		r.HandleFunc("POST /subscribers/sync", s.syncSubscribersHandler)
		r.HandleFunc("POST /subscribers/import", s.importSubscribersHandler)
		r.HandleFunc("GET /subscribers/stats", s.subscriberStatsHandler)

		r.HandleFunc("POST /ai/generate-letter", s.generateLetterHandler)
	})
}
