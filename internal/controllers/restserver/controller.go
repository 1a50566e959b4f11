// Package restserver serves sun times and night segmentation over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/nocturne/internal/log"
	"github.com/chrissnell/nocturne/internal/nights"
	"github.com/chrissnell/nocturne/internal/storage"
	"github.com/chrissnell/nocturne/pkg/config"
)

// maxBodyBytes bounds the size of a POST /nights request
const maxBodyBytes = 32 << 20

// healthInterval is how often a configured store is pinged
const healthInterval = time.Minute

// Controller represents the REST server controller
type Controller struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	serverConfig config.ServerData
	Server       http.Server
	options      nights.Options
	store        storage.NightStore
	health       *storage.HealthMonitor
	logger       *zap.SugaredLogger
	handlers     *Handlers
}

// NewController creates a new REST server controller. store may be nil, in which
// case nights are computed but never saved.
func NewController(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData, store storage.NightStore, logger *zap.SugaredLogger) (*Controller, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	opts, err := cfg.Solar.ClassifierOptions()
	if err != nil {
		return nil, fmt.Errorf("error loading classifier options: %w", err)
	}

	ctrl := &Controller{
		ctx:          ctx,
		wg:           wg,
		serverConfig: cfg.Server,
		options:      opts,
		store:        store,
		logger:       logger,
	}

	if store != nil {
		ctrl.health = storage.NewHealthMonitor(store, cfg.Storage.Backend, logger)
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if ctrl.serverConfig.ListenAddr == "" {
		logger.Infof("server.listen_addr not provided; defaulting to %s (all interfaces)", config.DefaultListenAddr)
		ctrl.serverConfig.ListenAddr = config.DefaultListenAddr
	}
	if ctrl.serverConfig.Port == 0 {
		logger.Infof("server.port not provided; defaulting to %d", config.DefaultPort)
		ctrl.serverConfig.Port = config.DefaultPort
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", ctrl.serverConfig.ListenAddr, ctrl.serverConfig.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server and stops it when the controller's context
// is cancelled
func (c *Controller) StartController() error {
	c.logger.Infof("starting REST server on %s...", c.Server.Addr)

	if c.health != nil {
		c.health.Start(c.ctx, healthInterval)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.RequestLogger(c.logger))

	router.HandleFunc("/healthz", c.handlers.GetHealth).Methods(http.MethodGet)
	router.HandleFunc("/sun", c.handlers.GetSun).Methods(http.MethodGet)
	router.HandleFunc("/nights", c.handlers.PostNights).Methods(http.MethodPost)
	router.HandleFunc("/tracks/{track}/nights", c.handlers.GetTrackNights).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(c.handlers.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(c.handlers.MethodNotAllowed)

	return router
}
