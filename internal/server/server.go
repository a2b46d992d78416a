package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperware-ai/chat/internal/blob"
	"github.com/hyperware-ai/chat/internal/chat"
	"github.com/hyperware-ai/chat/internal/config"
	"github.com/hyperware-ai/chat/internal/keystore"
	"github.com/hyperware-ai/chat/internal/node"
	"github.com/hyperware-ai/chat/internal/notify"
	"github.com/hyperware-ai/chat/internal/peer"
	"github.com/hyperware-ai/chat/internal/queue"
	"github.com/hyperware-ai/chat/internal/session"
)

const readHeaderTimeout = 10 * time.Second

// Server wires the node's components together and hosts the HTTP
// surface: peer wire, WebSocket endpoint, local API, and admin routes.
type Server struct {
	cfg      config.Config
	log      *zap.Logger
	keystore keystore.Backend

	service    *node.Service
	hub        *session.Hub
	blobs      *blob.Store
	sweeper    *queue.Sweeper
	httpServer *http.Server
	ready      atomic.Bool
}

// New constructs a server. The keystore must be unlocked before Start;
// a nil keystore keeps chat keys memory-only.
func New(cfg config.Config, logger *zap.Logger, ks keystore.Backend) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		log:      logger,
		keystore: ks,
	}
}

// Start wires every component, boots the HTTP server, and blocks until
// the context is cancelled and shutdown completes.
func (s *Server) Start(ctx context.Context) error {
	handler, err := s.wire(ctx)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", s.cfg.HTTPAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.HTTPAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGracePeriod)
		defer cancel()
		s.Shutdown(stopCtx)
	}()

	s.log.Info("http server listening",
		zap.String("address", lis.Addr().String()),
		zap.String("node", s.cfg.NodeID))
	s.ready.Store(true)
	err = s.httpServer.Serve(lis)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// wire builds every component and the route table without binding a
// listener.
func (s *Server) wire(ctx context.Context) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	blobs, err := blob.Open(s.log, s.cfg.Blob.Path)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	s.blobs = blobs

	store := chat.NewStore(s.log)
	store.SeedWelcome(time.Now())

	var archive chat.KeyArchive
	if s.keystore != nil {
		archive = s.keystore
	}
	keys, err := chat.NewKeyRegistry(ctx, s.log, archive)
	if err != nil {
		return nil, fmt.Errorf("build key registry: %w", err)
	}

	queueMetrics := queue.NewMetrics(reg)
	pending := queue.New(queueMetrics)

	peerMetrics := peer.NewMetrics(reg)
	client, err := peer.NewClient(peer.ClientConfig{
		Log:         s.log,
		Resolver:    s.cfg.PeerEndpoint,
		Metrics:     peerMetrics,
		SendTimeout: s.cfg.Peer.SendTimeout,
		AckTimeout:  s.cfg.Peer.AckTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build peer client: %w", err)
	}

	svc, err := node.New(node.Config{
		Log:      s.log,
		NodeID:   s.cfg.NodeID,
		Store:    store,
		Keys:     keys,
		Queue:    pending,
		Peers:    client,
		Blobs:    blobs,
		Notifier: notify.NewLogDispatcher(s.log),
	})
	if err != nil {
		return nil, fmt.Errorf("build node service: %w", err)
	}
	s.service = svc

	s.hub = session.NewHub(s.log, svc, session.NewMetrics(reg))
	svc.AttachFanout(s.hub)

	s.sweeper = queue.NewSweeper(queue.SweeperConfig{
		Log:             s.log,
		Queue:           pending,
		Delivery:        client,
		Metrics:         queueMetrics,
		Interval:        s.cfg.Queue.SweepInterval,
		AttemptsPerPeer: s.cfg.Queue.SweepAttemptsPerPeer,
		OnDelivered:     svc.QueuedDelivered,
	})
	svc.AttachFlusher(s.sweeper)
	s.sweeper.Start(ctx)

	router := mux.NewRouter()
	router.Handle(peer.WirePath, peer.NewHandler(s.log, svc, peerMetrics)).Methods(http.MethodPost)
	router.Handle("/ws", s.hub)
	s.registerAPI(router)
	router.HandleFunc("/public/join-{key}", s.handleJoinPage).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if s.ready.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not_ready"))
	})

	return router, nil
}

// handleJoinPage serves a minimal page for guests following a chat
// link. The real UI is out of scope; the placeholder validates the key
// so dead links fail here instead of after the WebSocket upgrade.
func (s *Server) handleJoinPage(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["key"]
	if _, err := s.service.ResolveKey(token); err != nil {
		status := http.StatusNotFound
		if errors.Is(err, chat.ErrKeyRevoked) {
			status = http.StatusGone
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, joinPage, s.cfg.NodeID)
}

const joinPage = `<!DOCTYPE html>
<html>
<head><title>Join chat</title></head>
<body>
<p>You are joining a chat with %s. Connect to /ws and authenticate with your chat key.</p>
</body>
</html>
`

// Shutdown attempts a graceful stop before forcing termination.
func (s *Server) Shutdown(ctx context.Context) {
	s.ready.Store(false)

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("http server shutdown", zap.Error(err))
			_ = s.httpServer.Close()
		}
	}
	if s.sweeper != nil {
		select {
		case <-s.sweeper.Done():
		case <-ctx.Done():
			s.log.Warn("sweeper did not stop before deadline")
		}
	}
	if s.blobs != nil {
		if err := s.blobs.Close(); err != nil {
			s.log.Warn("close blob store", zap.Error(err))
		}
	}
	s.log.Info("node stopped")
}
