package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"teamwallets/pkg/dashboard"
	"teamwallets/pkg/table"
	"teamwallets/pkg/watcher"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"
)

// RefreshEvery is the minimum spacing of API-triggered refreshes.
var RefreshEvery = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	watcher  *watcher.Watcher
	pageSize int
	tag      language.Tag
	logger   zerolog.Logger

	ctx     context.Context
	limiter *rate.Limiter
	clients map[*websocket.Conn]string
	mu      sync.Mutex
	mux     *http.ServeMux
}

func NewServer(w *watcher.Watcher, pageSize int, tag language.Tag, logger zerolog.Logger) *Server {
	if pageSize < 1 {
		pageSize = 1
	}
	s := &Server{
		watcher:  w,
		pageSize: pageSize,
		tag:      tag,
		logger:   logger.With().Str("component", "server").Logger(),
		ctx:      context.Background(),
		limiter:  rate.NewLimiter(rate.Every(RefreshEvery), 1),
		clients:  make(map[*websocket.Conn]string),
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/wallets", cors(s.handleWallets))
	s.mux.HandleFunc("/api/balances", cors(s.handleBalances))
	s.mux.HandleFunc("/api/refresh", cors(s.handleRefresh))
	s.mux.HandleFunc("/ws", s.handleWS)
}

// Handler exposes the routes, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	s.ctx = ctx
	go s.listenToWatcher(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info().Int("port", port).Msg("API server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeClients()
		return srv.Shutdown(shutdownCtx)
	}
}

func cors(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseQuery reads page, sort and ascending. Missing values fall back to the
// first page and the default sort.
func parseQuery(r *http.Request) (int, table.SortState, error) {
	q := r.URL.Query()
	page := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, table.SortState{}, fmt.Errorf("invalid page %q", v)
		}
		page = n
	}

	sort := table.DefaultSort()
	if v := q.Get("sort"); v != "" {
		f, ok := table.ParseField(v)
		if !ok {
			return 0, table.SortState{}, fmt.Errorf("invalid sort field %q", v)
		}
		sort = table.SortState{Field: f, Ascending: true}
	}
	if v := q.Get("ascending"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return 0, table.SortState{}, fmt.Errorf("invalid ascending %q", v)
		}
		sort.Ascending = b
	}
	return page, sort, nil
}

func (s *Server) handleWallets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	page, sort, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dashboard.BuildPage(s.watcher.Wallets(), sort, page, s.pageSize, s.tag))
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.watcher.Snapshot())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "refresh already requested, try again later")
		return
	}
	go func() {
		err := s.watcher.Refresh(s.ctx)
		if err != nil && !errors.Is(err, watcher.ErrSuperseded) && !errors.Is(err, context.Canceled) {
			s.logger.Warn().Err(err).Msg("refresh requested via API failed")
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	id := uuid.NewString()
	log := s.logger.With().Str("client", id).Str("remote", r.RemoteAddr).Logger()

	// The initial write and registration share the lock so a broadcast never
	// interleaves with it.
	s.mu.Lock()
	err = conn.WriteJSON(map[string]any{
		"type": "initial",
		"data": s.watcher.Snapshot(),
	})
	if err == nil {
		s.clients[conn] = id
	}
	s.mu.Unlock()
	if err != nil {
		log.Debug().Err(err).Msg("initial snapshot write failed")
		return
	}
	log.Debug().Msg("websocket client connected")

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		log.Debug().Msg("websocket client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listenToWatcher(ctx context.Context) {
	sub := s.watcher.Subscribe()
	defer s.watcher.Unsubscribe(sub)

	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(event)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) broadcast(event watcher.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client, id := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			s.logger.Debug().Err(err).Str("client", id).Msg("dropping websocket client")
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		_ = client.Close()
		delete(s.clients, client)
	}
}
