package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/leocavalcante/leochat/internal/config"
	"github.com/leocavalcante/leochat/internal/llm"
	"github.com/leocavalcante/leochat/internal/serveui"
	"github.com/leocavalcante/leochat/internal/signal"
	"github.com/leocavalcante/leochat/internal/tools"
	"github.com/leocavalcante/leochat/internal/wire"
)

var (
	serveHost      string
	servePort      int
	serveModel     string
	serveMaxRounds int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP/SSE chat server",
	Long: `Run the chat server that streams exchanges over SSE.

Endpoints:
  POST /api/chat
  GET  /healthz
  GET  /             (browser chat UI)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Bind port (default from config)")
	AddModelFlag(serveCmd, &serveModel)
	AddMaxRoundsFlag(serveCmd, &serveMaxRounds)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background())
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(serveModel, serveMaxRounds)
	if serveHost != "" {
		cfg.Serve.Host = serveHost
	}
	if servePort != 0 {
		cfg.Serve.Port = servePort
	}
	if cfg.Serve.Port <= 0 || cfg.Serve.Port > 65535 {
		return fmt.Errorf("invalid port %d (must be 1-65535)", cfg.Serve.Port)
	}

	provider, err := llm.NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
	if err != nil {
		return err
	}
	engine := llm.NewEngine(provider, defaultToolRegistry())

	s := newServeServer(cfg, engine, debugFlag)
	if err := s.Start(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "leochat serve listening on http://%s\n", cfg.Serve.Addr())
	fmt.Fprintf(cmd.ErrOrStderr(), "model: %s\n", cfg.Anthropic.Model)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// defaultToolRegistry returns the closed set of tools exchanges may use.
func defaultToolRegistry() *llm.ToolRegistry {
	registry := llm.NewToolRegistry()
	registry.Register(tools.NewWebSearchTool())
	registry.Register(tools.NewGetWeatherTool())
	registry.Register(tools.NewWebFetchTool())
	return registry
}

// streamRegistry tracks in-flight SSE exchanges so shutdown can cancel them
// instead of waiting out long streams.
type streamRegistry struct {
	mu      sync.Mutex
	next    int64
	cancels map[int64]context.CancelFunc
}

func newStreamRegistry() *streamRegistry {
	return &streamRegistry{cancels: make(map[int64]context.CancelFunc)}
}

func (r *streamRegistry) Register(cancel context.CancelFunc) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	id := r.next
	r.cancels[id] = cancel
	return id
}

func (r *streamRegistry) Deregister(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, id)
}

func (r *streamRegistry) CancelAll() {
	r.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(r.cancels))
	for _, cancel := range r.cancels {
		cancels = append(cancels, cancel)
	}
	r.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func (r *streamRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

// sessionGuard enforces one in-flight exchange per session id.
type sessionGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newSessionGuard() *sessionGuard {
	return &sessionGuard{active: make(map[string]struct{})}
}

func (g *sessionGuard) Acquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[id]; busy {
		return false
	}
	g.active[id] = struct{}{}
	return true
}

func (g *sessionGuard) Release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, id)
}

type serveServer struct {
	cfg     *config.Config
	engine  *llm.Engine
	debug   bool
	server  *http.Server
	streams *streamRegistry
	busy    *sessionGuard
}

func newServeServer(cfg *config.Config, engine *llm.Engine, debug bool) *serveServer {
	return &serveServer{
		cfg:     cfg,
		engine:  engine,
		debug:   debug,
		streams: newStreamRegistry(),
		busy:    newSessionGuard(),
	}
}

// Handler returns the server's route mux.
func (s *serveServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/dist/index.js", s.staticHandler("application/javascript", serveui.IndexJS))
	mux.HandleFunc("/dist/styles.css", s.staticHandler("text/css", serveui.StylesCSS))
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

func (s *serveServer) Start() error {
	s.server = &http.Server{
		Addr:    s.cfg.Serve.Addr(),
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("start server: %w", err)
		}
		return nil
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}

func (s *serveServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.streams.CancelAll()
	return s.server.Shutdown(ctx)
}

func (s *serveServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}

func (s *serveServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write(serveui.IndexHTML())
}

func (s *serveServer) staticHandler(contentType string, asset func() []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(asset())
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
	System   string        `json:"system"`
}

func (s *serveServer) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "messages must not be empty", http.StatusBadRequest)
		return
	}

	// One exchange per session at a time. Requests without a session id
	// are independent.
	sessionID := strings.TrimSpace(r.Header.Get("session_id"))
	if sessionID != "" {
		if !s.busy.Acquire(sessionID) {
			http.Error(w, "another exchange is in flight for this session", http.StatusConflict)
			return
		}
		defer s.busy.Release(sessionID)
	}

	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	messages, err := buildExchangeMessages(req, s.cfg.Chat.Instructions)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	streamID := s.streams.Register(cancel)
	defer s.streams.Deregister(streamID)

	stream, err := s.engine.Stream(ctx, llm.Request{
		Model:           s.cfg.Anthropic.Model,
		Messages:        messages,
		Tools:           s.engine.Tools().AllSpecs(),
		MaxOutputTokens: s.cfg.Anthropic.MaxTokens,
		MaxRounds:       s.cfg.Chat.MaxRounds,
		Debug:           s.debug,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer stream.Close()

	setSSEHeaders(w)
	encoder := wire.NewEncoder(w)
	s.pump(stream, encoder)
}

// pump forwards engine events to the SSE encoder until the stream ends.
func (s *serveServer) pump(stream llm.Stream, encoder *wire.Encoder) {
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			_ = encoder.WriteEvent(wire.Error(err.Error()))
			return
		}

		var writeErr error
		switch event.Type {
		case llm.EventTextDelta:
			writeErr = encoder.WriteEvent(wire.Text(event.Text))
		case llm.EventToolExecStart:
			writeErr = encoder.WriteEvent(wire.ToolStart(event.ToolName, event.ToolInput))
		case llm.EventToolExecEnd:
			writeErr = encoder.WriteEvent(wire.ToolEnd(event.ToolName))
		case llm.EventDone:
			total := 0
			if event.Use != nil {
				total = event.Use.Total()
			}
			writeErr = encoder.WriteEvent(wire.Done(total))
		}
		if writeErr != nil {
			// Client went away; the deferred cancel tears down the stream.
			return
		}
	}
}

// buildExchangeMessages converts the request body into engine messages,
// prepending the system prompt.
func buildExchangeMessages(req chatRequest, defaultInstructions string) ([]llm.Message, error) {
	system := req.System
	if system == "" {
		system = defaultInstructions
	}

	messages := make([]llm.Message, 0, len(req.Messages)+1)
	if system != "" {
		messages = append(messages, llm.SystemText(system))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case "user":
			messages = append(messages, llm.UserText(msg.Content))
		case "assistant":
			messages = append(messages, llm.AssistantText(msg.Content))
		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}
	return messages, nil
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
