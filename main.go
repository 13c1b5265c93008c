// Command tetris-engine serves and plays falling-block puzzle games.
//
// It supports three modes:
//  1. "server" (default) – runs the HTTP server exposing the REST API, session websockets and an /mcp endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "play" – plays in the terminal, either in process or against a server session
//
// Flags control host/port, config directory, debug logging, session tokens
// and optional ngrok tunneling for easy external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/tetris-engine/api"
	"github.com/wricardo/tetris-engine/game/config"
	"github.com/wricardo/tetris-engine/game/service"
	"github.com/wricardo/tetris-engine/game/session"
	"github.com/wricardo/tetris-engine/transport/mcp"
	"github.com/wricardo/tetris-engine/transport/websocket"
	"github.com/wricardo/tetris-engine/tui"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Tetris Engine"
)

const (
	cleanupInterval    = time.Hour
	sessionMaxAge      = 24 * time.Hour
	syncInterval       = 5 * time.Second
	shutdownTimeout    = 10 * time.Second
	defaultExternalAPI = "http://localhost:8080"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// newCommand builds the command tree. Flags declared on the root are
// inherited by every sub-command.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "tetris-engine",
		Usage:   "falling-block puzzle server, MCP bridge and terminal client",
		Version: Version,
		Flags: append([]cli.Flag{
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing game presets", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.StringFlag{Name: "sessions-dir", Value: "sessions", Usage: "Directory for persisted sessions", Sources: cli.EnvVars("SESSIONS_DIR")},
			&cli.StringFlag{Name: "token-secret", Usage: "Secret for session tokens; enables ownership checks on mutating endpoints", Sources: cli.EnvVars("SESSION_TOKEN_SECRET")},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", Sources: cli.EnvVars("DEBUG")},
		}, ngrokFlags()...),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			} else {
				log.SetFlags(log.LstdFlags)
			}
			return ctx, nil
		},
		Action: runServer,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint (default)",
				Action:  runServer,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server, starting an internal HTTP server when no external one answers",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api-url", Value: defaultExternalAPI, Usage: "External API to use when it is healthy", Sources: cli.EnvVars("API_URL")},
				},
				Action: runStdioMCP,
			},
			{
				Name:  "play",
				Usage: "Play in the terminal",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "classic", Usage: "Preset to play"},
					&cli.StringFlag{Name: "remote", Usage: "Server base URL; plays a server session instead of a local game"},
					&cli.StringFlag{Name: "session", Usage: "Existing session ID on the remote server"},
					&cli.StringFlag{Name: "token", Usage: "Session token for the remote session", Sources: cli.EnvVars("SESSION_TOKEN")},
					&cli.BoolFlag{Name: "sound", Usage: "Play tones on line clears and game over"},
				},
				Action: runPlay,
			},
		},
	}
}

func ngrokFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
		&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
		&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
	}
}

// services holds the wired game stack
type services struct {
	game        service.GameService
	sessions    *session.Manager
	persistence session.SessionPersistence
}

// initializeServices wires session/config managers and the game service.
func initializeServices(configDir, sessionsDir string) (*services, error) {
	configManager, err := config.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(sessionsDir, configManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(persistence)
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		log.Printf("Warning: Failed to load persisted sessions: %v", err)
	}

	return &services{
		game:        service.NewGameServiceWithLogger(sessionManager, configManager, log.Default()),
		sessions:    sessionManager,
		persistence: persistence,
	}, nil
}

// newTokenizer returns nil when no secret is configured
func newTokenizer(secret string) (api.Tokenizer, error) {
	if secret == "" {
		return nil, nil
	}
	return session.TokenizerConfig{KeyReader: session.SecretKeyReader(secret)}.NewTokenizer()
}

// newAPIServer builds the REST server around a running hub
func newAPIServer(svc *services, hub *websocket.Hub, secret string) (*api.Server, error) {
	apiServer := api.NewServer(svc.game, hub)
	tokenizer, err := newTokenizer(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create session tokenizer: %w", err)
	}
	if tokenizer != nil {
		apiServer.SetTokenizer(tokenizer)
		log.Println("Session tokens enabled for mutating endpoints")
	}
	return apiServer, nil
}

// mcpHandler serves MCP JSON-RPC messages over plain HTTP POST
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter mounts the API at the root and the MCP bridge at /mcp
func newRouter(apiServer http.Handler, client *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(client))
	return mainRouter
}

// runServer starts the HTTP server with REST API, WebSocket hub, and an /mcp endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runServer(ctx context.Context, cmd *cli.Command) error {
	log.Printf("Starting %s v%s (mode: server)", AppName, Version)

	svc, err := initializeServices(cmd.String("config-dir"), cmd.String("sessions-dir"))
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	apiServer, err := newAPIServer(svc, hub, cmd.String("token-secret"))
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))
	mainRouter := newRouter(apiServer, mcpClient)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	wg.Add(2)
	go func() {
		defer wg.Done()
		sessionCleanupRoutine(ctx, svc.sessions, cleanupInterval)
	}()
	go func() {
		defer wg.Done()
		filesystemSyncRoutine(ctx, svc.sessions, svc.persistence, syncInterval)
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), mainRouter)
		}()
	}

	var runErr error
	select {
	case sig := <-stop:
		log.Printf("Received signal: %v. Shutting down...", sig)
	case <-ctx.Done():
		log.Println("Context cancelled. Shutting down...")
	case runErr = <-serveErr:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Drain handlers while the hub still runs, then stop the hub and tickers
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	cancel()

	wg.Wait()

	if err := svc.sessions.SaveAllSessions(); err != nil {
		log.Printf("Warning: Failed to save sessions on shutdown: %v", err)
	}
	log.Println("Server stopped")
	return runErr
}

// runNgrok serves the router through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Printf("Using custom ngrok domain: %s", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Printf("🚀 Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within sessionMaxAge.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
				log.Printf("Cleaned up %d expired sessions", removed)
			}
		}
	}
}

// filesystemSyncRoutine periodically drops in-memory sessions whose files
// were deleted from disk.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, interval time.Duration) {
	if persistence == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := pruneOrphanedSessions(manager, persistence); pruned > 0 {
				log.Printf("Filesystem sync: pruned %d orphaned sessions from memory", pruned)
			}
		}
	}
}

func pruneOrphanedSessions(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			log.Printf("Pruned session %s from memory (file deleted)", sess.ID)
		}
	}
	return pruned
}

// apiHealthy reports whether an API answers its health check
func apiHealthy(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// startInternalServer serves the API on a random loopback port and returns its base URL
func startInternalServer(ctx context.Context, svc *services, secret string) (string, *http.Server, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	apiServer, err := newAPIServer(svc, hub, secret)
	if err != nil {
		listener.Close()
		return "", nil, err
	}

	httpServer := &http.Server{Handler: apiServer}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Internal HTTP server error: %v", err)
		}
	}()

	return "http://" + listener.Addr().String(), httpServer, nil
}

// runStdioMCP runs an MCP stdio server against an external API when one is
// healthy, otherwise against an internal one.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	externalURL := cmd.String("api-url")
	log.Printf("Checking for external API server at %s...", externalURL)

	baseURL := externalURL
	if apiHealthy(ctx, externalURL) {
		log.Printf("External API server found at %s, using it for MCP", externalURL)
	} else {
		log.Printf("No external API server found, starting internal HTTP server")

		svc, err := initializeServices(cmd.String("config-dir"), cmd.String("sessions-dir"))
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		internalURL, httpServer, err := startInternalServer(ctx, svc, cmd.String("token-secret"))
		if err != nil {
			return err
		}
		defer httpServer.Close()
		log.Printf("Internal HTTP server on %s for MCP stdio", internalURL)
		baseURL = internalURL
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Println("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// newDriver picks a local game or a remote session from the play flags
func newDriver(ctx context.Context, cmd *cli.Command) (tui.Driver, error) {
	remote := cmd.String("remote")
	if remote == "" {
		configs, err := config.NewManager(cmd.String("config-dir"))
		if err != nil {
			return nil, fmt.Errorf("failed to create config manager: %w", err)
		}
		cfg, err := configs.LoadConfig(cmd.String("config"))
		if err != nil {
			return nil, err
		}
		return tui.NewLocalDriver(cfg)
	}

	sessionID, token := cmd.String("session"), cmd.String("token")
	if sessionID == "" {
		info, err := tui.CreateRemoteSession(ctx, remote, cmd.String("config"))
		if err != nil {
			return nil, err
		}
		sessionID, token = info.ID, info.Token
	}
	driver := tui.NewRemoteDriver(remote, sessionID, token)
	driver.SetLogger(log.New(io.Discard, "", 0))
	return driver, nil
}

// runPlay plays a game in the terminal
func runPlay(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, err := newDriver(ctx, cmd)
	if err != nil {
		return err
	}

	var sound tui.Sound = tui.Silent{}
	if cmd.Bool("sound") {
		tones, err := tui.NewTones()
		if err != nil {
			log.Printf("Warning: sound disabled: %v", err)
		} else {
			defer tones.Close()
			sound = tones
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	defer screen.Fini()

	// The screen owns the terminal while playing
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	err = tui.NewApp(screen, driver, sound).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
