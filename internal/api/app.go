package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"

	"dmchat/internal/chat"
	"dmchat/internal/config"
	"dmchat/internal/database"
	"dmchat/internal/server"
)

type ChatApp struct {
	log             *log.Logger
	db              database.ChatRepository
	mux             *http.Server
	broadcaster     *server.Broadcaster
	chat            *chat.Service
	validate        *validator.Validate
	signingKey      []byte
	allowedOrigins  []string
	imageDir        string
	generateShortId func() (string, error)
}

func NewChatApp(mux *http.ServeMux, logger *log.Logger, b *server.Broadcaster, svc *chat.Service,
	db database.ChatRepository, cfg *config.Config) *ChatApp {
	s := &ChatApp{
		log:             logger,
		db:              db,
		broadcaster:     b,
		chat:            svc,
		validate:        validator.New(),
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		imageDir:        cfg.ImageDir,
		generateShortId: shortid.Generate,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/register", s.register)
	mux.HandleFunc("POST /api/login", s.login)
	mux.Handle("GET /api/validateToken", s.authMiddleware(s.validateToken))
	mux.Handle("GET /api/profile", s.authMiddleware(s.getProfile))
	mux.Handle("PUT /api/profile", s.authMiddleware(s.updateProfile))
	mux.Handle("GET /api/getAllUsers", s.authMiddleware(s.getAllUsers))
	mux.Handle("GET /api/getUserDetails", s.authMiddleware(s.getUserDetails))
	mux.Handle("POST /api/sendMessage", s.authMiddleware(s.sendMessage))
	mux.Handle("GET /api/getMessages/{userId}", s.authMiddleware(s.getMessages))
	mux.HandleFunc("GET /ws", s.serveWs)
	mux.Handle("GET /images/", http.StripPrefix("/images/", http.FileServer(http.Dir(cfg.ImageDir))))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *ChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *ChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
