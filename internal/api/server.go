// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"loanassist/internal/engine"
	"loanassist/internal/models"
	"loanassist/internal/services/documents"

	"loanassist/internal/common/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// ChatEngine handles one conversational turn.
type ChatEngine interface {
	HandleMessage(ctx context.Context, req engine.Request) (*engine.Response, error)
}

// OTPService issues and verifies one-time codes.
type OTPService interface {
	Issue(ctx context.Context, recipient string) (string, error)
	Verify(ctx context.Context, recipient, code string) error
	TTL() time.Duration
}

// OTPSender delivers an issued code.
type OTPSender interface {
	SendOTP(ctx context.Context, email, code string, ttl time.Duration) error
	SendManagerDecision(ctx context.Context, email, name string, applicationID int64, decision, notes string)
}

// ApplicationDirectory is the read/decision surface over applications.
type ApplicationDirectory interface {
	GetByID(ctx context.Context, id int64) (*models.LoanApplication, error)
	FindByName(ctx context.Context, name string, limit int) ([]models.LoanApplication, error)
	SaveDecision(ctx context.Context, id int64, approvalStatus, notes string) error
}

// DocumentService records uploads and reports verification.
type DocumentService interface {
	Upload(ctx context.Context, applicationID int64, docType, fileName string, extracted map[string]interface{}) (*documents.UploadResult, error)
	List(ctx context.Context, applicationID int64) ([]models.Document, error)
}

// EventSubscriber opens a pub/sub stream of application events.
type EventSubscriber interface {
	Subscribe(ctx context.Context) *redis.PubSub
}

// EventPublisher mirrors decision events to subscribers.
type EventPublisher interface {
	PublishApplicationEvent(ctx context.Context, applicationID int64, eventType string, payload map[string]interface{})
}

// Server holds the HTTP surface of the service.
type Server struct {
	engine       ChatEngine
	otp          OTPService
	notifier     OTPSender
	applications ApplicationDirectory
	documents    DocumentService
	subscriber   EventSubscriber
	events       EventPublisher
	logger       logger.Logger
}

func NewServer(
	chatEngine ChatEngine,
	otp OTPService,
	notifier OTPSender,
	applications ApplicationDirectory,
	docs DocumentService,
	subscriber EventSubscriber,
	events EventPublisher,
	log logger.Logger,
) *Server {
	return &Server{
		engine:       chatEngine,
		otp:          otp,
		notifier:     notifier,
		applications: applications,
		documents:    docs,
		subscriber:   subscriber,
		events:       events,
		logger:       log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Routes builds the request mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat/message", s.handleChatMessage)
	mux.HandleFunc("POST /api/chat/voice", s.handleVoiceMessage)

	mux.HandleFunc("POST /api/otp/verify", s.handleOTPVerify)

	mux.HandleFunc("GET /api/applications/{id}", s.handleGetApplication)
	mux.HandleFunc("GET /api/applications", s.handleSearchApplications)
	mux.HandleFunc("POST /api/applications/{id}/decision", s.handleDecision)

	mux.HandleFunc("POST /api/applications/{id}/documents", s.handleDocumentUpload)
	mux.HandleFunc("GET /api/applications/{id}/documents", s.handleListDocuments)

	mux.HandleFunc("GET /ws/applications", s.handleApplicationEvents)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.withRecovery(s.withRequestLog(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled", map[string]interface{}{
			"method": r.Method, "path": r.URL.Path,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic", map[string]interface{}{
					"path": r.URL.Path, "panic": rec,
				})
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
