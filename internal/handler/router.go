package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/docmgmt-api/internal/middleware"
	"github.com/noah-isme/docmgmt-api/internal/models"
	"github.com/noah-isme/docmgmt-api/internal/service"
	"github.com/noah-isme/docmgmt-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/docmgmt-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/docmgmt-api/pkg/middleware/requestid"
	"github.com/noah-isme/docmgmt-api/pkg/signature"
)

var readers = []string{models.RoleAdmin, models.RoleEditor, models.RoleViewer}

// Route access rules. A route absent from this table needs no token.
var (
	RuleAddRole        = service.AccessRule{Roles: []string{models.RoleAdmin}}
	RuleCreateRole     = service.AccessRule{Roles: []string{models.RoleAdmin}}
	RuleUpload         = service.AccessRule{Roles: []string{models.RoleAdmin}, Permissions: []string{models.PermissionWrite}}
	RuleReadDocument   = service.AccessRule{Roles: readers, Permissions: []string{models.PermissionRead}}
	RuleDeleteDocument = service.AccessRule{Roles: []string{models.RoleAdmin}, Permissions: []string{models.PermissionDelete}}
	RuleTrigger        = service.AccessRule{Roles: []string{models.RoleAdmin}}
)

// RouterDeps collects everything the HTTP surface needs.
type RouterDeps struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	Tokens         interface {
		ValidateToken(token string) (*models.Claims, error)
	}
	CallbackSigner *signature.Signer
	Metrics        *service.MetricsService

	Auth      *AuthHandler
	Documents *DocumentHandler
	Ingestion *IngestionHandler
	Health    *MetricsHandler
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(deps.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	if deps.Health != nil {
		r.GET("/health", deps.Health.Health)
		r.GET("/ready", deps.Health.Ready)
		r.GET("/metrics", deps.Health.Prometheus)
	}

	authn := middleware.JWT(deps.Tokens)
	guard := func(rule service.AccessRule) gin.HandlerFunc {
		return middleware.RequireAccess(rule, log)
	}
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(log, action, resource)
	}

	auth := r.Group("/auth")
	{
		auth.POST("/login", deps.Auth.Login)
		auth.POST("/register", deps.Auth.Register)
		auth.POST("/add-role", authn, guard(RuleAddRole), audit("assign_role", "user"), deps.Auth.AssignRole)
		auth.POST("/create-role", authn, guard(RuleCreateRole), audit("create_role", "role"), deps.Auth.CreateRole)
	}

	docs := r.Group("/document", authn)
	{
		docs.POST("/upload", guard(RuleUpload), audit("upload", "document"), deps.Documents.Upload)
		docs.GET("/download/:id", guard(RuleReadDocument), deps.Documents.Download)
		docs.GET("/:id", guard(RuleReadDocument), deps.Documents.Get)
		docs.DELETE("/:id", guard(RuleDeleteDocument), audit("delete", "document"), deps.Documents.Delete)
	}

	ingestion := r.Group("/ingestion")
	{
		ingestion.POST("/trigger", authn, guard(RuleTrigger), audit("trigger", "ingestion_task"), deps.Ingestion.Trigger)
		ingestion.GET("/status/:id", deps.Ingestion.Status)
		ingestion.POST("/callback", middleware.CallbackSignature(deps.CallbackSigner), deps.Ingestion.Callback)
	}

	return r
}
