package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aurahealth/aura/internal/domain"
	"github.com/aurahealth/aura/internal/service"
	"github.com/aurahealth/aura/pkg/auth"
	"github.com/aurahealth/aura/pkg/metrics"
)

type RouterDeps struct {
	AuthSvc       *service.AuthService
	PatientSvc    *service.PatientService
	MedicationSvc *service.MedicationService
	InventorySvc  *service.InventoryService
	RefillSvc     *service.RefillService
	JWTManager    *auth.JWTManager
	Collector     *metrics.Collector
	Log           *zap.Logger
}

// NewRouter assembles the versioned API. Clinical writes are restricted to
// admin and clinician roles; adherence recording is open to every
// authenticated role because patients log their own doses.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(deps.Log))
	r.Use(MetricsMiddleware(deps.Collector))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	authHandler := NewAuthHandler(deps.AuthSvc)
	patientHandler := NewPatientHandler(deps.PatientSvc)
	medicationHandler := NewMedicationHandler(deps.MedicationSvc, deps.InventorySvc, deps.RefillSvc)

	api := r.Group("/api/v1")

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(AuthMiddleware(deps.JWTManager))

	authed.POST("/auth/change-password", authHandler.ChangePassword)

	clinical := authed.Group("")
	clinical.Use(RequireRoles(domain.RoleAdmin, domain.RoleClinician))
	clinical.POST("/patients", patientHandler.Create)
	clinical.PATCH("/patients/:patient_id", patientHandler.Update)
	clinical.DELETE("/patients/:patient_id", patientHandler.Delete)
	clinical.POST("/patients/:patient_id/medications", medicationHandler.Create)
	clinical.POST("/medications/preview-schedule", medicationHandler.PreviewSchedule)
	clinical.POST("/refill-sweep", medicationHandler.RunRefillSweep)

	authed.GET("/patients/:patient_id", patientHandler.Get)

	// Patient and caregiver tokens only reach records they are linked to.
	scoped := authed.Group("/patients/:patient_id")
	scoped.Use(RequirePatientScope())
	scoped.GET("/medications", medicationHandler.List)
	scoped.GET("/medications/:medication_id", medicationHandler.Get)
	scoped.POST("/medications/:medication_id/events", medicationHandler.RecordEvent)
	scoped.GET("/medications/:medication_id/adherence", medicationHandler.AdherenceRate)
	scoped.GET("/refill-status", medicationHandler.RefillStatus)

	return r
}
