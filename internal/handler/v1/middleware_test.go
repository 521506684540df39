package v1

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/aurahealth/aura/internal/domain"
)

// newScopedTestRouter mounts the patient-scope middleware the way the real
// router does, with the caller's claims injected upstream.
func newScopedTestRouter(claims *domain.Claims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(ctxClaims, claims)
		}
		c.Next()
	})

	scoped := r.Group("/patients/:patient_id")
	scoped.Use(RequirePatientScope())
	scoped.GET("/medications", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"patient_id": c.Param("patient_id")})
	})
	scoped.POST("/medications/:medication_id/events", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"recorded": true})
	})
	return r
}

func scopedRequest(t *testing.T, r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(`{"event_type":"TAKEN","pills_count":5}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequirePatientScope(t *testing.T) {
	own := uuid.New()
	other := uuid.New()

	patientClaims := func(linked *uuid.UUID) *domain.Claims {
		return &domain.Claims{UserID: uuid.New(), Role: domain.RolePatient, PatientID: linked}
	}

	t.Run("patient reads own record", func(t *testing.T) {
		r := newScopedTestRouter(patientClaims(&own))
		rec := scopedRequest(t, r, http.MethodGet, "/patients/"+own.String()+"/medications")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("patient cannot read another patient", func(t *testing.T) {
		r := newScopedTestRouter(patientClaims(&own))
		rec := scopedRequest(t, r, http.MethodGet, "/patients/"+other.String()+"/medications")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("patient cannot record events against another patient", func(t *testing.T) {
		r := newScopedTestRouter(patientClaims(&own))
		rec := scopedRequest(t, r, http.MethodPost,
			"/patients/"+other.String()+"/medications/"+uuid.NewString()+"/events")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("caregiver is scoped the same way", func(t *testing.T) {
		r := newScopedTestRouter(&domain.Claims{UserID: uuid.New(), Role: domain.RoleCaregiver, PatientID: &own})
		rec := scopedRequest(t, r, http.MethodGet, "/patients/"+other.String()+"/medications")
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = scopedRequest(t, r, http.MethodGet, "/patients/"+own.String()+"/medications")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("token without a linked patient is rejected", func(t *testing.T) {
		r := newScopedTestRouter(patientClaims(nil))
		rec := scopedRequest(t, r, http.MethodGet, "/patients/"+own.String()+"/medications")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("clinician passes through unscoped", func(t *testing.T) {
		r := newScopedTestRouter(&domain.Claims{UserID: uuid.New(), Role: domain.RoleClinician})
		rec := scopedRequest(t, r, http.MethodGet, "/patients/"+other.String()+"/medications")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing claims is unauthorized", func(t *testing.T) {
		r := newScopedTestRouter(nil)
		rec := scopedRequest(t, r, http.MethodGet, "/patients/"+own.String()+"/medications")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
