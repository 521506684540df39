package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/aurahealth/aura/internal/domain/patient"
	"github.com/aurahealth/aura/internal/service"
)

type PatientHandler struct {
	patientSvc *service.PatientService
}

func NewPatientHandler(patientSvc *service.PatientService) *PatientHandler {
	return &PatientHandler{patientSvc: patientSvc}
}

type createPatientRequest struct {
	Name           string `json:"name" binding:"required"`
	MedicalHistory string `json:"medical_history"`
}

func (h *PatientHandler) Create(c *gin.Context) {
	claims := callerClaims(c)
	if claims == nil {
		respondError(c, 401, "missing claims")
		return
	}

	var req createPatientRequest
	if !bindJSON(c, &req) {
		return
	}

	data, err := h.patientSvc.CreatePatient(c.Request.Context(), &patient.CreateCommand{
		Name:           req.Name,
		MedicalHistory: req.MedicalHistory,
	}, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, data)
}

func (h *PatientHandler) Get(c *gin.Context) {
	claims := callerClaims(c)
	if claims == nil {
		respondError(c, 401, "missing claims")
		return
	}

	id, ok := parseUUID(c, "patient_id")
	if !ok {
		return
	}

	data, err := h.patientSvc.GetPatient(c.Request.Context(), id, claims.UserID, string(claims.Role), claims.PatientID, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, data)
}

type updatePatientRequest struct {
	Name           *string `json:"name"`
	MedicalHistory *string `json:"medical_history"`
}

func (h *PatientHandler) Update(c *gin.Context) {
	claims := callerClaims(c)
	if claims == nil {
		respondError(c, 401, "missing claims")
		return
	}

	id, ok := parseUUID(c, "patient_id")
	if !ok {
		return
	}

	var req updatePatientRequest
	if !bindJSON(c, &req) {
		return
	}

	data, err := h.patientSvc.UpdatePatient(c.Request.Context(), id, &patient.UpdateCommand{
		Name:           req.Name,
		MedicalHistory: req.MedicalHistory,
	}, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, data)
}

func (h *PatientHandler) Delete(c *gin.Context) {
	claims := callerClaims(c)
	if claims == nil {
		respondError(c, 401, "missing claims")
		return
	}

	id, ok := parseUUID(c, "patient_id")
	if !ok {
		return
	}

	if err := h.patientSvc.DeletePatient(c.Request.Context(), id, claims.UserID, string(claims.Role), c.ClientIP()); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": true})
}
