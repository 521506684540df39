package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aurahealth/aura/internal/domain/medication"
	"github.com/aurahealth/aura/internal/service"
)

type MedicationHandler struct {
	medicationSvc *service.MedicationService
	inventorySvc  *service.InventoryService
	refillSvc     *service.RefillService
}

func NewMedicationHandler(
	medicationSvc *service.MedicationService,
	inventorySvc *service.InventoryService,
	refillSvc *service.RefillService,
) *MedicationHandler {
	return &MedicationHandler{
		medicationSvc: medicationSvc,
		inventorySvc:  inventorySvc,
		refillSvc:     refillSvc,
	}
}

type createMedicationRequest struct {
	DrugName        string `json:"drug_name" binding:"required"`
	Strength        string `json:"strength"`
	FrequencyText   string `json:"frequency_text" binding:"required"`
	DurationDays    int    `json:"duration_days" binding:"required"`
	DosagePerIntake int    `json:"dosage_per_intake" binding:"required"`
	PharmacyName    string `json:"pharmacy_name"`
	PharmacyPhone   string `json:"pharmacy_phone"`
	ConfirmSchedule bool   `json:"confirm_schedule"`
}

func (h *MedicationHandler) Create(c *gin.Context) {
	claims := callerClaims(c)
	if claims == nil {
		respondError(c, 401, "missing claims")
		return
	}

	patientID, ok := parseUUID(c, "patient_id")
	if !ok {
		return
	}

	var req createMedicationRequest
	if !bindJSON(c, &req) {
		return
	}

	med, err := h.medicationSvc.CreateMedication(c.Request.Context(), &medication.CreateCommand{
		PatientID:       patientID,
		DrugName:        req.DrugName,
		Strength:        req.Strength,
		FrequencyText:   req.FrequencyText,
		DurationDays:    req.DurationDays,
		DosagePerIntake: req.DosagePerIntake,
		PharmacyName:    req.PharmacyName,
		PharmacyPhone:   req.PharmacyPhone,
		ConfirmSchedule: req.ConfirmSchedule,
	}, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, med)
}

func (h *MedicationHandler) List(c *gin.Context) {
	patientID, ok := parseUUID(c, "patient_id")
	if !ok {
		return
	}

	activeOnly := c.Query("active") == "true"
	meds, err := h.medicationSvc.ListMedications(c.Request.Context(), patientID, activeOnly)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, meds)
}

func (h *MedicationHandler) Get(c *gin.Context) {
	patientID, ok := parseUUID(c, "patient_id")
	if !ok {
		return
	}
	medicationID, ok := parseUUID(c, "medication_id")
	if !ok {
		return
	}

	med, err := h.medicationSvc.GetMedication(c.Request.Context(), patientID, medicationID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, med)
}

type previewScheduleRequest struct {
	FrequencyText   string `json:"frequency_text" binding:"required"`
	DurationDays    int    `json:"duration_days" binding:"required"`
	DosagePerIntake int    `json:"dosage_per_intake" binding:"required"`
}

func (h *MedicationHandler) PreviewSchedule(c *gin.Context) {
	var req previewScheduleRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.medicationSvc.PreviewSchedule(req.FrequencyText, req.DosagePerIntake, req.DurationDays)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, result)
}

type adherenceEventRequest struct {
	EventType     string     `json:"event_type" binding:"required"`
	PillsCount    int        `json:"pills_count"`
	ScheduledTime *time.Time `json:"scheduled_time"`
}

func (h *MedicationHandler) RecordEvent(c *gin.Context) {
	patientID, ok := parseUUID(c, "patient_id")
	if !ok {
		return
	}
	medicationID, ok := parseUUID(c, "medication_id")
	if !ok {
		return
	}

	var req adherenceEventRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var (
		event *medication.AdherenceEvent
		err   error
	)
	switch medication.EventType(req.EventType) {
	case medication.EventTaken:
		event, err = h.inventorySvc.RecordTaken(ctx, patientID, medicationID, req.PillsCount, req.ScheduledTime)
	case medication.EventMissed:
		event, err = h.inventorySvc.RecordMissed(ctx, patientID, medicationID, req.ScheduledTime)
	case medication.EventWastage:
		event, err = h.inventorySvc.RecordWastage(ctx, patientID, medicationID, req.PillsCount)
	case medication.EventRefill:
		event, err = h.inventorySvc.RecordRefill(ctx, patientID, medicationID, req.PillsCount)
	default:
		respondError(c, 400, "unrecognized event_type")
		return
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, event)
}

func (h *MedicationHandler) AdherenceRate(c *gin.Context) {
	patientID, ok := parseUUID(c, "patient_id")
	if !ok {
		return
	}
	medicationID, ok := parseUUID(c, "medication_id")
	if !ok {
		return
	}

	windowDays := parseQueryInt(c, "window_days", 7)
	rate, err := h.inventorySvc.AdherenceRate(c.Request.Context(), patientID, medicationID, time.Duration(windowDays)*24*time.Hour)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"adherence_rate": rate, "window_days": windowDays})
}

// RefillStatus evaluates one patient's medications without publishing alerts.
func (h *MedicationHandler) RefillStatus(c *gin.Context) {
	patientID, ok := parseUUID(c, "patient_id")
	if !ok {
		return
	}

	alerts, err := h.refillSvc.EvaluatePatient(c.Request.Context(), patientID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, alerts)
}

// RunRefillSweep walks every shard and publishes alerts for medications at or
// below threshold. Safe to invoke repeatedly.
func (h *MedicationHandler) RunRefillSweep(c *gin.Context) {
	published, err := h.refillSvc.EvaluateAll(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"alerts_published": published})
}
