package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acarcay/voice-agent/internal/domain"
	appointmentsvc "github.com/acarcay/voice-agent/internal/service/appointment"
)

const dateLayout = "2006-01-02"

type createAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
	CustomerName  string `json:"customer_name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}

type updateStatusRequest struct {
	Status        string `json:"status"`
	RescheduledTo string `json:"rescheduled_to"`
	ChangedBy     string `json:"changed_by"`
}

type appointmentResponse struct {
	AppointmentID string     `json:"appointment_id"`
	CustomerName  string     `json:"customer_name"`
	Phone         string     `json:"phone"`
	Email         string     `json:"email,omitempty"`
	Date          string     `json:"date"`
	Time          string     `json:"time"`
	Status        string     `json:"status"`
	RescheduledTo *string    `json:"rescheduled_to,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

type statusChangeResponse struct {
	OldStatus string    `json:"old_status,omitempty"`
	NewStatus string    `json:"new_status"`
	ChangedBy string    `json:"changed_by"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type eventResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

type callLogResponse struct {
	ID              uuid.UUID `json:"id"`
	RoomName        string    `json:"room_name"`
	Success         bool      `json:"success"`
	Attempts        int       `json:"attempts"`
	DurationSeconds int       `json:"duration_seconds"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type notificationResponse struct {
	ID        uuid.UUID `json:"id"`
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *HandlerSet) createAppointment(ctx *fiber.Ctx) error {
	var req createAppointmentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
	}

	appt, err := h.appointments.Create(ctx.Context(), appointmentsvc.CreateInput{
		AppointmentID: req.AppointmentID,
		CustomerName:  req.CustomerName,
		Phone:         req.Phone,
		Email:         req.Email,
		Date:          date,
		TimeOfDay:     req.Time,
	})
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(toAppointmentResponse(appt))
}

func (h *HandlerSet) getAppointment(ctx *fiber.Ctx) error {
	appt, err := h.appointments.Get(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toAppointmentResponse(appt))
}

func (h *HandlerSet) updateStatus(ctx *fiber.Ctx) error {
	var req updateStatusRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	var rescheduledTo *time.Time
	if req.RescheduledTo != "" {
		parsed, err := time.Parse(dateLayout, req.RescheduledTo)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "rescheduled_to must be formatted YYYY-MM-DD")
		}
		rescheduledTo = &parsed
	}

	appt, err := h.appointments.UpdateStatus(ctx.Context(), appointmentsvc.UpdateStatusInput{
		AppointmentID: ctx.Params("id"),
		Status:        domain.AppointmentStatus(req.Status),
		RescheduledTo: rescheduledTo,
		ChangedBy:     req.ChangedBy,
	})
	if err != nil {
		return translateError(err)
	}

	return ctx.JSON(toAppointmentResponse(appt))
}

func (h *HandlerSet) listStatusChanges(ctx *fiber.Ctx) error {
	changes, err := h.appointments.StatusChanges(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return translateError(err)
	}

	out := make([]statusChangeResponse, 0, len(changes))
	for _, change := range changes {
		resp := statusChangeResponse{
			NewStatus: string(change.NewStatus),
			ChangedBy: change.ChangedBy,
			Notes:     change.Notes,
			CreatedAt: change.CreatedAt,
		}
		if change.OldStatus != nil {
			resp.OldStatus = string(*change.OldStatus)
		}
		out = append(out, resp)
	}
	return ctx.JSON(fiber.Map{"changes": out})
}

func (h *HandlerSet) listEvents(ctx *fiber.Ctx) error {
	count := int64(50)
	if raw := ctx.Query("count"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return fiber.NewError(http.StatusBadRequest, "count must be a positive integer")
		}
		count = parsed
	}

	events, err := h.appointments.Events(ctx.Context(), ctx.Params("id"), count)
	if err != nil {
		return translateError(err)
	}

	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, eventResponse{
			ID:        event.ID,
			Type:      event.Type,
			Payload:   event.Payload,
			Timestamp: event.Timestamp,
		})
	}
	return ctx.JSON(fiber.Map{"events": out})
}

func (h *HandlerSet) listCallLogs(ctx *fiber.Ctx) error {
	records, err := h.appointments.CallLogs(ctx.Context(), ctx.Params("id"), 100)
	if err != nil {
		return translateError(err)
	}

	out := make([]callLogResponse, 0, len(records))
	for _, record := range records {
		out = append(out, callLogResponse{
			ID:              record.ID,
			RoomName:        record.RoomName,
			Success:         record.Success,
			Attempts:        record.Attempts,
			DurationSeconds: int(record.Duration.Seconds()),
			Error:           record.ErrorMessage,
			CreatedAt:       record.CreatedAt,
		})
	}
	return ctx.JSON(fiber.Map{"calls": out})
}

func (h *HandlerSet) listNotifications(ctx *fiber.Ctx) error {
	logs, err := h.appointments.NotificationLogs(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return translateError(err)
	}

	out := make([]notificationResponse, 0, len(logs))
	for _, log := range logs {
		out = append(out, notificationResponse{
			ID:        log.ID,
			Channel:   string(log.Channel),
			Recipient: log.Recipient,
			Status:    string(log.Status),
			Error:     log.ErrorMessage,
			CreatedAt: log.CreatedAt,
		})
	}
	return ctx.JSON(fiber.Map{"notifications": out})
}

func (h *HandlerSet) callMetrics(ctx *fiber.Ctx) error {
	metrics, err := h.appointments.Metrics(ctx.Context())
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(fiber.Map{"metrics": metrics})
}

func toAppointmentResponse(appt *domain.Appointment) appointmentResponse {
	resp := appointmentResponse{
		AppointmentID: appt.AppointmentID,
		CustomerName:  appt.CustomerName,
		Phone:         appt.Phone,
		Email:         appt.Email,
		Date:          appt.Date.Format(dateLayout),
		Time:          appt.TimeOfDay,
		Status:        string(appt.Status),
		CreatedAt:     appt.CreatedAt,
		UpdatedAt:     appt.UpdatedAt,
	}
	if appt.RescheduledTo != nil {
		formatted := appt.RescheduledTo.Format(dateLayout)
		resp.RescheduledTo = &formatted
	}
	return resp
}
