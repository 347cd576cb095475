package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vocalia/vocalia-api/internal/platform/auth"
	"github.com/vocalia/vocalia-api/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "manager", "operator"))
	readGroup.GET("/availability", h.GetAvailability)
	readGroup.GET("/appointments", h.ListAppointments)
	readGroup.GET("/appointments/:id", h.GetAppointment)

	// The voice agent books with the operator role; schedule administration
	// stays with admin/manager.
	bookGroup := api.Group("", auth.RequireRole("admin", "manager", "operator"))
	bookGroup.POST("/appointments", h.BookAppointment)
	bookGroup.POST("/appointments/:id/assign", h.AssignOperator)
	bookGroup.POST("/appointments/:id/cancel", h.CancelAppointment)

	adminGroup := api.Group("", auth.RequireRole("admin", "manager"))
	adminGroup.PUT("/schedules", h.UpsertSchedule)
	adminGroup.PUT("/exceptions", h.UpsertException)
	adminGroup.DELETE("/exceptions/:id", h.DeleteException)
}

func callerOrgID(c echo.Context) (uuid.UUID, error) {
	orgID, err := uuid.Parse(auth.OrgIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "missing organization context")
	}
	return orgID, nil
}

// -- Availability --

func (h *Handler) GetAvailability(c echo.Context) error {
	orgID, err := callerOrgID(c)
	if err != nil {
		return err
	}
	deptID, err := uuid.Parse(c.QueryParam("department_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "department_id is required")
	}

	q := AvailabilityQuery{
		OrganizationID: orgID,
		DepartmentID:   deptID,
		StartDate:      c.QueryParam("start_date"),
		EndDate:        c.QueryParam("end_date"),
		ClientTimezone: c.QueryParam("timezone"),
	}
	if raw := c.QueryParam("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid user_id")
		}
		q.UserID = &userID
	}

	slots, err := h.svc.GetAvailability(c.Request().Context(), q)
	if err != nil {
		if errors.Is(err, ErrInvalidRange) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, slots)
}

// -- Booking --

func (h *Handler) BookAppointment(c echo.Context) error {
	orgID, err := callerOrgID(c)
	if err != nil {
		return err
	}
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.OrganizationID = orgID

	outcome, err := h.svc.BookAppointment(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	switch outcome.Status {
	case BookingSuccess:
		return c.JSON(http.StatusCreated, outcome)
	case BookingConflict:
		return c.JSON(http.StatusConflict, outcome)
	default:
		return c.JSON(http.StatusUnprocessableEntity, outcome)
	}
}

// -- Assignment --

type assignRequest struct {
	UserID         uuid.UUID      `json:"user_id"`
	AssignmentMode AssignmentMode `json:"assignment_mode"`
}

func (h *Handler) AssignOperator(c echo.Context) error {
	orgID, err := callerOrgID(c)
	if err != nil {
		return err
	}
	apptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	if req.AssignmentMode == "" {
		req.AssignmentMode = AssignManual
	}
	assignedBy, _ := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))

	appt, err := h.svc.AssignOperator(c.Request().Context(), orgID, apptID, req.UserID, assignedBy, req.AssignmentMode)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		case errors.Is(err, ErrInvalidTransition):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrNotMember):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, appt)
}

// -- Cancellation --

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	orgID, err := callerOrgID(c)
	if err != nil {
		return err
	}
	apptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	appt, err := h.svc.CancelAppointment(c.Request().Context(), orgID, apptID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		case errors.Is(err, ErrInvalidTransition):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, appt)
}

// -- Queries --

func (h *Handler) GetAppointment(c echo.Context) error {
	orgID, err := callerOrgID(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.GetAppointment(c.Request().Context(), orgID, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	orgID, err := callerOrgID(c)
	if err != nil {
		return err
	}

	var f AppointmentFilters
	if raw := c.QueryParam("department_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid department_id")
		}
		f.DepartmentID = &id
	}
	if raw := c.QueryParam("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid user_id")
		}
		f.UserID = &id
	}
	f.Status = AppointmentStatus(c.QueryParam("status"))
	f.Type = AppointmentType(c.QueryParam("type"))
	if raw := c.QueryParam("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from timestamp")
		}
		f.From = &t
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to timestamp")
		}
		f.To = &t
	}

	p := pagination.FromContext(c)
	appts, total, err := h.svc.ListAppointments(c.Request().Context(), orgID, f, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, p.Limit, p.Offset))
}

// -- Schedule administration --

func (h *Handler) UpsertSchedule(c echo.Context) error {
	orgID, err := callerOrgID(c)
	if err != nil {
		return err
	}
	var sched WeeklySchedule
	if err := c.Bind(&sched); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sched.OrganizationID = orgID
	if err := h.svc.UpsertSchedule(c.Request().Context(), &sched); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) UpsertException(c echo.Context) error {
	orgID, err := callerOrgID(c)
	if err != nil {
		return err
	}
	var exc ScheduleException
	if err := c.Bind(&exc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	exc.OrganizationID = orgID
	if err := h.svc.UpsertException(c.Request().Context(), &exc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, exc)
}

func (h *Handler) DeleteException(c echo.Context) error {
	orgID, err := callerOrgID(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	targetID, err := uuid.Parse(c.QueryParam("target_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "target_id is required")
	}
	if err := h.svc.DeleteException(c.Request().Context(), orgID, id, targetID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "exception not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
