package booking

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"consult/infras/otel"
	"consult/internal/domains/booking/model/dto"
	"consult/internal/domains/booking/service"
	"consult/shared/constant"
	gDto "consult/shared/dto"
	"consult/shared/validator"
	"consult/transport/http/middleware"
	"consult/transport/http/response"
)

type Handler struct {
	service    service.Booking
	middleware middleware.AuthRole
	otel       otel.Otel
}

func New(service service.Booking, middleware middleware.AuthRole, otel otel.Otel) Handler {
	return Handler{
		service:    service,
		middleware: middleware,
		otel:       otel,
	}
}

func (handler *Handler) Router(router chi.Router) {
	router.Route("/bookings", func(routerGroup chi.Router) {
		routerGroup.Post("/reserve", handler.Reserve)
		routerGroup.Post("/verify", handler.Verify)
		routerGroup.Post("/status", handler.OverrideStatus)
		routerGroup.Get("/mybookings", handler.MyBookings)
	})

	router.Route("/providers/{id}", func(routerGroup chi.Router) {
		routerGroup.Get("/slots", handler.SlotsForDay)
		routerGroup.Get("/contact-access", handler.ContactAccess)
		routerGroup.Get("/bookings", handler.ProviderBookings)
	})
}

// Reserve books a one-hour slot with a provider and mints a payment order.
// @Summary Reserve a booking slot
// @Description Validate the slot, create a gateway payment order and persist a pending booking bound to it.
// @Tags Booking
// @Accept json
// @Produce json
// @Param request body dto.ReserveBookingRequest true "Reserve Booking Request"
// @Success 201 {object} response.Data[dto.ReserveResponse] "Pending booking with its gateway order"
// @Failure 400 {object} response.Error
// @Failure 404 {object} response.Error
// @Failure 409 {object} response.Error
// @Failure 502 {object} response.Error
// @Router /v1/bookings/reserve [post]
// @Security BearerAuth
func (handler *Handler) Reserve(writer http.ResponseWriter, request *http.Request) {
	ctx, scope := handler.otel.NewScope(request.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".Reserve")
	defer scope.End()

	req := dto.ReserveBookingRequest{}

	if err := validator.Validate(request.Body, &req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate reserve request")

		response.WithError(writer, err)

		return
	}

	res, err := handler.service.Reserve(ctx, req)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to reserve booking")

		response.WithError(writer, err)

		return
	}

	scope.AddEvent("Booking reserved with order " + res.GatewayOrder.OrderID)

	response.WithJSON(writer, http.StatusCreated, res)
}

// Verify settles a booking from a signed payment confirmation.
// @Summary Verify a payment confirmation
// @Description Check the gateway signature for a pending booking and settle its final status.
// @Tags Booking
// @Accept json
// @Produce json
// @Param request body dto.VerifyPaymentRequest true "Verify Payment Request"
// @Success 200 {object} response.Data[dto.BookingResponse] "Settled booking"
// @Failure 400 {object} response.Error
// @Failure 404 {object} response.Error
// @Failure 409 {object} response.Error
// @Router /v1/bookings/verify [post]
// @Security BearerAuth
func (handler *Handler) Verify(writer http.ResponseWriter, request *http.Request) {
	ctx, scope := handler.otel.NewScope(request.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".Verify")
	defer scope.End()

	req := dto.VerifyPaymentRequest{}

	if err := validator.Validate(request.Body, &req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate verify request")

		response.WithError(writer, err)

		return
	}

	res, err := handler.service.Verify(ctx, req)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to verify payment")

		response.WithError(writer, err)

		return
	}

	response.WithJSON(writer, http.StatusOK, res)
}

// OverrideStatus force-moves a pending booking to a terminal status.
// @Summary Override a booking status
// @Description Operator action, audited. Only transitions out of pending are accepted.
// @Tags Booking
// @Accept json
// @Produce json
// @Param request body dto.OverrideStatusRequest true "Override Status Request"
// @Success 200 {object} response.Data[dto.BookingResponse] "Updated booking"
// @Failure 400 {object} response.Error
// @Failure 404 {object} response.Error
// @Failure 409 {object} response.Error
// @Router /v1/bookings/status [post]
// @Security BearerAuth
func (handler *Handler) OverrideStatus(writer http.ResponseWriter, request *http.Request) {
	ctx, scope := handler.otel.NewScope(request.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".OverrideStatus")
	defer scope.End()

	req := dto.OverrideStatusRequest{}

	if err := validator.Validate(request.Body, &req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate override request")

		response.WithError(writer, err)

		return
	}

	res, err := handler.service.OverrideStatus(ctx, req)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to override booking status")

		response.WithError(writer, err)

		return
	}

	response.WithJSON(writer, http.StatusOK, res)
}

// MyBookings lists the caller's bookings, newest slot first.
// @Summary List my bookings
// @Description Retrieve the authenticated user's bookings with pagination.
// @Tags Booking
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Data[dto.GetBookingsResponse] "Bookings"
// @Failure 400 {object} response.Error
// @Router /v1/bookings/mybookings [get]
// @Security BearerAuth
func (handler *Handler) MyBookings(writer http.ResponseWriter, request *http.Request) {
	ctx, scope := handler.otel.NewScope(request.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".MyBookings")
	defer scope.End()

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)

	queryParams := gDto.QueryParams{}
	queryParams.FromRequest(request, true)

	res, err := handler.service.ListByUser(ctx, user, queryParams)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to list bookings")

		response.WithError(writer, err)

		return
	}

	response.WithJSON(writer, http.StatusOK, res)
}

// SlotsForDay lists a provider's occupied slots on a day.
// @Summary List occupied slots for a day
// @Description Retrieve the active bookings of a provider on a calendar day, occupancy only.
// @Tags Booking
// @Produce json
// @Param id path string true "Provider ID"
// @Param date query string true "Day in YYYY-MM-DD"
// @Success 200 {object} response.Data[dto.GetSlotsResponse] "Occupied slots"
// @Failure 400 {object} response.Error
// @Router /v1/providers/{id}/slots [get]
func (handler *Handler) SlotsForDay(writer http.ResponseWriter, request *http.Request) {
	ctx, scope := handler.otel.NewScope(request.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".SlotsForDay")
	defer scope.End()

	providerID := chi.URLParam(request, constant.RequestParamID)
	date := request.URL.Query().Get(constant.RequestParamDate)

	res, err := handler.service.SlotsForDay(ctx, providerID, date)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to list slots")

		response.WithError(writer, err)

		return
	}

	response.WithJSON(writer, http.StatusOK, res)
}

// ContactAccess reports whether the caller may see the provider's contact details.
// @Summary Check contact access
// @Description Decide contact disclosure from the latest successful booking's grace window.
// @Tags Booking
// @Produce json
// @Param id path string true "Provider ID"
// @Success 200 {object} response.Data[dto.ContactAccessResponse] "Access decision"
// @Failure 400 {object} response.Error
// @Router /v1/providers/{id}/contact-access [get]
// @Security BearerAuth
func (handler *Handler) ContactAccess(writer http.ResponseWriter, request *http.Request) {
	ctx, scope := handler.otel.NewScope(request.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".ContactAccess")
	defer scope.End()

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)
	providerID := chi.URLParam(request, constant.RequestParamID)

	res, err := handler.service.ContactAccess(ctx, user, providerID)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to check contact access")

		response.WithError(writer, err)

		return
	}

	response.WithJSON(writer, http.StatusOK, res)
}

// ProviderBookings lists a provider's bookings, oldest slot first.
// @Summary List a provider's bookings
// @Description Retrieve the bookings held against a provider with pagination.
// @Tags Booking
// @Produce json
// @Param id path string true "Provider ID"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Data[dto.GetBookingsResponse] "Bookings"
// @Failure 400 {object} response.Error
// @Router /v1/providers/{id}/bookings [get]
// @Security BearerAuth
func (handler *Handler) ProviderBookings(writer http.ResponseWriter, request *http.Request) {
	ctx, scope := handler.otel.NewScope(request.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".ProviderBookings")
	defer scope.End()

	providerID := chi.URLParam(request, constant.RequestParamID)

	queryParams := gDto.QueryParams{}
	queryParams.FromRequest(request, true)
	queryParams.SortDir = gDto.SortDirAsc

	res, err := handler.service.ListByProvider(ctx, providerID, queryParams)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to list provider bookings")

		response.WithError(writer, err)

		return
	}

	response.WithJSON(writer, http.StatusOK, res)
}
