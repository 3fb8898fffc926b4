package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"consult/config"
	"consult/infras/kafka"
	"consult/infras/otel"
	"consult/infras/razorpay"
	"consult/internal/domains/booking/model"
	"consult/internal/domains/booking/model/dto"
	"consult/internal/domains/booking/repository"
	profileModel "consult/internal/domains/profile/model"
	profileRepo "consult/internal/domains/profile/repository"
	"consult/shared"
	"consult/shared/cache"
	"consult/shared/constant"
	gDto "consult/shared/dto"
	"consult/shared/failure"
	"consult/shared/timezone"
)

const (
	cacheGetSlots     = "booking:slots"
	cacheGetBookings  = "booking:gets"
	cacheCountBooking = "booking:count"
)

var (
	errProviderNotFound = failure.NotFound("provider")
	errBookingNotFound  = failure.NotFound("booking")
	errSlotTaken        = failure.Conflict("slot is already booked")
	errOrderMismatch    = failure.BadRequestFromString("payment confirmation does not match the booking's order")
	errAlreadyFinal     = failure.Conflict("booking is already finalized")
	errBadSignature     = failure.BadRequestFromString("payment signature verification failed")
	errGatewayDown      = failure.BadGateway("payment gateway unavailable")
)

type Booking interface {
	Reserve(ctx context.Context, req dto.ReserveBookingRequest) (dto.ReserveResponse, error)
	Verify(ctx context.Context, req dto.VerifyPaymentRequest) (dto.BookingResponse, error)
	OverrideStatus(ctx context.Context, req dto.OverrideStatusRequest) (dto.BookingResponse, error)
	SlotsForDay(ctx context.Context, providerID, date string) (dto.GetSlotsResponse, error)
	ContactAccess(ctx context.Context, userID, providerID string) (dto.ContactAccessResponse, error)
	ListByUser(ctx context.Context, userID string, params gDto.QueryParams) (dto.GetBookingsResponse, error)
	ListByProvider(ctx context.Context, providerID string, params gDto.QueryParams) (dto.GetBookingsResponse, error)
}

type serviceImpl struct {
	repo     repository.Booking
	profiles profileRepo.Profile
	gateway  razorpay.Client
	kafka    kafka.Client
	cfg      *config.Config
	cache    cache.RedisCache
	otel     otel.Otel
}

func New(
	repo repository.Booking,
	profiles profileRepo.Profile,
	gateway razorpay.Client,
	kafkaClient kafka.Client,
	cfg *config.Config,
	redisCache cache.RedisCache,
	otl otel.Otel,
) Booking {
	return &serviceImpl{
		repo:     repo,
		profiles: profiles,
		gateway:  gateway,
		kafka:    kafkaClient,
		cfg:      cfg,
		cache:    redisCache,
		otel:     otl,
	}
}

// Reserve validates the requested slot, mints a gateway order and persists a
// pending booking bound to it. The overlap check runs twice: once up front for
// a fast rejection, and again inside the insert transaction where it counts.
func (s *serviceImpl) Reserve(ctx context.Context, req dto.ReserveBookingRequest) (res dto.ReserveResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Reserve")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)

	if req.Amount == 0 {
		req.Amount = float64(s.cfg.Booking.DefaultAmount)
	}

	if req.Currency == "" {
		req.Currency = s.cfg.Booking.DefaultCurrency
	}

	interval, err := model.NewInterval(req.Start, req.End, timezone.GetLocation())
	if err != nil {
		return res, err
	}

	if err = interval.ValidateWindow(timezone.Now(), s.cfg.Booking.OpenHour, s.cfg.Booking.CloseHour); err != nil {
		return res, err
	}

	exists, err := s.profiles.Exist(ctx, gDto.FilterGroup{Filters: []any{
		gDto.Filter{Field: profileModel.FieldID, Operator: gDto.FilterOperatorEq, Value: req.ProviderID},
		gDto.Filter{Field: profileModel.FieldActive, Operator: gDto.FilterOperatorEq, Value: true},
	}})
	if err != nil {
		return res, err
	}

	if !exists {
		return res, errProviderNotFound
	}

	taken, err := s.repo.Exist(ctx, repository.OverlapFilter(req.ProviderID, interval))
	if err != nil {
		return res, err
	}

	if taken {
		return res, errSlotTaken
	}

	order, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderRequest{
		AmountMinorUnits: toMinorUnits(req.Amount),
		Currency:         req.Currency,
		Receipt:          s.buildReceipt(req.ProviderID),
		Notes: map[string]string{
			"user_id":     user,
			"provider_id": req.ProviderID,
			"mode":        req.Mode,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("provider_id", req.ProviderID).Msg("gateway order creation failed")

		return res, errGatewayDown
	}

	booking := req.ToModel(user, interval)
	booking.PayGateway = razorpay.GatewayName
	booking.PayOrderID = order.ID

	if err = s.persistReserving(ctx, booking); err != nil {
		if !errors.Is(err, errSlotTaken) {
			// The remote order now has no booking referencing it. The
			// gateway's own expiry is the cleanup path; surface the orphan
			// for operational tracking.
			log.Error().
				Err(err).
				Str("order_id", order.ID).
				Str("provider_id", req.ProviderID).
				Msg("booking persist failed after gateway order creation, order orphaned")
			s.publish(ctx, BookingEvent{
				Type:       EventOrderOrphaned,
				OrderID:    order.ID,
				UserID:     user,
				ProviderID: req.ProviderID,
			})
		}

		return res, err
	}

	s.publish(ctx, BookingEvent{
		Type:       EventBookingReserved,
		BookingID:  booking.ID,
		UserID:     user,
		ProviderID: booking.ProviderID,
		OrderID:    order.ID,
		Status:     booking.Status,
	})
	s.invalidate(ctx)

	res.Booking.FromModel(booking)
	res.GatewayOrder = dto.GatewayOrderResponse{
		KeyID:    s.gateway.KeyID(),
		OrderID:  order.ID,
		Amount:   order.AmountMinorUnits,
		Currency: order.Currency,
	}

	return res, nil
}

// persistReserving retries the critical section once on conflict: a
// serialization failure on the first attempt may be transient, and a retry
// that still conflicts proves the slot is genuinely taken.
func (s *serviceImpl) persistReserving(ctx context.Context, booking model.Booking) error {
	var err error

	for attempt := 0; attempt <= s.cfg.Booking.ConflictRetries; attempt++ {
		err = s.repo.InsertReserving(ctx, booking)
		if !errors.Is(err, repository.ErrSlotConflict) {
			return err
		}
	}

	return errSlotTaken
}

// Verify binds a signed payment confirmation back to its booking and settles
// the booking's final status. A bad signature is persisted as failed, never
// silently dropped, so the slot is released and the failure is auditable.
func (s *serviceImpl) Verify(ctx context.Context, req dto.VerifyPaymentRequest) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Verify")
	defer scope.End()
	defer scope.TraceIfError(err)

	booking, err := s.repo.Get(ctx, shared.FilterByID(req.BookingID, model.FieldID, model.TableName))
	if err != nil {
		return res, err
	}

	if booking.ID == "" {
		return res, errBookingNotFound
	}

	if booking.PayGateway != razorpay.GatewayName || booking.PayOrderID != req.GatewayOrderID {
		return res, errOrderMismatch
	}

	if model.IsTerminalStatus(booking.Status) {
		return res, errAlreadyFinal
	}

	if !s.gateway.VerifySignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		if err = s.setStatus(ctx, &booking, model.StatusFailed, map[string]any{
			model.FieldPayPaymentID: req.GatewayPaymentID,
			model.FieldPaySignature: req.Signature,
			model.FieldPayRaw:       `{"verification":"failed"}`,
		}); err != nil {
			return res, err
		}

		s.publish(ctx, BookingEvent{
			Type:       EventPaymentFailed,
			BookingID:  booking.ID,
			UserID:     booking.UserID,
			ProviderID: booking.ProviderID,
			OrderID:    booking.PayOrderID,
			Status:     model.StatusFailed,
		})
		s.invalidate(ctx)

		return res, errBadSignature
	}

	if err = s.setStatus(ctx, &booking, model.StatusSuccess, map[string]any{
		model.FieldPayPaymentID: req.GatewayPaymentID,
		model.FieldPaySignature: req.Signature,
		model.FieldPayRaw:       `{"verification":"succeeded"}`,
	}); err != nil {
		return res, err
	}

	s.publish(ctx, BookingEvent{
		Type:       EventPaymentCaptured,
		BookingID:  booking.ID,
		UserID:     booking.UserID,
		ProviderID: booking.ProviderID,
		OrderID:    booking.PayOrderID,
		Status:     model.StatusSuccess,
	})
	s.invalidate(ctx)

	res.FromModel(booking)

	return res, nil
}

// OverrideStatus is the audited operator escape hatch. It still respects the
// state machine: terminal bookings stay terminal.
func (s *serviceImpl) OverrideStatus(ctx context.Context, req dto.OverrideStatusRequest) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".OverrideStatus")
	defer scope.End()
	defer scope.TraceIfError(err)

	operator, _ := ctx.Value(constant.ContextKeyUserID).(string)

	booking, err := s.repo.Get(ctx, shared.FilterByID(req.BookingID, model.FieldID, model.TableName))
	if err != nil {
		return res, err
	}

	if booking.ID == "" {
		return res, errBookingNotFound
	}

	if !model.CanTransition(booking.Status, req.Status) {
		return res, failure.Conflict(fmt.Sprintf("cannot transition booking from %s to %s", booking.Status, req.Status))
	}

	if err = s.setStatus(ctx, &booking, req.Status, nil); err != nil {
		return res, err
	}

	log.Info().
		Str("booking_id", booking.ID).
		Str("status", req.Status).
		Str("operator", operator).
		Msg("booking status overridden")
	s.publish(ctx, BookingEvent{
		Type:       EventStatusOverridden,
		BookingID:  booking.ID,
		UserID:     booking.UserID,
		ProviderID: booking.ProviderID,
		Status:     req.Status,
		Actor:      operator,
	})
	s.invalidate(ctx)

	res.FromModel(booking)

	return res, nil
}

// setStatus is the single entry point for status mutation. The write is
// guarded on the status the caller read, so a confirmation racing another
// settlement loses instead of overwriting it.
func (s *serviceImpl) setStatus(ctx context.Context, booking *model.Booking, status string, paymentFields map[string]any) error {
	user, _ := ctx.Value(constant.ContextKeyUserID).(string)

	fields := map[string]any{
		model.FieldStatus:        status,
		constant.FieldModifiedAt: timezone.Now(),
		constant.FieldModifiedBy: user,
	}

	for k, v := range paymentFields {
		fields[k] = v
	}

	err := s.repo.UpdateStatus(ctx, fields, booking.ID, booking.Status)
	if errors.Is(err, repository.ErrStaleStatus) {
		return errAlreadyFinal
	}

	if err != nil {
		return err
	}

	booking.Status = status
	booking.ModifiedAt = timezone.Now()
	booking.ModifiedBy = user

	if v, ok := paymentFields[model.FieldPayPaymentID].(string); ok {
		booking.PayPaymentID = v
	}

	if v, ok := paymentFields[model.FieldPaySignature].(string); ok {
		booking.PaySignature = v
	}

	if v, ok := paymentFields[model.FieldPayRaw].(string); ok {
		booking.PayRaw = v
	}

	return nil
}

// SlotsForDay lists a provider's active bookings on a calendar day, exposing
// only occupancy.
func (s *serviceImpl) SlotsForDay(ctx context.Context, providerID, date string) (res dto.GetSlotsResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".SlotsForDay")
	defer scope.End()
	defer scope.TraceIfError(err)

	// Day boundaries are pinned to UTC regardless of the app timezone, so the
	// same date always covers the same instant range.
	dayStart, err := time.ParseInLocation(constant.DayFormat, date, time.UTC)
	if err != nil {
		return res, failure.BadRequestFromString("invalid date, expected YYYY-MM-DD")
	}

	cacheKey := shared.BuildCacheKey(cacheGetSlots, providerID, date)

	if err = s.cache.Get(ctx, cacheKey, &res); err == nil {
		return res, nil
	}

	dayEnd := dayStart.AddDate(0, 0, 1)

	bookings, err := s.repo.GetAll(ctx,
		gDto.QueryParams{SortBy: model.FieldStartAt, SortDir: gDto.SortDirAsc},
		gDto.FilterGroup{Filters: []any{
			gDto.Filter{Field: model.FieldProviderID, Operator: gDto.FilterOperatorEq, Value: providerID},
			gDto.Filter{Field: model.FieldStatus, Operator: gDto.FilterOperatorIn, Value: model.ActiveStatuses},
			gDto.Filter{ArgName: "day_start", Field: model.FieldStartAt, Operator: gDto.FilterOperatorGreaterEq, Value: dayStart},
			gDto.Filter{ArgName: "day_end", Field: model.FieldStartAt, Operator: gDto.FilterOperatorLess, Value: dayEnd},
		}},
	)
	if err != nil {
		return res, err
	}

	res.FromModels(bookings)

	go func() {
		c := context.WithoutCancel(ctx)

		if saveErr := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); saveErr != nil {
			log.Warn().Err(saveErr).Str("cacheKey", cacheKey).Msg("failed to cache slots")
		}
	}()

	return res, nil
}

// ContactAccess decides whether the caller may see the provider's contact
// details right now, based on the latest successful booking between the two.
// Contact fields are looked up only when access is granted.
func (s *serviceImpl) ContactAccess(ctx context.Context, userID, providerID string) (res dto.ContactAccessResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".ContactAccess")
	defer scope.End()
	defer scope.TraceIfError(err)

	latest, err := s.repo.GetAll(ctx,
		gDto.QueryParams{Limit: 1, SortBy: model.FieldStartAt, SortDir: gDto.SortDirDesc},
		gDto.FilterGroup{Filters: []any{
			gDto.Filter{Field: model.FieldUserID, Operator: gDto.FilterOperatorEq, Value: userID},
			gDto.Filter{Field: model.FieldProviderID, Operator: gDto.FilterOperatorEq, Value: providerID},
			gDto.Filter{Field: model.FieldStatus, Operator: gDto.FilterOperatorEq, Value: model.StatusSuccess},
		}},
	)
	if err != nil {
		return res, err
	}

	if len(latest) == 0 {
		res.Allowed = false
		res.Reason = "no successful booking with this provider"

		return res, nil
	}

	booking := latest[0]
	unlocksAt := booking.StartAt.Add(-time.Duration(s.cfg.Booking.GraceBeforeMin) * time.Minute)
	expiresAt := booking.EndAt.Add(time.Duration(s.cfg.Booking.GraceAfterMin) * time.Minute)
	now := timezone.Now()

	if now.Before(unlocksAt) || now.After(expiresAt) {
		res.Allowed = false
		res.Reason = "outside the booking's contact window"
		res.UnlocksAt = timezone.Format(unlocksAt, constant.DateFormat)
		res.StartsAt = timezone.Format(booking.StartAt, constant.DateFormat)
		res.EndsAt = timezone.Format(booking.EndAt, constant.DateFormat)

		return res, nil
	}

	profile, err := s.profiles.Get(ctx, shared.FilterByID(providerID, profileModel.FieldID, profileModel.TableName))
	if err != nil {
		return res, err
	}

	res.Allowed = true
	res.ProfileName = profile.FullName
	res.Email = profile.Email
	res.Mobile = profile.Mobile
	res.Until = timezone.Format(booking.EndAt, constant.DateFormat)

	return res, nil
}

func (s *serviceImpl) ListByUser(ctx context.Context, userID string, params gDto.QueryParams) (res dto.GetBookingsResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".ListByUser")
	defer scope.End()
	defer scope.TraceIfError(err)

	filter := gDto.FilterGroup{Filters: []any{
		gDto.Filter{Field: model.FieldUserID, Operator: gDto.FilterOperatorEq, Value: userID},
	}}

	return s.list(ctx, params, filter)
}

func (s *serviceImpl) ListByProvider(ctx context.Context, providerID string, params gDto.QueryParams) (res dto.GetBookingsResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".ListByProvider")
	defer scope.End()
	defer scope.TraceIfError(err)

	filter := gDto.FilterGroup{Filters: []any{
		gDto.Filter{Field: model.FieldProviderID, Operator: gDto.FilterOperatorEq, Value: providerID},
	}}

	return s.list(ctx, params, filter)
}

func (s *serviceImpl) list(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup) (res dto.GetBookingsResponse, err error) {
	if params.SortBy == "" || params.SortBy == constant.DefaultValueSortBy {
		params.SortBy = model.FieldStartAt
	}

	if params.SortDir == "" {
		params.SortDir = gDto.SortDirDesc
	}

	cacheKey := shared.BuildCacheKeyWithQuery(cacheGetBookings, params, filter)

	if err = s.cache.Get(ctx, cacheKey, &res); err == nil {
		return res, nil
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return res, err
	}

	bookings, err := s.repo.GetAll(ctx, params, filter)
	if err != nil {
		return res, err
	}

	res.FromModels(bookings, total, params.Limit)

	go func() {
		c := context.WithoutCancel(ctx)

		if saveErr := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); saveErr != nil {
			log.Warn().Err(saveErr).Str("cacheKey", cacheKey).Msg("failed to cache bookings")
		}
	}()

	return res, nil
}

func (s *serviceImpl) invalidate(ctx context.Context) {
	go func() {
		c := context.WithoutCancel(ctx)

		shared.InvalidateCaches(c, s.cache, cacheGetSlots)
		shared.InvalidateCaches(c, s.cache, cacheGetBookings)
		shared.InvalidateCaches(c, s.cache, cacheCountBooking)
	}()
}

// toMinorUnits converts a major-unit amount to the gateway's integer minor
// units, rounding to the nearest unit. 500 INR becomes 50000 paise.
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// buildReceipt derives a best-effort unique receipt tag from the current
// timestamp and the tail of the provider id.
func (s *serviceImpl) buildReceipt(providerID string) string {
	ref := providerID
	if n := s.cfg.Booking.ReceiptRefLength; len(ref) > n {
		ref = ref[len(ref)-n:]
	}

	return fmt.Sprintf("%s_%d_%s", s.cfg.Booking.ReceiptPrefix, timezone.Now().UnixMilli(), ref)
}
