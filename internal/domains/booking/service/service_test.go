package service_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"consult/config"
	kafkaMocks "consult/infras/kafka/mocks"
	"consult/infras/otel/mocks"
	"consult/infras/razorpay"
	razorpayMocks "consult/infras/razorpay/mocks"
	bookingMocks "consult/internal/domains/booking/mocks"
	"consult/internal/domains/booking/model"
	"consult/internal/domains/booking/model/dto"
	"consult/internal/domains/booking/repository"
	"consult/internal/domains/booking/service"
	profileMocks "consult/internal/domains/profile/mocks"
	profileModel "consult/internal/domains/profile/model"
	cacheMocks "consult/shared/cache/mocks"
	"consult/shared/constant"
	gDto "consult/shared/dto"
	"consult/shared/failure"
	gModel "consult/shared/model"
)

var errCacheMiss = errors.New("cache miss")

type fixture struct {
	repo     *bookingMocks.MockBooking
	profiles *profileMocks.MockProfile
	gateway  *razorpayMocks.MockClient
	kafka    *kafkaMocks.MockClient
	cache    *cacheMocks.MockRedisCache
	cfg      *config.Config
	svc      service.Booking
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := &fixture{
		repo:     bookingMocks.NewMockBooking(ctrl),
		profiles: profileMocks.NewMockProfile(ctrl),
		gateway:  razorpayMocks.NewMockClient(ctrl),
		kafka:    kafkaMocks.NewMockClient(ctrl),
		cache:    cacheMocks.NewMockRedisCache(ctrl),
		cfg:      &config.Config{},
	}

	f.cfg.Booking.OpenHour = 9
	f.cfg.Booking.CloseHour = 21
	f.cfg.Booking.GraceBeforeMin = 10
	f.cfg.Booking.GraceAfterMin = 5
	f.cfg.Booking.DefaultAmount = 500
	f.cfg.Booking.DefaultCurrency = "INR"
	f.cfg.Booking.ConflictRetries = 1
	f.cfg.Booking.ReceiptPrefix = "bk"
	f.cfg.Booking.ReceiptRefLength = 6
	f.cfg.Cache.TTL = 3600
	f.cfg.Kafka.BookingTopic = "consult.booking.events"

	// Events and cache writes happen off the request path, so expectations
	// on them stay loose.
	f.kafka.EXPECT().SendMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	f.cache.EXPECT().Clear(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	f.cache.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	f.svc = service.New(f.repo, f.profiles, f.gateway, f.kafka, f.cfg, f.cache, mocks.NewOtel())

	return f
}

func userContext(userID string) context.Context {
	return context.WithValue(context.Background(), constant.ContextKeyUserID, userID)
}

func futureSlot(t *testing.T) (string, string) {
	t.Helper()

	start := time.Now().UTC().AddDate(0, 0, 7)
	start = time.Date(start.Year(), start.Month(), start.Day(), 10, 0, 0, 0, time.UTC)

	return start.Format(time.RFC3339), start.Add(time.Hour).Format(time.RFC3339)
}

func TestBookingService_Reserve(t *testing.T) {
	providerID := "3f1c9a9e-70a1-4f3c-9d2b-1f6f0a6e1111"
	start, end := futureSlot(t)

	baseReq := func() dto.ReserveBookingRequest {
		return dto.ReserveBookingRequest{
			ProviderID: providerID,
			Start:      start,
			End:        end,
			Mode:       model.ModeChat,
		}
	}

	tests := []struct {
		name      string
		mutate    func(*dto.ReserveBookingRequest)
		setupMock func(f *fixture)
		wantCode  int
	}{
		{
			name: "defaults amount to 500 INR and mints 50000 minor units",
			setupMock: func(f *fixture) {
				f.profiles.EXPECT().Exist(gomock.Any(), gomock.Any()).Return(true, nil)
				f.repo.EXPECT().Exist(gomock.Any(), gomock.Any()).Return(false, nil)
				f.gateway.EXPECT().
					CreateOrder(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, req razorpay.CreateOrderRequest) (razorpay.Order, error) {
						assert.Equal(t, int64(50000), req.AmountMinorUnits)
						assert.Equal(t, "INR", req.Currency)
						assert.NotEmpty(t, req.Receipt)

						return razorpay.Order{ID: "order_abc", AmountMinorUnits: req.AmountMinorUnits, Currency: req.Currency}, nil
					})
				f.repo.EXPECT().InsertReserving(gomock.Any(), gomock.Any()).Return(nil)
				f.gateway.EXPECT().KeyID().Return("rzp_test_key")
			},
		},
		{
			name: "wrong duration",
			mutate: func(req *dto.ReserveBookingRequest) {
				endAt, _ := time.Parse(time.RFC3339, req.End)
				req.End = endAt.Add(30 * time.Minute).Format(time.RFC3339)
			},
			setupMock: func(f *fixture) {},
			wantCode:  http.StatusBadRequest,
		},
		{
			name: "provider does not exist",
			setupMock: func(f *fixture) {
				f.profiles.EXPECT().Exist(gomock.Any(), gomock.Any()).Return(false, nil)
			},
			wantCode: http.StatusNotFound,
		},
		{
			name: "slot already taken, cancelled and failed bookings excluded",
			setupMock: func(f *fixture) {
				f.profiles.EXPECT().Exist(gomock.Any(), gomock.Any()).Return(true, nil)
				f.repo.EXPECT().
					Exist(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, filter gDto.FilterGroup) (bool, error) {
						assert.Contains(t, filter.Filters, gDto.Filter{
							Field:    model.FieldStatus,
							Operator: gDto.FilterOperatorIn,
							Value:    model.ActiveStatuses,
						})

						return true, nil
					})
			},
			wantCode: http.StatusConflict,
		},
		{
			name: "gateway unavailable",
			setupMock: func(f *fixture) {
				f.profiles.EXPECT().Exist(gomock.Any(), gomock.Any()).Return(true, nil)
				f.repo.EXPECT().Exist(gomock.Any(), gomock.Any()).Return(false, nil)
				f.gateway.EXPECT().
					CreateOrder(gomock.Any(), gomock.Any()).
					Return(razorpay.Order{}, errors.New("connection timed out"))
			},
			wantCode: http.StatusBadGateway,
		},
		{
			name: "loses the race after the gateway order",
			setupMock: func(f *fixture) {
				f.profiles.EXPECT().Exist(gomock.Any(), gomock.Any()).Return(true, nil)
				f.repo.EXPECT().Exist(gomock.Any(), gomock.Any()).Return(false, nil)
				f.gateway.EXPECT().
					CreateOrder(gomock.Any(), gomock.Any()).
					Return(razorpay.Order{ID: "order_race"}, nil)
				f.repo.EXPECT().
					InsertReserving(gomock.Any(), gomock.Any()).
					Return(repository.ErrSlotConflict).
					Times(2)
			},
			wantCode: http.StatusConflict,
		},
		{
			name: "persist failure orphans the order",
			setupMock: func(f *fixture) {
				f.profiles.EXPECT().Exist(gomock.Any(), gomock.Any()).Return(true, nil)
				f.repo.EXPECT().Exist(gomock.Any(), gomock.Any()).Return(false, nil)
				f.gateway.EXPECT().
					CreateOrder(gomock.Any(), gomock.Any()).
					Return(razorpay.Order{ID: "order_orphan"}, nil)
				f.repo.EXPECT().
					InsertReserving(gomock.Any(), gomock.Any()).
					Return(errors.New("connection reset"))
			},
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMock(f)

			req := baseReq()
			if tt.mutate != nil {
				tt.mutate(&req)
			}

			res, err := f.svc.Reserve(userContext("user-1"), req)

			if tt.wantCode != 0 {
				assert.Error(t, err)
				assert.Equal(t, tt.wantCode, failure.GetCode(err))

				return
			}

			assert.NoError(t, err)
			assert.Equal(t, model.StatusPending, res.Booking.Status)
			assert.Equal(t, float64(500), res.Booking.Amount)
			assert.Equal(t, "order_abc", res.GatewayOrder.OrderID)
			assert.Equal(t, int64(50000), res.GatewayOrder.Amount)
			assert.Equal(t, "rzp_test_key", res.GatewayOrder.KeyID)
		})
	}
}

func pendingBooking() model.Booking {
	return model.Booking{
		ID:         "booking-1",
		UserID:     "user-1",
		ProviderID: "provider-1",
		Interval: model.Interval{
			StartAt: time.Now().UTC().Add(time.Hour),
			EndAt:   time.Now().UTC().Add(2 * time.Hour),
		},
		Mode:       model.ModeChat,
		Amount:     500,
		Currency:   "INR",
		Status:     model.StatusPending,
		PayGateway: razorpay.GatewayName,
		PayOrderID: "order_abc",
	}
}

func TestBookingService_Verify(t *testing.T) {
	baseReq := dto.VerifyPaymentRequest{
		BookingID:        "booking-1",
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_xyz",
		Signature:        "deadbeef",
	}

	tests := []struct {
		name       string
		req        dto.VerifyPaymentRequest
		setupMock  func(f *fixture)
		wantCode   int
		wantStatus string
	}{
		{
			name: "matching signature settles success",
			req:  baseReq,
			setupMock: func(f *fixture) {
				f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(pendingBooking(), nil)
				f.gateway.EXPECT().VerifySignature("order_abc", "pay_xyz", "deadbeef").Return(true)
				f.repo.EXPECT().
					UpdateStatus(gomock.Any(), gomock.Any(), "booking-1", model.StatusPending).
					DoAndReturn(func(_ context.Context, fields map[string]any, _, _ string) error {
						assert.Equal(t, model.StatusSuccess, fields[model.FieldStatus])
						assert.Equal(t, "pay_xyz", fields[model.FieldPayPaymentID])

						return nil
					})
			},
			wantStatus: model.StatusSuccess,
		},
		{
			name: "bad signature settles failed and reports it",
			req:  baseReq,
			setupMock: func(f *fixture) {
				f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(pendingBooking(), nil)
				f.gateway.EXPECT().VerifySignature("order_abc", "pay_xyz", "deadbeef").Return(false)
				f.repo.EXPECT().
					UpdateStatus(gomock.Any(), gomock.Any(), "booking-1", model.StatusPending).
					DoAndReturn(func(_ context.Context, fields map[string]any, _, _ string) error {
						assert.Equal(t, model.StatusFailed, fields[model.FieldStatus])

						return nil
					})
			},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown booking",
			req:  baseReq,
			setupMock: func(f *fixture) {
				f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(model.Booking{}, nil)
			},
			wantCode: http.StatusNotFound,
		},
		{
			name: "order id from another booking",
			req: dto.VerifyPaymentRequest{
				BookingID:        "booking-1",
				GatewayOrderID:   "order_other",
				GatewayPaymentID: "pay_xyz",
				Signature:        "deadbeef",
			},
			setupMock: func(f *fixture) {
				f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(pendingBooking(), nil)
			},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "already settled booking rejects re-verification",
			req:  baseReq,
			setupMock: func(f *fixture) {
				settled := pendingBooking()
				settled.Status = model.StatusSuccess
				f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(settled, nil)
			},
			wantCode: http.StatusConflict,
		},
		{
			name: "loses a settlement race after the terminal check",
			req:  baseReq,
			setupMock: func(f *fixture) {
				f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(pendingBooking(), nil)
				f.gateway.EXPECT().VerifySignature("order_abc", "pay_xyz", "deadbeef").Return(true)
				f.repo.EXPECT().
					UpdateStatus(gomock.Any(), gomock.Any(), "booking-1", model.StatusPending).
					Return(repository.ErrStaleStatus)
			},
			wantCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMock(f)

			res, err := f.svc.Verify(userContext("user-1"), tt.req)

			if tt.wantCode != 0 {
				assert.Error(t, err)
				assert.Equal(t, tt.wantCode, failure.GetCode(err))

				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.Status)
		})
	}
}

func TestBookingService_OverrideStatus(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		to       string
		wantCode int
	}{
		{name: "pending to cancelled", from: model.StatusPending, to: model.StatusCancelled},
		{name: "pending to failed", from: model.StatusPending, to: model.StatusFailed},
		{name: "success is terminal", from: model.StatusSuccess, to: model.StatusCancelled, wantCode: http.StatusConflict},
		{name: "cancelled cannot be revived", from: model.StatusCancelled, to: model.StatusPending, wantCode: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			booking := pendingBooking()
			booking.Status = tt.from
			f.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(booking, nil)

			if tt.wantCode == 0 {
				f.repo.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), booking.ID, tt.from).Return(nil)
			}

			res, err := f.svc.OverrideStatus(userContext("admin-1"), dto.OverrideStatusRequest{
				BookingID: booking.ID,
				Status:    tt.to,
			})

			if tt.wantCode != 0 {
				assert.Error(t, err)
				assert.Equal(t, tt.wantCode, failure.GetCode(err))

				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.to, res.Status)
		})
	}
}

func TestBookingService_ListByUser(t *testing.T) {
	t.Run("defaults to newest slot first", func(t *testing.T) {
		f := newFixture(t)

		f.cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(errCacheMiss)
		f.repo.EXPECT().Count(gomock.Any(), gomock.Any()).Return(1, nil)
		f.repo.EXPECT().
			GetAll(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params gDto.QueryParams, _ gDto.FilterGroup, _ ...string) ([]model.Booking, error) {
				assert.Equal(t, model.FieldStartAt, params.SortBy)
				assert.Equal(t, gDto.SortDirDesc, params.SortDir)

				return []model.Booking{pendingBooking()}, nil
			})

		res, err := f.svc.ListByUser(context.Background(), "user-1", gDto.QueryParams{})

		assert.NoError(t, err)
		assert.Len(t, res.Bookings, 1)
	})

	t.Run("explicit sort direction passes through", func(t *testing.T) {
		f := newFixture(t)

		f.cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(errCacheMiss)
		f.repo.EXPECT().Count(gomock.Any(), gomock.Any()).Return(0, nil)
		f.repo.EXPECT().
			GetAll(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params gDto.QueryParams, _ gDto.FilterGroup, _ ...string) ([]model.Booking, error) {
				assert.Equal(t, gDto.SortDirAsc, params.SortDir)

				return nil, nil
			})

		_, err := f.svc.ListByUser(context.Background(), "user-1", gDto.QueryParams{SortDir: gDto.SortDirAsc})

		assert.NoError(t, err)
	})
}

func TestBookingService_SlotsForDay(t *testing.T) {
	t.Run("rejects malformed date", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.SlotsForDay(context.Background(), "provider-1", "June 1st")

		assert.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, failure.GetCode(err))
	})

	t.Run("lists only occupancy within the utc day", func(t *testing.T) {
		f := newFixture(t)

		f.cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(errCacheMiss)
		f.repo.EXPECT().
			GetAll(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ gDto.QueryParams, filter gDto.FilterGroup, _ ...string) ([]model.Booking, error) {
				dayStart := time.Date(2026, time.September, 8, 0, 0, 0, 0, time.UTC)
				assert.Contains(t, filter.Filters, gDto.Filter{
					ArgName:  "day_start",
					Field:    model.FieldStartAt,
					Operator: gDto.FilterOperatorGreaterEq,
					Value:    dayStart,
				})
				assert.Contains(t, filter.Filters, gDto.Filter{
					ArgName:  "day_end",
					Field:    model.FieldStartAt,
					Operator: gDto.FilterOperatorLess,
					Value:    dayStart.AddDate(0, 0, 1),
				})

				return []model.Booking{pendingBooking()}, nil
			})

		res, err := f.svc.SlotsForDay(context.Background(), "provider-1", "2026-09-08")

		assert.NoError(t, err)
		assert.Len(t, res.Slots, 1)
		assert.Equal(t, model.StatusPending, res.Slots[0].Status)
		assert.NotEmpty(t, res.Slots[0].Start)
	})
}

func TestBookingService_ContactAccess(t *testing.T) {
	provider := profileModel.Profile{
		ID:       "provider-1",
		FullName: "Dr. Asha Rao",
		Email:    "asha@example.com",
		Mobile:   "+911234567890",
		Active:   true,
		Metadata: gModel.Metadata{},
	}

	successBooking := func(start, end time.Time) model.Booking {
		b := pendingBooking()
		b.Status = model.StatusSuccess
		b.StartAt = start
		b.EndAt = end

		return b
	}

	t.Run("no successful booking", func(t *testing.T) {
		f := newFixture(t)
		f.repo.EXPECT().GetAll(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

		res, err := f.svc.ContactAccess(context.Background(), "user-1", "provider-1")

		assert.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.NotEmpty(t, res.Reason)
		assert.Empty(t, res.Email)
	})

	t.Run("before the grace window opens", func(t *testing.T) {
		f := newFixture(t)

		start := time.Now().Add(30 * time.Minute)
		f.repo.EXPECT().
			GetAll(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]model.Booking{successBooking(start, start.Add(time.Hour))}, nil)

		res, err := f.svc.ContactAccess(context.Background(), "user-1", "provider-1")

		assert.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.NotEmpty(t, res.UnlocksAt)
		assert.Empty(t, res.Email)
	})

	t.Run("inside the grace window", func(t *testing.T) {
		f := newFixture(t)

		start := time.Now().Add(9 * time.Minute)
		f.repo.EXPECT().
			GetAll(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]model.Booking{successBooking(start, start.Add(time.Hour))}, nil)
		f.profiles.EXPECT().Get(gomock.Any(), gomock.Any()).Return(provider, nil)

		res, err := f.svc.ContactAccess(context.Background(), "user-1", "provider-1")

		assert.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, provider.Email, res.Email)
		assert.Equal(t, provider.Mobile, res.Mobile)
		assert.Equal(t, provider.FullName, res.ProfileName)
		assert.NotEmpty(t, res.Until)
	})

	t.Run("after the grace window closes", func(t *testing.T) {
		f := newFixture(t)

		end := time.Now().Add(-10 * time.Minute)
		f.repo.EXPECT().
			GetAll(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]model.Booking{successBooking(end.Add(-time.Hour), end)}, nil)

		res, err := f.svc.ContactAccess(context.Background(), "user-1", "provider-1")

		assert.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Empty(t, res.Email)
	})
}

// One winner: N concurrent reservations for the identical slot must yield
// exactly one success and N-1 conflicts.
func TestBookingService_Reserve_Concurrent(t *testing.T) {
	const n = 8

	f := newFixture(t)
	start, end := futureSlot(t)

	f.profiles.EXPECT().Exist(gomock.Any(), gomock.Any()).Return(true, nil).AnyTimes()
	f.repo.EXPECT().Exist(gomock.Any(), gomock.Any()).Return(false, nil).AnyTimes()
	f.gateway.EXPECT().KeyID().Return("rzp_test_key").AnyTimes()

	var orderSeq atomic.Int64
	f.gateway.EXPECT().
		CreateOrder(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req razorpay.CreateOrderRequest) (razorpay.Order, error) {
			return razorpay.Order{
				ID:               fmt.Sprintf("order_%d", orderSeq.Add(1)),
				AmountMinorUnits: req.AmountMinorUnits,
				Currency:         req.Currency,
			}, nil
		}).
		AnyTimes()

	var won atomic.Bool
	f.repo.EXPECT().
		InsertReserving(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, model.Booking) error {
			if won.CompareAndSwap(false, true) {
				return nil
			}

			return repository.ErrSlotConflict
		}).
		AnyTimes()

	var wg sync.WaitGroup
	var successes, conflicts atomic.Int64

	for i := range n {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_, err := f.svc.Reserve(userContext(fmt.Sprintf("user-%d", i)), dto.ReserveBookingRequest{
				ProviderID: "provider-1",
				Start:      start,
				End:        end,
				Mode:       model.ModeCall,
				Amount:     500,
				Currency:   "INR",
			})

			switch {
			case err == nil:
				successes.Add(1)
			case failure.GetCode(err) == http.StatusConflict:
				conflicts.Add(1)
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, int64(1), successes.Load())
	assert.Equal(t, int64(n-1), conflicts.Load())
}
