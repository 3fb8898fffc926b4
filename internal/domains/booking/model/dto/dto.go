package dto

import (
	"github.com/google/uuid"

	"consult/internal/domains/booking/model"
	"consult/shared"
	"consult/shared/constant"
	gDto "consult/shared/dto"
	gModel "consult/shared/model"
	"consult/shared/timezone"
)

type ReserveBookingRequest struct {
	ProviderID string  `json:"provider_id" validate:"required,uuid"`
	Start      string  `json:"start" validate:"required"`
	End        string  `json:"end" validate:"required"`
	Mode       string  `json:"mode" validate:"required,oneof=chat call"`
	Amount     float64 `json:"amount" validate:"omitempty,gt=0"`
	Currency   string  `json:"currency" validate:"omitempty,len=3"`
}

func (c *ReserveBookingRequest) ToModel(user string, interval model.Interval) model.Booking {
	return model.Booking{
		ID:         uuid.NewString(),
		UserID:     user,
		ProviderID: c.ProviderID,
		Interval:   interval,
		Mode:       c.Mode,
		Amount:     c.Amount,
		Currency:   c.Currency,
		Status:     model.StatusPending,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  user,
			ModifiedBy: user,
		},
	}
}

type VerifyPaymentRequest struct {
	BookingID        string `json:"booking_id" validate:"required,uuid"`
	GatewayOrderID   string `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

type OverrideStatusRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
	Status    string `json:"status" validate:"required,oneof=pending success failed cancelled"`
}

type BookingResponse struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	ProviderID string  `json:"provider_id"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Mode       string  `json:"mode"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	Status     string  `json:"status"`
	PayGateway string  `json:"pay_gateway"`
	PayOrderID string  `json:"pay_order_id"`
	gDto.Metadata
}

func (r *BookingResponse) FromModel(mod model.Booking) {
	r.ID = mod.ID
	r.UserID = mod.UserID
	r.ProviderID = mod.ProviderID
	r.Start = timezone.Format(mod.StartAt, constant.DateFormat)
	r.End = timezone.Format(mod.EndAt, constant.DateFormat)
	r.Mode = mod.Mode
	r.Amount = mod.Amount
	r.Currency = mod.Currency
	r.Status = mod.Status
	r.PayGateway = mod.PayGateway
	r.PayOrderID = mod.PayOrderID
	r.Metadata.FromModel(mod.Metadata)
}

// GatewayOrderResponse carries what the client needs to open the gateway's
// checkout for the pending booking.
type GatewayOrderResponse struct {
	KeyID    string `json:"key_id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type ReserveResponse struct {
	Booking      BookingResponse      `json:"booking"`
	GatewayOrder GatewayOrderResponse `json:"gateway_order"`
}

// SlotResponse exposes only occupancy, never who holds the slot.
type SlotResponse struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Status string `json:"status"`
}

func (r *SlotResponse) FromModel(mod model.Booking) {
	r.Start = timezone.Format(mod.StartAt, constant.DateFormat)
	r.End = timezone.Format(mod.EndAt, constant.DateFormat)
	r.Status = mod.Status
}

type GetSlotsResponse struct {
	Slots []SlotResponse `json:"slots"`
}

func (r *GetSlotsResponse) FromModels(models []model.Booking) {
	r.Slots = make([]SlotResponse, len(models))
	for i, mod := range models {
		r.Slots[i].FromModel(mod)
	}
}

type ContactAccessResponse struct {
	Allowed     bool   `json:"allowed"`
	Reason      string `json:"reason,omitempty"`
	UnlocksAt   string `json:"unlocks_at,omitempty"`
	StartsAt    string `json:"starts_at,omitempty"`
	EndsAt      string `json:"ends_at,omitempty"`
	ProfileName string `json:"profile_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Mobile      string `json:"mobile,omitempty"`
	Until       string `json:"until,omitempty"`
}

type GetBookingsResponse struct {
	Bookings  []BookingResponse `json:"bookings"`
	TotalPage int               `json:"total_page"`
	TotalData int               `json:"total_data"`
}

func (r *GetBookingsResponse) FromModels(models []model.Booking, totalData, limit int) {
	r.TotalData = totalData
	r.TotalPage = shared.CalculateTotalPage(totalData, limit)

	r.Bookings = make([]BookingResponse, len(models))
	for i, mod := range models {
		r.Bookings[i].FromModel(mod)
	}
}
