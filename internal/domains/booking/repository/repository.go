package repository

//go:generate go run go.uber.org/mock/mockgen -source=./repository.go -destination=../mocks/repository_mock.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/lib/pq"

	"consult/infras/otel"
	"consult/infras/postgres"
	"consult/internal/domains/booking/model"
	"consult/shared/constant"
	gDto "consult/shared/dto"
	"consult/shared/logger"
	gRepo "consult/shared/repository"
)

// ErrSlotConflict signals that another active booking occupies the requested
// interval. It surfaces both from the locked re-check and from the exclusion
// constraint on the bookings table.
var ErrSlotConflict = errors.New("slot conflicts with an active booking")

// ErrStaleStatus signals that the booking's status changed between read and
// write, so the guarded update matched no row.
var ErrStaleStatus = errors.New("booking status changed since it was read")

type Booking interface {
	Insert(ctx context.Context, model model.Booking) error
	InsertReserving(ctx context.Context, model model.Booking) error
	Get(ctx context.Context, filter gDto.FilterGroup, columns ...string) (model.Booking, error)
	GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup, columns ...string) ([]model.Booking, error)
	Exist(ctx context.Context, filter gDto.FilterGroup) (bool, error)
	Count(ctx context.Context, filter gDto.FilterGroup) (int, error)
	Update(ctx context.Context, req map[string]any, filter gDto.FilterGroup) error
	UpdateStatus(ctx context.Context, req map[string]any, bookingID, fromStatus string) error
}

type repositoryImpl struct {
	gRepo.Repository[model.Booking]
	db   *postgres.Connection
	otel otel.Otel
}

func New(db *postgres.Connection, otel otel.Otel) Booking {
	return &repositoryImpl{
		Repository: gRepo.NewRepository[model.Booking](model.EntityName, model.TableName, model.FieldID, db, otel),
		db:         db,
		otel:       otel,
	}
}

// OverlapFilter matches active bookings of a provider whose interval
// intersects the given one under the half-open rule.
func OverlapFilter(providerID string, interval model.Interval) gDto.FilterGroup {
	return gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters: []any{
			gDto.Filter{
				Field:    model.FieldProviderID,
				Operator: gDto.FilterOperatorEq,
				Value:    providerID,
			},
			gDto.Filter{
				Field:    model.FieldStatus,
				Operator: gDto.FilterOperatorIn,
				Value:    model.ActiveStatuses,
			},
			gDto.Filter{
				ArgName:  "overlap_end",
				Field:    model.FieldStartAt,
				Operator: gDto.FilterOperatorLess,
				Value:    interval.EndAt,
			},
			gDto.Filter{
				ArgName:  "overlap_start",
				Field:    model.FieldEndAt,
				Operator: gDto.FilterOperatorGreater,
				Value:    interval.StartAt,
			},
		},
	}
}

// InsertReserving inserts a pending booking after re-checking, inside the same
// transaction and with the conflicting rows locked, that no active booking
// overlaps the interval. The exclusion constraint on bookings backstops the
// check for rows inserted concurrently; constraint violations surface as
// ErrSlotConflict.
func (repo *repositoryImpl) InsertReserving(ctx context.Context, booking model.Booking) error {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, "repository.booking.InsertReserving")
	defer scope.End()

	tx, err := repo.db.Write.BeginTxx(ctx, nil)
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return fmt.Errorf("failed to begin reservation transaction: %w", err)
	}

	locked, err := repo.GetAllTx(ctx, tx, OverlapFilter(booking.ProviderID, booking.Interval))
	if err != nil {
		_ = tx.Rollback()

		return err
	}

	if len(locked) > 0 {
		_ = tx.Rollback()

		return ErrSlotConflict
	}

	if err = repo.InsertTx(ctx, tx, booking); err != nil {
		_ = tx.Rollback()

		if isConflictError(err) {
			return ErrSlotConflict
		}

		return err
	}

	if err = tx.Commit(); err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		if isConflictError(err) {
			return ErrSlotConflict
		}

		return fmt.Errorf("failed to commit reservation: %w", err)
	}

	return nil
}

// UpdateStatus applies the mutation only while the booking still holds the
// expected status, so two racing settlements cannot both win. A write that
// matches no row surfaces as ErrStaleStatus.
func (repo *repositoryImpl) UpdateStatus(ctx context.Context, mod map[string]any, bookingID, fromStatus string) error {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, "repository.booking.UpdateStatus")
	defer scope.End()

	updateField := make([]string, 0, len(mod))
	for col := range maps.Keys(mod) {
		updateField = append(updateField, fmt.Sprintf("%s = :%s", col, col))
	}

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = :cond_id AND %s = :cond_status",
		model.TableName, strings.Join(updateField, ", "), model.FieldID, model.FieldStatus,
	)
	scope.SetAttribute(constant.OtelQueryAttributeKey, query)

	args := map[string]any{
		"cond_id":     bookingID,
		"cond_status": fromStatus,
	}
	maps.Copy(args, mod)

	result, err := repo.db.Write.NamedExecContext(ctx, query, args)
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return fmt.Errorf("failed to update booking status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return ErrStaleStatus
	}

	return nil
}

func isConflictError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	switch string(pqErr.Code) {
	case constant.PqErrorCodeUniqueViolation,
		constant.PqErrorCodeExclusionViolation,
		constant.PqErrorCodeSerializeFailure:
		return true
	}

	return false
}
