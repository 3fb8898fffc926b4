//go:build wireinject
// +build wireinject

package di

import (
	"consult/config"
	"consult/infras/jwt"
	"consult/infras/kafka"
	"consult/infras/otel"
	"consult/infras/postgres"
	"consult/infras/razorpay"
	"consult/infras/redis"
	"consult/permissions"
	"consult/shared/cache"
	"consult/transport/http"
	"consult/transport/http/middleware"
	"consult/transport/http/router"

	bookingRepository "consult/internal/domains/booking/repository"
	bookingService "consult/internal/domains/booking/service"
	profileRepository "consult/internal/domains/profile/repository"
	bookingHandler "consult/internal/handlers/booking"

	"github.com/google/wire"
)

var configurations = wire.NewSet(
	config.Get,
)

var infrastructures = wire.NewSet(
	postgres.New,
	otel.New,
	redis.New,
	jwt.New,
	kafka.New,
	razorpay.New,
)

var middlewares = wire.NewSet(
	permissions.Get,
	middleware.NewAppMiddleware,
	middleware.NewAuthRoleMiddleware,
)

var sharedHelpers = wire.NewSet(
	cache.NewRedisCache,
)

var bookingDomain = wire.NewSet(
	profileRepository.New,
	bookingRepository.New,
	bookingService.New,
)

var routing = wire.NewSet(
	wire.Struct(new(router.DomainHandlers), "*"),
	bookingHandler.New,
	router.New,
)

func InitializeService() *http.HTTP {
	wire.Build(
		configurations,
		infrastructures,
		middlewares,
		sharedHelpers,
		bookingDomain,
		routing,
		http.New,
	)

	return &http.HTTP{}
}
