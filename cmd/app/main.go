// @title Consult Booking API
// @version 1.0
// @description Slot booking and payment reconciliation service.
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"consult/config"
	"consult/di"
	"consult/shared/logger"
)

func main() {
	cfg := config.Get()

	logger.InitLogger()

	logger.SetLogLevel(cfg)

	http := di.InitializeService()
	http.Serve()
}
