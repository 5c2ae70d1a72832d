package internal

import (
	"net/http"

	"forwarder/internal/controllers"
	"forwarder/internal/providers"
)

func InitRoutes(apiController *controllers.ApiController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/events", http.HandlerFunc(apiController.ReceiveEvent))
	routers.Get("/relays", http.HandlerFunc(apiController.GetRelay))
	return routers
}
