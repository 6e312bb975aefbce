package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/farellandr/ridehail/internal/events"
	"github.com/farellandr/ridehail/internal/helpers"
	"github.com/farellandr/ridehail/internal/payments"
	"github.com/farellandr/ridehail/internal/store"
)

const (
	repositoriesKey   = "repositories"
	paymentGatewayKey = "payment_gateway"
	publisherKey      = "event_publisher"
)

func DatabaseMiddleware(repos *store.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(repositoriesKey, repos)
		c.Next()
	}
}

func GetRepositories(c *gin.Context) *store.Repositories {
	repos, exists := c.Get(repositoriesKey)
	if !exists {
		return nil
	}
	r, _ := repos.(*store.Repositories)
	return r
}

func PaymentsMiddleware(gateway payments.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(paymentGatewayKey, gateway)
		c.Next()
	}
}

func GetPaymentGateway(c *gin.Context) payments.Gateway {
	gateway, exists := c.Get(paymentGatewayKey)
	if !exists {
		return nil
	}
	g, _ := gateway.(payments.Gateway)
	return g
}

func EventsMiddleware(publisher events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(publisherKey, publisher)
		c.Next()
	}
}

// GetPublisher falls back to a log-only publisher so handlers can always publish.
func GetPublisher(c *gin.Context) events.Publisher {
	publisher, exists := c.Get(publisherKey)
	if p, ok := publisher.(events.Publisher); exists && ok {
		return p
	}
	return events.NewFallbackProducer(nil)
}

const rideOptionsKey = "ride_options"

// RideOptions carries the ride endpoints' settings.
type RideOptions struct {
	VerifyPayments bool
	ReceiptSigner  *helpers.ReceiptSigner
}

func RideOptionsMiddleware(opts RideOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(rideOptionsKey, opts)
		c.Next()
	}
}

func GetRideOptions(c *gin.Context) RideOptions {
	opts, exists := c.Get(rideOptionsKey)
	if !exists {
		return RideOptions{}
	}
	o, _ := opts.(RideOptions)
	return o
}
