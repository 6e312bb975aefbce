package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/farellandr/ridehail/internal/helpers"
	"github.com/farellandr/ridehail/internal/middleware"
	"github.com/farellandr/ridehail/internal/models"
)

// GetRideReceipt renders a PNG QR code carrying the signed ride reference.
func GetRideReceipt(c *gin.Context) {
	ride, ok := loadRide(c)
	if !ok {
		return
	}

	if ride.PaymentStatus != models.PaymentStatusPaid {
		helpers.RespondWithError(c, http.StatusPaymentRequired, "Ride has not been paid")
		return
	}

	signer := middleware.GetRideOptions(c).ReceiptSigner
	if signer == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Receipt signing is not configured.")
		return
	}

	qrImage, err := qrcode.Encode(signer.ReceiptData(ride), qrcode.Medium, 256)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	c.Data(http.StatusOK, "image/png", qrImage)
}
