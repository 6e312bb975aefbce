package helpers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/farellandr/ridehail/internal/models"
)

// ReceiptSigner signs the ride reference embedded in receipt QR codes.
type ReceiptSigner struct {
	secretKey []byte
}

func NewReceiptSigner(secretKey string) *ReceiptSigner {
	return &ReceiptSigner{secretKey: []byte(secretKey)}
}

func (s *ReceiptSigner) GenerateSignature(rideID uuid.UUID, userID string, farePrice int64) string {
	data := fmt.Sprintf("%s:%s:%d", rideID.String(), userID, farePrice)
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// ReceiptData is the text encoded in a ride receipt QR code.
func (s *ReceiptSigner) ReceiptData(ride *models.Ride) string {
	return fmt.Sprintf("ride:%s;user:%s;fare:%d;signature:%s",
		ride.ID.String(),
		ride.UserID,
		ride.FarePrice,
		s.GenerateSignature(ride.ID, ride.UserID, ride.FarePrice),
	)
}

func ExtractRideID(data string) (uuid.UUID, error) {
	parts := strings.Split(data, ";")
	if len(parts) != 4 || !strings.HasPrefix(parts[0], "ride:") || !strings.HasPrefix(parts[3], "signature:") {
		return uuid.Nil, fmt.Errorf("invalid receipt data format")
	}
	return uuid.Parse(strings.TrimPrefix(parts[0], "ride:"))
}

// Verify reports whether data was produced by ReceiptData for ride.
func (s *ReceiptSigner) Verify(ride *models.Ride, data string) bool {
	parts := strings.Split(data, ";")
	if len(parts) != 4 || !strings.HasPrefix(parts[3], "signature:") {
		return false
	}
	signature := strings.TrimPrefix(parts[3], "signature:")
	expected := s.GenerateSignature(ride.ID, ride.UserID, ride.FarePrice)
	return hmac.Equal([]byte(expected), []byte(signature))
}
