package helpers

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/farellandr/ridehail/internal/models"
)

func TestReceiptSignatureRoundTrip(t *testing.T) {
	signer := NewReceiptSigner("receipt-secret")
	ride := &models.Ride{ID: uuid.New(), UserID: "user_2abc", FarePrice: 2500}

	data := signer.ReceiptData(ride)

	id, err := ExtractRideID(data)
	if err != nil {
		t.Fatalf("ExtractRideID: %v", err)
	}
	if id != ride.ID {
		t.Fatalf("expected %s, got %s", ride.ID, id)
	}
	if !signer.Verify(ride, data) {
		t.Fatal("expected signature to verify")
	}
}

func TestReceiptSignatureRejectsTampering(t *testing.T) {
	signer := NewReceiptSigner("receipt-secret")
	ride := &models.Ride{ID: uuid.New(), UserID: "user_2abc", FarePrice: 2500}
	data := signer.ReceiptData(ride)

	tampered := *ride
	tampered.FarePrice = 100
	if signer.Verify(&tampered, data) {
		t.Fatal("expected changed fare to fail verification")
	}
	if NewReceiptSigner("other").Verify(ride, data) {
		t.Fatal("expected other key to fail verification")
	}
	if signer.Verify(ride, strings.TrimSuffix(data, data[len(data)-4:])) {
		t.Fatal("expected truncated signature to fail verification")
	}
}

func TestExtractRideIDRejectsMalformed(t *testing.T) {
	for _, data := range []string{"", "ride:abc", "purchase:x;user:y;fare:1;signature:z", "ride:not-a-uuid;user:y;fare:1;signature:z"} {
		if _, err := ExtractRideID(data); err == nil {
			t.Fatalf("expected error for %q", data)
		}
	}
}
