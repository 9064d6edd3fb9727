package model

import "time"

type RegistrationStatus string

const (
	RegistrationStatusActive    RegistrationStatus = "active"
	RegistrationStatusCompleted RegistrationStatus = "completed"
	RegistrationStatusRevoked   RegistrationStatus = "revoked"
)

// Registration is the durable proof that a customer has been granted course
// access. At most one exists per customer.
type Registration struct {
	ID             string
	CustomerID     string
	CodeID         *string // access code redeemed to create this registration
	Status         RegistrationStatus
	RegisteredAt   time.Time
	CertificateRef *string // set once the customer earns a certificate
}

func NewRegistration(id, customerID string, codeID *string, now time.Time) *Registration {
	return &Registration{
		ID:           id,
		CustomerID:   customerID,
		CodeID:       codeID,
		Status:       RegistrationStatusActive,
		RegisteredAt: now,
	}
}
