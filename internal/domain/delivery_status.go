package domain

import (
	"fmt"
	"strings"
)

// DeliveryStatus is the stage of a delivery or of one of its items.
type DeliveryStatus string

const (
	DeliveryPending      DeliveryStatus = "PENDING"
	DeliveryDevelopment  DeliveryStatus = "DEVELOPMENT"
	DeliveryDelivered    DeliveryStatus = "DELIVERED"
	DeliveryHomologation DeliveryStatus = "HOMOLOGATION"
	DeliveryApproved     DeliveryStatus = "APPROVED"
	DeliveryRejected     DeliveryStatus = "REJECTED"
	DeliveryProduction   DeliveryStatus = "PRODUCTION"
)

// DeliveryStatuses lists every status in workflow order.
var DeliveryStatuses = []DeliveryStatus{
	DeliveryPending,
	DeliveryDevelopment,
	DeliveryDelivered,
	DeliveryHomologation,
	DeliveryApproved,
	DeliveryRejected,
	DeliveryProduction,
}

// NewDeliveryStatus parses a status case-insensitively.
func NewDeliveryStatus(value string) (DeliveryStatus, error) {
	s := DeliveryStatus(strings.ToUpper(strings.TrimSpace(value)))
	if err := s.Validate(); err != nil {
		return "", err
	}
	return s, nil
}

// Validate checks the status is one of DeliveryStatuses.
func (s DeliveryStatus) Validate() error {
	for _, known := range DeliveryStatuses {
		if s == known {
			return nil
		}
	}
	return fmt.Errorf("invalid delivery status %q: must be one of %s", string(s), joinStatuses())
}

func (s DeliveryStatus) String() string {
	return string(s)
}

// Completed reports whether the work has left development for good:
// delivered, approved or in production.
func (s DeliveryStatus) Completed() bool {
	switch s {
	case DeliveryDelivered, DeliveryApproved, DeliveryProduction:
		return true
	}
	return false
}

func joinStatuses() string {
	names := make([]string, len(DeliveryStatuses))
	for i, s := range DeliveryStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
