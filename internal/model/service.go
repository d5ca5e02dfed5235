package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is a billable offering of a clinic.
type Service struct {
	Base
	ClinicID    uuid.UUID       `db:"clinic_id" json:"clinic_id"`
	Name        string          `db:"name" json:"name"`
	DurationMin int             `db:"duration_min" json:"duration_min"`
	BasePrice   decimal.Decimal `db:"base_price" json:"base_price"`
	Active      bool            `db:"active" json:"active"`
}

type CatalogService struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	DurationMin int             `json:"duration_min"`
	BasePrice   decimal.Decimal `json:"base_price"`
}
