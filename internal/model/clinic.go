package model

import "github.com/google/uuid"

type Clinic struct {
	Base
	Name    string `db:"name" json:"name"`
	Phone   string `db:"phone" json:"phone"`
	Address string `db:"address" json:"address"`
	Active  bool   `db:"active" json:"active"`
}

// Branch is a physical location of a clinic.
type Branch struct {
	Base
	ClinicID uuid.UUID `db:"clinic_id" json:"clinic_id"`
	Name     string    `db:"name" json:"name"`
	Address  string    `db:"address" json:"address"`
	Active   bool      `db:"active" json:"active"`
}

// PublicCatalog is what an anonymous visitor needs to book.
type PublicCatalog struct {
	ClinicID uuid.UUID        `json:"clinic_id"`
	Branches []CatalogBranch  `json:"branches"`
	Services []CatalogService `json:"services"`
}

type CatalogBranch struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"address"`
}
