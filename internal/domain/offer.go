package domain

import (
	"math"
	"strings"
)

// DefaultCurrency is the currency assumed for offers and requests that do
// not declare one.
const DefaultCurrency = "EUR"

// Offer is a single supplier listing as returned by a catalog search.
// Offers are immutable inputs: the pipeline never mutates them and every
// Candidate carries its own copy.
type Offer struct {
	// SKU identifies the product within the vendor's catalog.
	SKU string `json:"sku" yaml:"sku"`

	// Vendor is the supplier name as presented to the buyer.
	Vendor string `json:"vendor" yaml:"vendor"`

	// Name is the product name.
	Name string `json:"name" yaml:"name"`

	// SpecText is the free-text technical specification. An empty or
	// whitespace-only value is treated as a missing specification.
	SpecText string `json:"spec_text" yaml:"spec_text"`

	// Unit is the unit the pack size is expressed in (mL, µL, L, kit, ...).
	Unit string `json:"unit" yaml:"unit"`

	// PackSize is the quantity of Unit in one pack.
	PackSize float64 `json:"pack_size" yaml:"pack_size"`

	// Price is the pack price in Currency. Never negative.
	Price float64 `json:"price" yaml:"price"`

	// Currency is the ISO code of Price.
	Currency string `json:"currency" yaml:"currency"`

	// Stock is the number of packs the vendor reports in stock.
	Stock int `json:"stock" yaml:"stock"`

	// ETADays is the estimated delivery time in days.
	ETADays int `json:"eta_days" yaml:"eta_days"`
}

// Validate rejects offers with a negative or non-finite price, negative
// stock, or no SKU. It returns nil or a *ValidationError listing every
// problem found.
func (o Offer) Validate() error {
	verr := NewValidationError("offer " + o.SKU)
	if strings.TrimSpace(o.SKU) == "" {
		verr.AddError("sku is required")
	}
	switch {
	case math.IsNaN(o.Price) || math.IsInf(o.Price, 0):
		verr.AddError("price must be a finite number")
	case o.Price < 0:
		verr.AddError("price cannot be negative")
	}
	if o.Stock < 0 {
		verr.AddError("stock cannot be negative")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// HasSpec reports whether the offer carries a non-blank specification.
func (o Offer) HasSpec() bool { return strings.TrimSpace(o.SpecText) != "" }
