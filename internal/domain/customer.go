package domain

import "strings"

// CustomerInfo is the checkout form. The card number is collected but never
// charged.
type CustomerInfo struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	ZipCode    string `json:"zip_code" validate:"required"`
	CardNumber string `json:"card_number" validate:"required"`
}

func (c *CustomerInfo) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Address = strings.TrimSpace(c.Address)
	c.City = strings.TrimSpace(c.City)
	c.ZipCode = strings.TrimSpace(c.ZipCode)
	c.CardNumber = strings.TrimSpace(c.CardNumber)
}

// Validate checks that every field is non-empty after trimming.
func (c CustomerInfo) Validate() error {
	c.Normalize()
	return validateStruct(c).OrNil()
}
