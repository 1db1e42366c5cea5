package products

import (
	"strings"
	"time"
)

const (
	maxNameLen        = 255
	maxDescriptionLen = 1000
)

var categories = map[string]bool{
	"electronics": true,
	"clothing":    true,
	"books":       true,
	"home":        true,
	"sports":      true,
	"other":       true,
}

type Product struct {
	ID          string    `json:"productId"`
	SellerID    string    `json:"sellerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ProductInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Category    string  `json:"category"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate normalizes the input in place and returns every field problem at
// once so the API can report them in a single response.
func (in *ProductInput) Validate() []FieldError {
	var errs []FieldError

	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))

	if in.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "is required"})
	} else if len(in.Name) > maxNameLen {
		errs = append(errs, FieldError{Field: "name", Message: "must be at most 255 characters"})
	}
	if len(in.Description) > maxDescriptionLen {
		errs = append(errs, FieldError{Field: "description", Message: "must be at most 1000 characters"})
	}
	if in.Price < 0 {
		errs = append(errs, FieldError{Field: "price", Message: "must be >= 0"})
	}
	if in.Quantity < 0 {
		errs = append(errs, FieldError{Field: "quantity", Message: "must be >= 0"})
	}
	if in.Category == "" {
		in.Category = "other"
	} else if !categories[in.Category] {
		errs = append(errs, FieldError{Field: "category", Message: "must be one of electronics, clothing, books, home, sports, other"})
	}

	return errs
}
