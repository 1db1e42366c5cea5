package products

import "testing"

func validInput() ProductInput {
	return ProductInput{
		Name:     "Widget",
		Price:    9.99,
		Quantity: 3,
		Category: "electronics",
	}
}

func TestValidateOK(t *testing.T) {
	in := validInput()
	if errs := in.Validate(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestValidateTrimsAndLowercases(t *testing.T) {
	in := validInput()
	in.Name = "  Widget  "
	in.Category = " Electronics "
	if errs := in.Validate(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if in.Name != "Widget" || in.Category != "electronics" {
		t.Fatalf("normalized input = %+v", in)
	}
}

func TestValidateRequiredName(t *testing.T) {
	in := validInput()
	in.Name = "   "
	errs := in.Validate()
	if len(errs) != 1 || errs[0].Field != "name" {
		t.Fatalf("errs = %v", errs)
	}
}

func TestValidateLimits(t *testing.T) {
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	in := validInput()
	in.Name = string(long)
	in.Price = -1
	in.Quantity = -2
	in.Category = "furniture"

	errs := in.Validate()
	if len(errs) != 4 {
		t.Fatalf("want 4 errors, got %v", errs)
	}
}

func TestValidateDefaultsCategory(t *testing.T) {
	in := validInput()
	in.Category = ""
	if errs := in.Validate(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if in.Category != "other" {
		t.Fatalf("Category = %q", in.Category)
	}
}
