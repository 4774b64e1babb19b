package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// register struct-level validation for CreateQuoteRequest to reject
	// empty item maps, which would otherwise normalize to "{}".
	v.RegisterStructValidation(createQuoteStructValidation, CreateQuoteRequest{})

	return v
}

func createQuoteStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateQuoteRequest)

	for _, item := range req.Items {
		if len(item) == 0 {
			sl.ReportError(req.Items, "items", "Items", "item_not_empty", "")
			return
		}
	}
}
