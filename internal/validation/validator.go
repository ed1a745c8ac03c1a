package validation

// Validator checks automation configurations before they are parsed.
// Uses JSON Schema Draft 2020-12 for structural validation.
type Validator interface {
	ValidateConfig(config any) error
}
