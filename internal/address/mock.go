package address

import "context"

// MockValidator is a test implementation of Validator.
type MockValidator struct {
	ValidateFunc func(ctx context.Context, addr Address) (*ValidationResult, error)
}

// Validate delegates to ValidateFunc, or accepts the address unchanged.
func (m *MockValidator) Validate(ctx context.Context, addr Address) (*ValidationResult, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, addr)
	}
	return &ValidationResult{IsValid: true, NormalizedAddress: &addr}, nil
}
