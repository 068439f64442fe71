package schema

// LintResult reports the outcome of checking one field value against its
// declared validator predicates.
type LintResult struct {
	OK        bool
	Validator string
	Message   string
}

// Lint runs the field's validators in declaration order against a single
// value and returns the first failure's message, or success. It backs
// incremental per-field checks without a full submission.
func Lint(spec FieldSpec, value any) LintResult {
	for _, validator := range spec.Validators {
		if validator.Check == nil {
			continue
		}
		if err := validator.Check(value); err != nil {
			message := validator.Message
			if message == "" {
				message = err.Error()
			}
			return LintResult{OK: false, Validator: validator.Name, Message: message}
		}
	}
	return LintResult{OK: true}
}
