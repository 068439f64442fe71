package schema

// Registry holds every known form schema for the process lifetime. It is
// built once at startup and passed by handle to the components that need it,
// so tests can construct isolated registries from fixtures.
type Registry struct {
	forms map[string]FormSchema
	order []string
}

// NewRegistry validates the provided schemas and builds an immutable
// registry. Duplicate form names, empty names, or duplicate field names
// within a form are SchemaErrors.
func NewRegistry(schemas ...FormSchema) (*Registry, error) {
	registry := &Registry{forms: make(map[string]FormSchema, len(schemas))}
	for _, form := range schemas {
		if form.Name == "" {
			return nil, &SchemaError{Form: form.Name, Reason: "form name is required"}
		}
		if _, exists := registry.forms[form.Name]; exists {
			return nil, &SchemaError{Form: form.Name, Reason: "duplicate form name"}
		}
		seen := make(map[string]struct{}, len(form.Fields))
		for _, spec := range form.Fields {
			if spec.Name == "" {
				return nil, &SchemaError{Form: form.Name, Reason: "field name is required"}
			}
			if _, duplicate := seen[spec.Name]; duplicate {
				return nil, &SchemaError{Form: form.Name, Field: spec.Name, Reason: "duplicate field name"}
			}
			seen[spec.Name] = struct{}{}
		}
		registry.forms[form.Name] = form
		registry.order = append(registry.order, form.Name)
	}
	return registry, nil
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (FormSchema, bool) {
	form, ok := r.forms[name]
	return form, ok
}

// Names lists registered form names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
