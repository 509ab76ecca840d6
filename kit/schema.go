package kit

// ObjectSchema builds the JSON Schema of a tool taking one object argument.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// Prop is a schema property of the given JSON type.
func Prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}
