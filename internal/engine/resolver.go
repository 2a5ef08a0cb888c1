// internal/engine/resolver.go
package engine

// Missing returns the required fields not yet collected, in asking order.
func Missing(slots Slots) []FieldSpec {
	var out []FieldSpec
	for _, spec := range RequiredFields {
		if !slots.Has(spec.Key) {
			out = append(out, spec)
		}
	}
	return out
}

// MissingDisplayNames returns the display names of missing fields.
func MissingDisplayNames(slots Slots) []string {
	var out []string
	for _, spec := range Missing(slots) {
		out = append(out, spec.Display)
	}
	return out
}

// NextQuestion picks the field to ask about next. lastAskedKey is the
// field the previous assistant turn asked for; when the applicant dodged
// that question and other fields are still open, the head rotates to the
// tail so the conversation moves on instead of repeating itself.
func NextQuestion(slots Slots, lastAskedKey string) (FieldSpec, bool) {
	missing := Missing(slots)
	if len(missing) == 0 {
		return FieldSpec{}, false
	}

	if len(missing) > 1 && lastAskedKey != "" && missing[0].Key == lastAskedKey {
		missing = append(missing[1:], missing[0])
	}

	return missing[0], true
}
