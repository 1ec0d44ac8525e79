package schema

// String declares an optional string parameter.
func String(name, description string) Parameter {
	return Parameter{Name: name, Type: TypeString, Description: description}
}

// StringRequired declares a required string parameter.
func StringRequired(name, description string) Parameter {
	p := String(name, description)
	p.Required = true
	return p
}

// Number declares an optional number parameter bounded by minVal and maxVal.
func Number(name, description string, minVal, maxVal float64) Parameter {
	return Parameter{
		Name:        name,
		Type:        TypeNumber,
		Description: description,
		Minimum:     &minVal,
		Maximum:     &maxVal,
	}
}

// NumberRequired declares a required number parameter bounded by minVal and maxVal.
func NumberRequired(name, description string, minVal, maxVal float64) Parameter {
	p := Number(name, description, minVal, maxVal)
	p.Required = true
	return p
}

// Integer declares an optional integer parameter bounded by minVal and maxVal.
func Integer(name, description string, minVal, maxVal float64) Parameter {
	p := Number(name, description, minVal, maxVal)
	p.Type = TypeInteger
	return p
}

// IntegerRequired declares a required integer parameter bounded by minVal and maxVal.
func IntegerRequired(name, description string, minVal, maxVal float64) Parameter {
	p := Integer(name, description, minVal, maxVal)
	p.Required = true
	return p
}

// Boolean declares an optional boolean parameter.
func Boolean(name, description string) Parameter {
	return Parameter{Name: name, Type: TypeBoolean, Description: description}
}

// BooleanRequired declares a required boolean parameter.
func BooleanRequired(name, description string) Parameter {
	p := Boolean(name, description)
	p.Required = true
	return p
}

// WithLength sets string length bounds. A negative value leaves that bound unset.
func (p Parameter) WithLength(minLen, maxLen int) Parameter {
	if minLen >= 0 {
		p.MinLength = &minLen
	}
	if maxLen >= 0 {
		p.MaxLength = &maxLen
	}
	return p
}

// WithPattern sets a regular expression the string value must match.
func (p Parameter) WithPattern(pattern string) Parameter {
	p.Pattern = pattern
	return p
}

// WithEnum restricts the parameter to the given literal values.
func (p Parameter) WithEnum(values ...string) Parameter {
	p.Enum = append([]string(nil), values...)
	return p
}

// WithoutMinimum drops the lower bound.
func (p Parameter) WithoutMinimum() Parameter {
	p.Minimum = nil
	return p
}

// WithoutMaximum drops the upper bound.
func (p Parameter) WithoutMaximum() Parameter {
	p.Maximum = nil
	return p
}
