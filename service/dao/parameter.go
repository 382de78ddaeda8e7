package dao

// Parameter narrows a List call. A single value is stored as a string,
// several as a []string.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter creates a list parameter.
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
