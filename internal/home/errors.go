package home

// ValidationError is returned when a command argument falls outside its
// domain. The device table is left untouched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
