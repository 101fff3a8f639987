package errors

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Display       string         `json:"message"`
	InternalError string         `json:"internal_error,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// NewErrorResponse builds the standard error envelope from an error
func NewErrorResponse(err error) ErrorResponse {
	display := err.Error()
	if ie, ok := err.(*InternalError); ok {
		display = ie.DisplayError()
	}
	return ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Display:       display,
			InternalError: err.Error(),
		},
	}
}
