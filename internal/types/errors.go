package types

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// NewErrorResponseFromError uses err's text as details, or nothing when nil.
func NewErrorResponseFromError(code, message string, err error) ErrorResponse {
	var details any
	if err != nil {
		details = err.Error()
	}
	return NewErrorResponse(code, message, details)
}
