package dto

// ErrorResponse is the body of every failed request.
// The top-level "error" key keeps the payload shape POS clients already parse.
type ErrorResponse struct {
	Error     string             `json:"error"`
	Code      string             `json:"code,omitempty"`
	RequestID string             `json:"request_id,omitempty"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail describes one invalid field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag,omitempty"`
}

// MessageResponse carries a bare message, e.g. empty weekly reports and empty category lists
type MessageResponse struct {
	Message string `json:"message"`
}

// NewErrorResponse creates an error response, normalizing domain codes
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: message,
		Code:  NormalizeErrorCode(code),
	}
}

// NewErrorResponseWithRequestID creates an error response tagged with the request ID
func NewErrorResponseWithRequestID(code, message, requestID string) ErrorResponse {
	resp := NewErrorResponse(code, message)
	resp.RequestID = requestID
	return resp
}

// NewValidationErrorResponse creates a validation error response with field details
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) ErrorResponse {
	return ErrorResponse{
		Error:     message,
		Code:      ErrCodeValidation,
		RequestID: requestID,
		Details:   details,
	}
}
