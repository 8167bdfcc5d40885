package types

// SuccessEnvelope is the standard success payload wrapper.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError carries the public error body.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope is the standard error payload wrapper.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
