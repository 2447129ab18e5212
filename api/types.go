package api

type otpRequest struct {
	Email string `json:"email"`
}

type otpVerification struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// RequestOTPResponse is the optional body of a successful OTP request.
type RequestOTPResponse struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

// Rejected reports whether the backend answered 2xx but explicitly said success=false.
func (r *RequestOTPResponse) Rejected() bool {
	return r != nil && r.Success != nil && !*r.Success
}

// VerifyOTPResponse carries the issued bearer token.
type VerifyOTPResponse struct {
	Token string `json:"token"`
	Email string `json:"email,omitempty"`
}
