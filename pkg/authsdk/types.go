package authsdk

import "time"

// ============================================================================
// Login authority
// ============================================================================

// PhoneSessionRequest is the body of POST /auth/phone.
type PhoneSessionRequest struct {
	Phone string `json:"phone"`
}

// PhoneSessionResponse is returned by POST /auth/phone.
type PhoneSessionResponse struct {
	// SessionID correlates the Telegram confirmation with the code exchange
	SessionID string `json:"session_id"`

	// TelegramURL is the bot deep link the user opens to receive the code
	TelegramURL string `json:"telegram_url"`
}

// VerifyOTPRequest is the body of POST /auth/verify-otp.
type VerifyOTPRequest struct {
	SessionID string `json:"session_id"`
	OTP       string `json:"otp"`
}

// VerifyOTPResponse is returned by POST /auth/verify-otp.
type VerifyOTPResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ErrorResponse covers the error bodies of both parties. The authority sends
// {message}; GoTrue sends {msg} or {error, error_description}.
type ErrorResponse struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
}

// ============================================================================
// Identity provider
// ============================================================================

// TokenResponse is returned by the identity provider's token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	// ExpiresAt is the absolute expiry in unix seconds, when provided
	ExpiresAt int64 `json:"expires_at,omitempty"`

	User *UserResponse `json:"user,omitempty"`
}

// UserResponse is the identity provider's user record.
type UserResponse struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`

	// UserMetadata is the provider-processed metadata bag
	UserMetadata map[string]any `json:"user_metadata"`

	// RawUserMetaData is the metadata as written by the sign-up source. Only
	// some deployments expose it.
	RawUserMetaData map[string]any `json:"raw_user_meta_data,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateUserRequest is the body of PUT /user.
type UpdateUserRequest struct {
	Data map[string]any `json:"data"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}
