package authsdk

import (
	"context"
	"net/http"

	"github.com/medportal/phoneauth/pkg/otpflow"
)

var _ otpflow.Authority = (*SDKClient)(nil)

// RequestPhoneSession asks the authority to mint a verification session for
// phone. The response carries the Telegram deep link the user must open.
func (c *SDKClient) RequestPhoneSession(ctx context.Context, phone string) (*PhoneSessionResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, c.BaseURL+"/auth/phone",
		PhoneSessionRequest{Phone: phone}, c.authorityHeaders())
	if err != nil {
		return nil, err
	}

	var out PhoneSessionResponse
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyOTP exchanges the code delivered by the bot for a token pair.
func (c *SDKClient) VerifyOTP(ctx context.Context, sessionID, otp string) (*VerifyOTPResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, c.BaseURL+"/auth/verify-otp",
		VerifyOTPRequest{SessionID: sessionID, OTP: otp}, c.authorityHeaders())
	if err != nil {
		return nil, err
	}

	var out VerifyOTPResponse
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestSession implements otpflow.Authority.
func (c *SDKClient) RequestSession(ctx context.Context, phone string) (otpflow.IssuedSession, error) {
	out, err := c.RequestPhoneSession(ctx, phone)
	if err != nil {
		return otpflow.IssuedSession{}, err
	}
	return otpflow.IssuedSession{SessionID: out.SessionID, DeepLink: out.TelegramURL}, nil
}

// VerifyCode implements otpflow.Authority.
func (c *SDKClient) VerifyCode(ctx context.Context, sessionID, code string) (otpflow.TokenPair, error) {
	out, err := c.VerifyOTP(ctx, sessionID, code)
	if err != nil {
		return otpflow.TokenPair{}, err
	}
	return otpflow.TokenPair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}, nil
}
