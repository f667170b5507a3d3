/*
Package authsdk provides the client side of a phone + Telegram login.

# Overview

Two remote parties are involved. The login authority mints verification
sessions and exchanges one-time codes for tokens; the identity provider
(a GoTrue-compatible service) owns the resulting user session. SDKClient
talks to both and implements otpflow.Authority. Provider wraps the identity
side and implements otpflow.IdentityProvider.

# SDKClient vs Session vs Provider

  - SDKClient: stateless calls to both parties
  - Session: one token pair with automatic refresh before expiry
  - Provider: the single process-wide session, optionally persisted in a
    SessionCache so a later run can resume it

Requesting and verifying a code:

	client := authsdk.NewSDKClient("https://api.example.com", "https://id.example.com/auth/v1")

	issued, err := client.RequestSession(ctx, "+998901234567")
	// show issued.DeepLink to the user, collect the code
	tokens, err := client.VerifyCode(ctx, issued.SessionID, "483920")

Installing the tokens:

	provider := authsdk.NewProvider(client, cache)
	if err := provider.SetSession(ctx, tokens); err != nil {
		return err
	}
	user, err := provider.CurrentUser(ctx)

Resuming on a later run:

	user, err := provider.Resume(ctx)
	if errors.Is(err, authsdk.ErrNoSession) {
		// start a new login
	}

# Token Refresh

Session expiry is read from the access token's exp claim (without signature
verification) minus a 30 second buffer. Session methods refresh
transparently once that point has passed. Tokens without an exp claim are
never refreshed automatically; call Provider.RefreshSession to force one.

# Error Handling

Non-success responses from either party are returned as *APIError, which
carries the status and the server's message. A success response whose body
cannot be decoded is returned as *DecodeError. Both satisfy
otpflow.ServerError so the login flow can tell a rejected code apart from a
dropped connection.

	if authsdk.IsUnauthorized(err) {
		// session revoked, sign in again
	}

# Thread Safety

SDKClient, Session and Provider are safe for concurrent use.
*/
package authsdk
