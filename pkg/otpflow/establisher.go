package otpflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/medportal/phoneauth/pkg/slogx"
)

// Establisher hands verified tokens to the identity provider and fills in the
// user's canonical full name when it is missing.
type Establisher struct {
	Provider IdentityProvider
}

// Establish installs tokens as the current session. Only a failure to install
// the session is returned; fetching the user and reconciling the name are
// best effort and merely logged.
//
// phone is written alongside the reconciled name when non-empty. The returned
// User is zero if it could not be fetched.
func (e *Establisher) Establish(ctx context.Context, tokens TokenPair, phone string) (User, error) {
	log := slogx.FromContext(ctx)

	if !tokens.Complete() {
		return User{}, newError(
			KindMalformedResponse,
			"the login service returned an incomplete answer",
			errors.New("token pair is incomplete"),
		)
	}

	if err := e.Provider.SetSession(ctx, tokens); err != nil {
		return User{}, newError(
			KindSessionEstablishFailed,
			"your code was accepted but the session could not be saved, request a new code",
			err,
		)
	}

	user, err := e.Provider.CurrentUser(ctx)
	if err != nil {
		log.Warn("fetch current user failed", "error", err)
		return User{}, nil
	}

	return e.reconcile(ctx, log, user, phone), nil
}

func (e *Establisher) reconcile(ctx context.Context, log *slog.Logger, user User, phone string) User {
	name, ok := ResolveFullName(user)
	if !ok {
		return user
	}

	patch := Metadata{FullNameKey: name}
	if phone != "" {
		patch["phone"] = phone
	}

	if err := e.Provider.UpdateUserMetadata(ctx, patch); err != nil {
		log.Warn("update user metadata failed", "user_id", user.ID, "error", err)
		return user
	}
	log.Info("user full name reconciled", "user_id", user.ID)

	if err := e.Provider.RefreshSession(ctx); err != nil {
		log.Warn("refresh session after metadata update failed", "user_id", user.ID, "error", err)
	}

	merged := make(Metadata, len(user.Metadata)+len(patch))
	for k, v := range user.Metadata {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	user.Metadata = merged
	return user
}
