package auth

import (
	"circle-hub/contract"
	"circle-hub/domain"
	"circle-hub/errors"
	"context"
	"fmt"
	"log/slog"
)

// Authenticator admits or rejects a handshake before any state is created.
type Authenticator struct {
	log       *slog.Logger
	verifier  contract.IdentityVerifier
	directory contract.ProfileDirectory
}

func NewAuthenticator(log *slog.Logger, verifier contract.IdentityVerifier,
	directory contract.ProfileDirectory) *Authenticator {
	return &Authenticator{log: log, verifier: verifier, directory: directory}
}

// Authenticate checks that the credential belongs to claimedUserID and loads the
// profile whose circles become the initial rooms. Every failure is reported as
// ErrAuthenticationFailed.
func (a *Authenticator) Authenticate(ctx context.Context, claimedUserID, credential string) (domain.Profile, error) {
	if err := ValidateHandshake(HandshakeRequest{UserID: claimedUserID, Token: credential}); err != nil {
		return domain.Profile{}, err
	}
	userID, err := a.verifier.Verify(credential)
	if err != nil {
		a.log.Debug("Invalid credential", "user_id", claimedUserID, "error", err)
		return domain.Profile{}, fmt.Errorf("%w: %v", errors.ErrAuthenticationFailed, err)
	}
	if userID != claimedUserID {
		a.log.Warn("Credential used for another user", "user_id", claimedUserID, "token_user_id", userID)
		return domain.Profile{}, fmt.Errorf("%w: credential belongs to another user", errors.ErrAuthenticationFailed)
	}
	profile, err := a.directory.Profile(ctx, userID)
	if err != nil {
		a.log.Warn("Unable to load profile", "user_id", userID, "error", err)
		return domain.Profile{}, fmt.Errorf("%w: %v", errors.ErrAuthenticationFailed, err)
	}
	return profile, nil
}
