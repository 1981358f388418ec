package auth

import (
	"errors"
	"net/http"

	"realmforge/internal/campaign"
)

var (
	ErrMissingToken = errors.New("missing session token")
	ErrInvalidToken = errors.New("invalid session token")
	ErrNotOwner     = errors.New("account does not own this campaign")
)

// Authorizer resolves request sessions and enforces campaign ownership.
type Authorizer struct {
	sessions  Service
	campaigns campaign.Service
}

func NewAuthorizer(sessions Service, campaigns campaign.Service) *Authorizer {
	return &Authorizer{sessions: sessions, campaigns: campaigns}
}

// Resolve returns the account behind the request's bearer token.
func (a *Authorizer) Resolve(r *http.Request) (accountID uint64, err error) {
	token := BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return 0, ErrMissingToken
	}
	accountID, _, ok := a.sessions.ResolveSession(token)
	if !ok {
		return 0, ErrInvalidToken
	}
	return accountID, nil
}

// RequireOwner resolves the session and checks the account owns campaignID.
func (a *Authorizer) RequireOwner(r *http.Request, campaignID string) (accountID uint64, err error) {
	accountID, err = a.Resolve(r)
	if err != nil {
		return 0, err
	}
	owner, err := a.campaigns.IsOwner(r.Context(), campaignID, accountID)
	if err != nil {
		return 0, err
	}
	if !owner {
		return 0, ErrNotOwner
	}
	return accountID, nil
}

// WriteAuthError maps authorization failures onto HTTP statuses.
func WriteAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidToken):
		WriteError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrNotOwner):
		WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, campaign.ErrCampaignNotFound):
		WriteError(w, http.StatusNotFound, "campaign not found")
	default:
		WriteError(w, http.StatusInternalServerError, "authorization failed")
	}
}
