package auth

import (
	"github.com/safar/go-bookstore/internal/apperr"
	"github.com/safar/go-bookstore/internal/models"
)

// RequestContext is what every service operation knows about its caller.
// Principal is nil for anonymous requests.
type RequestContext struct {
	Principal *models.Principal
	RequestID string
}

func Anonymous(requestID string) RequestContext {
	return RequestContext{RequestID: requestID}
}

func (rc RequestContext) Authenticated() bool {
	return rc.Principal != nil
}

// RequireUser returns the caller or ErrUnauthenticated.
func (rc RequestContext) RequireUser() (*models.Principal, error) {
	if rc.Principal == nil {
		return nil, apperr.ErrUnauthenticated
	}
	return rc.Principal, nil
}

// RequireAdmin returns the caller if it may administer the store.
func (rc RequestContext) RequireAdmin() (*models.Principal, error) {
	p, err := rc.RequireUser()
	if err != nil {
		return nil, err
	}
	if !p.Role.CanAdminister() {
		return nil, apperr.ErrForbidden
	}
	return p, nil
}
