package authz

import "murmur/internal/models"

// Err converts a denial into the error surfaced to the caller. Allowed decisions return nil.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonUnauthenticated:
		return models.NewUnauthenticatedError("Authentication credentials were not provided")
	case ReasonNotOwner:
		return models.NewForbiddenError("You do not have permission to perform this action")
	default:
		return models.NewForbiddenError("Access to this resource is not allowed")
	}
}
