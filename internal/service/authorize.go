// Package service orchestrates repositories, tokens and authorization for the API.
package service

import (
	"murmur/internal/authz"
	"murmur/internal/observability"
)

// Authorize evaluates the default policy, counts the decision and returns the
// denial as an AppError, or nil when allowed.
func Authorize(actor authz.Actor, class authz.ResourceClass, action authz.Action, target *authz.Target) error {
	d := authz.Authorize(actor, class, action, target)
	observability.AuthzDecisions.WithLabelValues(string(class), string(action), string(d.Reason)).Inc()
	return d.Err()
}
