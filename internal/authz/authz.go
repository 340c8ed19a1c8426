// Package authz decides whether an actor may perform an action on a resource class.
//
// Decisions are pure: they depend only on the actor id, the resource class,
// the action and, for object-level checks, the target's owner id.
package authz

// ResourceClass names a family of endpoints.
type ResourceClass string

const (
	ResourceAuthRegister ResourceClass = "auth-register"
	ResourceAuthLogin    ResourceClass = "auth-login"
	ResourceAuthRefresh  ResourceClass = "auth-refresh"
	ResourceAuthLogout   ResourceClass = "auth-logout"
	ResourcePost         ResourceClass = "post"
	ResourceUser         ResourceClass = "user"
)

// Action is the kind of operation being attempted.
type Action string

const (
	ActionList          Action = "list"
	ActionRetrieve      Action = "retrieve"
	ActionCreate        Action = "create"
	ActionUpdate        Action = "update"
	ActionPartialUpdate Action = "partial_update"
	ActionDestroy       Action = "destroy"
	ActionLike          Action = "like"
)

// ownerOnly reports whether the action mutates an existing target and therefore needs ownership.
func (a Action) ownerOnly() bool {
	return a == ActionUpdate || a == ActionPartialUpdate || a == ActionDestroy
}

// Tier groups resource classes by how much authentication they need.
type Tier int

const (
	TierPublic Tier = iota + 1
	TierProtected
)

// Reason explains a decision.
type Reason string

const (
	ReasonPublic          Reason = "public"
	ReasonAuthenticated   Reason = "authenticated"
	ReasonOwner           Reason = "owner"
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonNotOwner        Reason = "not_owner"
	ReasonUnknownResource Reason = "unknown_resource"
)

// Actor is the caller. A zero ID is an anonymous caller.
type Actor struct {
	ID uint
}

// Anonymous is the unauthenticated actor.
var Anonymous = Actor{}

// Authenticated reports whether the actor carries an identity.
func (a Actor) Authenticated() bool {
	return a.ID != 0
}

// Target is the object a request acts on.
type Target struct {
	OwnerID uint
}

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow(r Reason) Decision { return Decision{Allowed: true, Reason: r} }
func deny(r Reason) Decision  { return Decision{Allowed: false, Reason: r} }

// Policy maps resource classes to tiers. Classes missing from the table are denied.
type Policy struct {
	tiers map[ResourceClass]Tier
}

// NewPolicy builds a policy from an explicit tier table.
func NewPolicy(tiers map[ResourceClass]Tier) *Policy {
	t := make(map[ResourceClass]Tier, len(tiers))
	for class, tier := range tiers {
		t[class] = tier
	}
	return &Policy{tiers: t}
}

// DefaultPolicy is the table the API runs with.
var DefaultPolicy = NewPolicy(map[ResourceClass]Tier{
	ResourceAuthRegister: TierPublic,
	ResourceAuthLogin:    TierPublic,
	ResourceAuthRefresh:  TierPublic,
	ResourceAuthLogout:   TierProtected,
	ResourcePost:         TierProtected,
	ResourceUser:         TierProtected,
})

// TierOf returns the tier for class and whether it is known.
func (p *Policy) TierOf(class ResourceClass) (Tier, bool) {
	tier, ok := p.tiers[class]
	return tier, ok
}

// Authorize evaluates a request. A nil target performs the class-level check only;
// owner-only actions are then re-checked once the target is loaded.
func (p *Policy) Authorize(actor Actor, class ResourceClass, action Action, target *Target) Decision {
	tier, ok := p.tiers[class]
	if !ok {
		return deny(ReasonUnknownResource)
	}

	if tier == TierPublic {
		return allow(ReasonPublic)
	}

	if !actor.Authenticated() {
		return deny(ReasonUnauthenticated)
	}

	if target == nil || !action.ownerOnly() {
		return allow(ReasonAuthenticated)
	}

	if target.OwnerID == actor.ID {
		return allow(ReasonOwner)
	}
	return deny(ReasonNotOwner)
}

// Authorize evaluates a request against DefaultPolicy.
func Authorize(actor Actor, class ResourceClass, action Action, target *Target) Decision {
	return DefaultPolicy.Authorize(actor, class, action, target)
}
