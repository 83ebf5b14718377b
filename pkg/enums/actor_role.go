package enums

// ActorRole distinguishes end users from platform operators in access tokens.
type ActorRole string

const (
	ActorRoleUser     ActorRole = "user"
	ActorRoleOperator ActorRole = "operator"
)

var actorRoles = newSet("actor role",
	ActorRoleUser,
	ActorRoleOperator,
)

// IsValid reports whether the value is known.
func (r ActorRole) IsValid() bool { return actorRoles.has(r) }
