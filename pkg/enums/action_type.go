package enums

// ActionType identifies a paid action a checkout can be opened for.
type ActionType string

const (
	ActionTypeMint     ActionType = "mint"
	ActionTypeAnalysis ActionType = "analysis"
	ActionTypePurchase ActionType = "purchase"
)

var actionTypes = newSet("action type",
	ActionTypeMint,
	ActionTypeAnalysis,
	ActionTypePurchase,
)

// IsValid reports whether the value is known.
func (a ActionType) IsValid() bool { return actionTypes.has(a) }

// ParseActionType converts raw input into a ActionType.
func ParseActionType(value string) (ActionType, error) { return actionTypes.parse(value) }

// Gated reports whether the action passes through the entitlement gate and
// leaves a pending operation once paid.
func (a ActionType) Gated() bool {
	return a == ActionTypeMint || a == ActionTypeAnalysis
}
