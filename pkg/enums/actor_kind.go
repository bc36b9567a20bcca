package enums

// ActorKind distinguishes the two identities that can hold an assignment.
type ActorKind string

const (
	ActorKindCollector ActorKind = "collector"
	ActorKindCrew      ActorKind = "crew"
)

// String implements fmt.Stringer.
func (a ActorKind) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorKind.
func (a ActorKind) IsValid() bool {
	return a == ActorKindCollector || a == ActorKindCrew
}
