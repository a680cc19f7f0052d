package domain

// Outcome tells a resolve-or-create caller which branch produced the resource.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeAlreadyExists
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyExists:
		return "already_exists"
	}
	return "unknown"
}

// Resolved is the result of a resolve-or-create call against a provider.
type Resolved struct {
	ID      string
	Outcome Outcome
}

func Created(id string) Resolved {
	return Resolved{ID: id, Outcome: OutcomeCreated}
}

func AlreadyExists(id string) Resolved {
	return Resolved{ID: id, Outcome: OutcomeAlreadyExists}
}
