package types

import "fmt"

type ConnectionState uint8

const (
	Disconnected ConnectionState = iota
	ConnectedGeometric
	ConnectedStabilised
)

func (s ConnectionState) String() string {
	return [...]string{"Disconnected", "ConnectedGeometric", "ConnectedStabilised"}[s]
}

// Connected is true for either of the connected states
func (s ConnectionState) Connected() bool {
	return s != Disconnected
}

// FieldKind selects how the non-conformal parts of a face are combined:
// intensive quantities are area weighted, extensive quantities (fluxes) are summed.
type FieldKind uint8

const (
	Intensive FieldKind = iota
	Extensive
)

func (k FieldKind) String() string {
	return [...]string{"Intensive", "Extensive"}[k]
}

var FieldKindNameMap = map[string]FieldKind{
	"intensive": Intensive,
	"extensive": Extensive,
	"flux":      Extensive,
}

func NewFieldKind(label string) (k FieldKind, err error) {
	var ok bool
	if k, ok = FieldKindNameMap[label]; !ok {
		err = fmt.Errorf("unknown field kind: %q", label)
	}
	return
}

// Side identifies which half of a non-conformal coupling a part or face is on
type Side uint8

const (
	Owner Side = iota
	Neighbour
)

func (s Side) String() string {
	return [...]string{"Owner", "Neighbour"}[s]
}

func (s Side) Opposite() Side {
	if s == Owner {
		return Neighbour
	}
	return Owner
}
