package enum

// AlertKind is the intent carried by an external trading alert.
type AlertKind string

const (
	AlertKindEntry AlertKind = "ENTRY"
	AlertKindExit  AlertKind = "EXIT"
)

func (k AlertKind) IsAvailable() bool {
	return k == AlertKindEntry || k == AlertKindExit
}
