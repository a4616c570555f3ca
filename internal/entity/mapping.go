package entity

import "github.com/joseph-ayodele/directory-submitter/constants"

// FieldBinding pairs a page locator with the role the analyzer gave it.
type FieldBinding struct {
	Locator string
	Role    constants.FieldRole
}

// FieldMapping keeps bindings in the order the analyzer emitted them,
// so fills happen in a stable order.
type FieldMapping []FieldBinding

func (m FieldMapping) Len() int { return len(m) }

// SubmitLocator returns the first locator tagged as the submit control.
func (m FieldMapping) SubmitLocator() (string, bool) {
	for _, b := range m {
		if b.Role == constants.RoleSubmitButton {
			return b.Locator, true
		}
	}
	return "", false
}
