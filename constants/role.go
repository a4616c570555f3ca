package constants

// FieldRole is the semantic meaning the analyzer assigns to a form control.
type FieldRole string

const (
	RoleCompanyName      FieldRole = "company_name"
	RoleCompanyURL       FieldRole = "company_url"
	RoleDescription      FieldRole = "description"
	RoleShortDescription FieldRole = "short_description"
	RoleContactEmail     FieldRole = "contact_email"
	RoleContactName      FieldRole = "contact_name"
	RoleCategory         FieldRole = "category"
	RoleTags             FieldRole = "tags"
	RoleFoundedYear      FieldRole = "founded_year"
	RoleLogoUpload       FieldRole = "logo_upload"
	RoleSubmitButton     FieldRole = "submit_button"
)

var allRoles = []FieldRole{
	RoleCompanyName,
	RoleCompanyURL,
	RoleDescription,
	RoleShortDescription,
	RoleContactEmail,
	RoleContactName,
	RoleCategory,
	RoleTags,
	RoleFoundedYear,
	RoleLogoUpload,
	RoleSubmitButton,
}

// RolesAsStrings returns the closed role vocabulary in declaration order.
func RolesAsStrings() []string {
	result := make([]string, len(allRoles))
	for i, r := range allRoles {
		result[i] = string(r)
	}
	return result
}

// IsKnownRole reports whether s is part of the role vocabulary.
func IsKnownRole(s string) bool {
	for _, r := range allRoles {
		if string(r) == s {
			return true
		}
	}
	return false
}

// Fillable reports whether the filler types a value into controls with this role.
func (r FieldRole) Fillable() bool {
	return r != RoleLogoUpload && r != RoleSubmitButton && IsKnownRole(string(r))
}
