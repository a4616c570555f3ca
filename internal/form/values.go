// Package form types a business profile into an analyzed page and submits it.
package form

import (
	"strconv"
	"strings"

	"github.com/joseph-ayodele/directory-submitter/constants"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
)

// ValuesFor maps each fillable role to the profile value typed for it.
// Roles with an empty value are left out.
func ValuesFor(p *entity.BusinessProfile) map[constants.FieldRole]string {
	out := make(map[constants.FieldRole]string, 9)
	set := func(r constants.FieldRole, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out[r] = v
		}
	}
	if p == nil {
		return out
	}
	set(constants.RoleCompanyName, p.Name)
	set(constants.RoleCompanyURL, p.URL)
	set(constants.RoleDescription, p.Description)
	set(constants.RoleShortDescription, p.ShortDescription)
	set(constants.RoleContactEmail, p.ContactEmail)
	set(constants.RoleContactName, p.ContactName)
	set(constants.RoleCategory, p.Category)
	set(constants.RoleTags, strings.Join(p.Tags, ", "))
	if p.FoundedYear != nil {
		set(constants.RoleFoundedYear, strconv.Itoa(*p.FoundedYear))
	}
	return out
}
