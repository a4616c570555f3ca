package llm

import "github.com/joseph-ayodele/directory-submitter/constants"

// BuildSelectorsSchema returns the JSON-Schema for {"selectors": {locator: role}}.
// It is sent as the structured output constraint and used locally to validate.
func BuildSelectorsSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"selectors"},
		"properties": map[string]any{
			"selectors": map[string]any{
				"type":          "object",
				"minProperties": 1,
				"additionalProperties": map[string]any{
					"type": "string",
					"enum": constants.RolesAsStrings(),
				},
			},
		},
	}
}
