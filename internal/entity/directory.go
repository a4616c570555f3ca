package entity

import "github.com/joseph-ayodele/directory-submitter/constants"

// Directory is one catalog entry. Name is the unique key within a catalog.
type Directory struct {
	Name         string               `json:"name" yaml:"name"`
	URL          string               `json:"url" yaml:"url"`
	Category     string               `json:"category" yaml:"category"`
	Difficulty   constants.Difficulty `json:"difficulty" yaml:"difficulty"`
	Requirements []string             `json:"requirements,omitempty" yaml:"requirements,omitempty"`
}
