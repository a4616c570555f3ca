package constants

import (
	"fmt"
	"strings"
)

// PackageTier is the purchased package; it fixes how many directories a job targets.
type PackageTier string

const (
	TierBasic      PackageTier = "basic"
	TierPro        PackageTier = "pro"
	TierEnterprise PackageTier = "enterprise"
)

var tierQuotas = map[PackageTier]int{
	TierBasic:      50,
	TierPro:        100,
	TierEnterprise: 150,
}

// Quota returns the number of directories bought with the tier, or 0 for unknown tiers.
func (t PackageTier) Quota() int {
	return tierQuotas[t]
}

// ParsePackageTier accepts the tier name case-insensitively.
func ParsePackageTier(s string) (PackageTier, error) {
	t := PackageTier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tierQuotas[t]; !ok {
		return "", fmt.Errorf("unknown package tier %q", s)
	}
	return t, nil
}

// Difficulty is the catalog's informational difficulty rating.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func ParseDifficulty(s string) (Difficulty, bool) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	case "":
		return DifficultyMedium, true
	}
	return "", false
}
