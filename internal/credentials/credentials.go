// File: internal/credentials/credentials.go
// Package credentials loads account records from the external CSV source and
// named groups from the JSON group file, and resolves which accounts a run
// should target.
package credentials

import (
	"errors"
	"fmt"
)

// Sentinel errors for credential/group source problems. Both are fatal to a
// whole run; everything downstream is per-account.
var (
	ErrSourceNotFound  = errors.New("credential source not found")
	ErrMalformedSource = errors.New("credential source is malformed")
)

// Account is one configured login identity. It is immutable for the duration
// of a run; the source file is re-read at every run start.
type Account struct {
	// ID is the login username, unique within a source, case-sensitive.
	ID string
	// Secret is the login password. Opaque; never logged.
	Secret string
	// SecondFactor is either a static PIN or a base32 TOTP seed. Empty when
	// the account has no second factor configured.
	SecondFactor string
	// FactorHint optionally names the second factor kind ("pin" or "totp"),
	// sourced from the group file. Empty means classify heuristically.
	FactorHint string
	// Active marks whether the account participates in all-accounts runs.
	// Inactive accounts can still be targeted by explicit id.
	Active bool
}

// Group is a named set of account ids used only for run selection.
type Group struct {
	Name        string
	Description string
	AccountIDs  []string
	// FactorHints optionally pins the second-factor kind per account id.
	FactorHints map[string]string
}

// Selection names the accounts a run should target. Exactly one mode applies:
// explicit IDs beat Group, Group beats the all-active default. Supplying both
// IDs and Group is rejected rather than silently resolved.
type Selection struct {
	IDs   []string
	Group string
}

// Resolve filters accounts down to the selection. The returned slice preserves
// source order for explicit ids and group members (their declared order) and
// file order for the all-active default.
func Resolve(accounts []Account, groups map[string]Group, sel Selection) ([]Account, error) {
	if len(sel.IDs) > 0 && sel.Group != "" {
		return nil, fmt.Errorf("select by ids or by group, not both")
	}

	byID := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	switch {
	case len(sel.IDs) > 0:
		// Explicit ids override the active-only filter.
		out := make([]Account, 0, len(sel.IDs))
		seen := make(map[string]bool, len(sel.IDs))
		for _, id := range sel.IDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			a, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("account %q not present in credential source", id)
			}
			out = append(out, a)
		}
		return out, nil

	case sel.Group != "":
		g, ok := groups[sel.Group]
		if !ok {
			return nil, fmt.Errorf("group %q not defined", sel.Group)
		}
		out := make([]Account, 0, len(g.AccountIDs))
		for _, id := range g.AccountIDs {
			a, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("group %q references account %q not present in credential source", g.Name, id)
			}
			if hint, ok := g.FactorHints[id]; ok {
				a.FactorHint = hint
			}
			out = append(out, a)
		}
		return out, nil

	default:
		var out []Account
		for _, a := range accounts {
			if a.Active {
				out = append(out, a)
			}
		}
		return out, nil
	}
}
