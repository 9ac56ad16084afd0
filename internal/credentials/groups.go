// File: internal/credentials/groups.go
package credentials

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// groupsFile is the on-disk shape of the group-definition file.
type groupsFile struct {
	Groups map[string]groupEntry `json:"groups"`
}

type groupEntry struct {
	Description string            `json:"description"`
	Accounts    []string          `json:"accounts"`
	FactorHints map[string]string `json:"factor_hints"`
}

// LoadGroups reads the named-group definitions. The group file is optional at
// the product level; callers treat ErrSourceNotFound as "no groups defined"
// unless a group selection was requested.
func LoadGroups(path string) (map[string]Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("reading group file %s: %w", path, err)
	}

	var gf groupsFile
	if err := json.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("%w: group file %s: %v", ErrMalformedSource, path, err)
	}

	groups := make(map[string]Group, len(gf.Groups))
	for name, entry := range gf.Groups {
		if len(entry.Accounts) == 0 {
			return nil, fmt.Errorf("%w: group %q has no accounts", ErrMalformedSource, name)
		}
		groups[name] = Group{
			Name:        name,
			Description: entry.Description,
			AccountIDs:  entry.Accounts,
			FactorHints: entry.FactorHints,
		}
	}
	return groups, nil
}
