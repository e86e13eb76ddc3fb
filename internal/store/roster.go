package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type rosterDoc struct {
	Members []Member `yaml:"members"`
}

// LoadRoster reads the static member roster from a YAML file of the form
//
//	members:
//	  - id: mom
//	    name: Mom
//	    email: mom@example.com
func LoadRoster(path string) ([]Member, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var doc rosterDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}

	seen := make(map[string]bool, len(doc.Members))
	for i, m := range doc.Members {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return nil, fmt.Errorf("roster entry %d: missing id", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("roster entry %d: duplicate id %q", i, id)
		}
		seen[id] = true
		doc.Members[i].ID = id
		if doc.Members[i].Name == "" {
			doc.Members[i].Name = id
		}
		doc.Members[i].TokenStatus = TokenUnknown
	}
	return doc.Members, nil
}

// SeedRoster adds roster members missing from the store. Existing members are
// left as they are and nothing is ever removed. It returns the number added.
func SeedRoster(ctx context.Context, ps ProfileStore, roster []Member) (int, error) {
	if len(roster) == 0 {
		return 0, nil
	}
	members, err := ps.ReadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("read profiles: %w", err)
	}

	added := 0
	for _, m := range roster {
		if _, ok := FindMember(members, m.ID); ok {
			continue
		}
		if m.TokenStatus == "" {
			m.TokenStatus = TokenUnknown
		}
		members = append(members, m)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := ps.WriteAll(ctx, members); err != nil {
		return 0, fmt.Errorf("write profiles: %w", err)
	}
	return added, nil
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
