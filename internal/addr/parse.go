// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package addr

import (
	"fmt"
	"strings"
)

// ParseName parses the canonical "proc/instance::entity/instance" form
// produced by Name.String. The entity half may be omitted entirely
// ("proc/instance") or left empty as Name.String renders it
// ("proc/instance::/"), yielding a Name with empty entity fields.
func ParseName(s string) (Name, error) {
	procPart := s
	entityPart := ""
	if idx := strings.Index(s, "::"); idx >= 0 {
		procPart = s[:idx]
		entityPart = s[idx+2:]
	}

	proc, procInst, err := splitPair(procPart)
	if err != nil {
		return Name{}, fmt.Errorf("ipcp name %q: %w", s, err)
	}

	var entity, entityInst string
	if entityPart != "" && entityPart != "/" {
		entity, entityInst, err = splitPair(entityPart)
		if err != nil {
			return Name{}, fmt.Errorf("ipcp name %q: %w", s, err)
		}
	}

	return Name{
		ProcessName:     proc,
		ProcessInstance: procInst,
		EntityName:      entity,
		EntityInstance:  entityInst,
	}, nil
}

func splitPair(s string) (name, instance string, err error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", "", fmt.Errorf("missing name component in %q", s)
	}
	name = parts[0]
	if len(parts) == 2 {
		instance = parts[1]
	}
	return name, instance, nil
}
