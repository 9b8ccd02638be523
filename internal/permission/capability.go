package permission

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Capability is a single right on a file.
type Capability uint8

const (
	Read Capability = 1 << iota
	Write
	Delete
)

var capabilityNames = [...]struct {
	c    Capability
	name string
}{
	{Read, "read"},
	{Write, "write"},
	{Delete, "delete"},
}

func (c Capability) String() string {
	for _, n := range capabilityNames {
		if n.c == c {
			return n.name
		}
	}
	return fmt.Sprintf("capability(%d)", uint8(c))
}

// ParseCapability accepts read, write or delete in any case.
func ParseCapability(s string) (Capability, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, n := range capabilityNames {
		if n.name == s {
			return n.c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCapability, s)
}

// Set is a bitmask of capabilities. The zero Set grants nothing.
type Set uint8

// All holds every capability; owners implicitly have it.
const All = Set(Read | Write | Delete)

// NewSet builds a Set from individual capabilities.
func NewSet(caps ...Capability) Set {
	var s Set
	for _, c := range caps {
		s |= Set(c)
	}
	return s
}

// ParseCapabilities converts capability names into a Set. Duplicates are
// harmless; any unknown name fails the whole call.
func ParseCapabilities(names []string) (Set, error) {
	var s Set
	for _, name := range names {
		c, err := ParseCapability(name)
		if err != nil {
			return 0, err
		}
		s |= Set(c)
	}
	return s, nil
}

// Has reports whether c is in the set.
func (s Set) Has(c Capability) bool {
	return c != 0 && s&Set(c) == Set(c)
}

// Empty reports whether the set grants nothing.
func (s Set) Empty() bool {
	return s&All == 0
}

// Valid reports whether the set only holds known capabilities.
func (s Set) Valid() bool {
	return s&^All == 0
}

// Strings lists the capability names in read, write, delete order.
func (s Set) Strings() []string {
	out := make([]string, 0, len(capabilityNames))
	for _, n := range capabilityNames {
		if s.Has(n.c) {
			out = append(out, n.name)
		}
	}
	return out
}

func (s Set) String() string {
	return "{" + strings.Join(s.Strings(), ",") + "}"
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParseCapabilities(names)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
