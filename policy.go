package hnf

import (
	"fmt"
	"strings"
)

// DefaultReadPolicy prefers meshes, then skeletons, then dotprops.
const DefaultReadPolicy = "mesh->skeleton->dotprops"

// ReadPolicy selects which representations to decode for each neuron.
//
// It is written as comma-separated priority chains, e.g.
// "mesh->skeleton,dotprops". Within a chain the first representation the
// neuron has is decoded and the rest of the chain is skipped. Chains are
// evaluated independently, so one neuron may yield several
// representations. A neuron matching no chain yields nothing.
type ReadPolicy struct {
	chains [][]Kind
}

// ParseReadPolicy parses a policy string.
func ParseReadPolicy(s string) (ReadPolicy, error) {
	var p ReadPolicy
	for _, chain := range strings.Split(s, ",") {
		if strings.TrimSpace(chain) == "" {
			return ReadPolicy{}, fmt.Errorf("%w: empty chain in %q", ErrInvalidReadPolicy, s)
		}
		var kinds []Kind
		for _, name := range strings.Split(chain, "->") {
			k, err := ParseKind(name)
			if err != nil {
				return ReadPolicy{}, err
			}
			kinds = append(kinds, k)
		}
		p.chains = append(p.chains, kinds)
	}
	return p, nil
}

// MustParseReadPolicy is like ParseReadPolicy but panics on error.
func MustParseReadPolicy(s string) ReadPolicy {
	p, err := ParseReadPolicy(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Select returns the representations to decode given which ones a neuron
// has. A kind selected by several chains is returned once.
func (p ReadPolicy) Select(has func(Kind) bool) []Kind {
	var out []Kind
	for _, chain := range p.chains {
		for _, k := range chain {
			if !has(k) {
				continue
			}
			if !containsKind(out, k) {
				out = append(out, k)
			}
			break
		}
	}
	return out
}

// IsZero reports whether the policy selects nothing.
func (p ReadPolicy) IsZero() bool {
	return len(p.chains) == 0
}

func (p ReadPolicy) String() string {
	chains := make([]string, len(p.chains))
	for i, chain := range p.chains {
		names := make([]string, len(chain))
		for j, k := range chain {
			names[j] = k.String()
		}
		chains[i] = strings.Join(names, "->")
	}
	return strings.Join(chains, ",")
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}
