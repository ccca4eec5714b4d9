// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package targets

import (
	"encoding/json"
	"errors"
	"strings"

	"gopkg.in/yaml.v3"
)

// Spec describes the hosts to probe, either as an explicit list of host
// identifiers or as an expression string. The zero value resolves to no
// hosts.
type Spec struct {
	List []string // explicit host identifiers, validated only.
	Expr string   // comma-separated IPs, names, CIDR blocks and ranges.
}

// FromList returns a Spec for an explicit list of host identifiers.
func FromList(hosts ...string) Spec { return Spec{List: hosts} }

// FromString returns a Spec for a target expression.
func FromString(expr string) Spec { return Spec{Expr: expr} }

// IsZero returns true if the Spec specifies nothing at all.
func (s Spec) IsZero() bool { return s.List == nil && s.Expr == "" }

// String renders the Spec in expression form.
func (s Spec) String() string {
	if s.List != nil {
		return strings.Join(s.List, ",")
	}
	return s.Expr
}

// Resolve returns the deduplicated host identifiers specified by s, in order
// of their first appearance.
func (s Spec) Resolve() []string {
	if s.List != nil {
		return resolveList(s.List)
	}
	return Resolve(s.Expr)
}

// Resolve expands a target expression into its deduplicated host
// identifiers, in order of their first appearance. Malformed segments are
// silently skipped.
func Resolve(expr string) []string {
	hosts := newHostSet()
	for _, segment := range strings.Split(expr, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		switch {
		case strings.Contains(segment, "/"):
			hosts.add(expandCIDR(segment)...)
		case strings.Contains(segment, "-") && IsIPv4(strings.TrimSpace(strings.SplitN(segment, "-", 2)[0])):
			hosts.add(expandRange(segment)...)
		case IsHostID(segment):
			hosts.add(segment)
		}
	}
	return hosts.list
}

func resolveList(list []string) []string {
	hosts := newHostSet()
	for _, host := range list {
		if IsHostID(host) {
			hosts.add(host)
		}
	}
	return hosts.list
}

// hostSet is an insertion-ordered set of host identifiers.
type hostSet struct {
	seen map[string]struct{}
	list []string
}

func newHostSet() *hostSet {
	return &hostSet{seen: map[string]struct{}{}, list: []string{}}
}

func (h *hostSet) add(hosts ...string) {
	for _, host := range hosts {
		if _, ok := h.seen[host]; ok {
			continue
		}
		h.seen[host] = struct{}{}
		h.list = append(h.list, host)
	}
}

var errSpecType = errors.New("targets must be a string or a list of strings")

// UnmarshalJSON accepts either a JSON string or an array of strings.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var expr string
	if err := json.Unmarshal(data, &expr); err == nil {
		*s = Spec{Expr: expr}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errSpecType
	}
	if list == nil {
		list = []string{}
	}
	*s = Spec{List: list}
	return nil
}

// MarshalJSON renders list specs as arrays and expressions as strings.
func (s Spec) MarshalJSON() ([]byte, error) {
	if s.List != nil {
		return json.Marshal(s.List)
	}
	return json.Marshal(s.Expr)
}

// UnmarshalYAML accepts either a scalar or a sequence of scalars.
func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = Spec{Expr: node.Value}
		return nil
	case yaml.SequenceNode:
		list := []string{}
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = Spec{List: list}
		return nil
	}
	return errSpecType
}
