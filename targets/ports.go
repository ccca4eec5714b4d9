// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package targets

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxPortRange limits how many ports a single "a-b" range token may expand
// into.
const maxPortRange = 1024

// Ports is a list of TCP ports which unmarshals from either a
// comma-separated string or a JSON array of numbers.
type Ports []int

// ParsePorts parses a port specification such as "22,80,8000-8010" into a
// list of ports, keeping their order of first appearance. Like target
// resolution, parsing is best-effort: invalid tokens, ports outside 1..65535,
// and duplicates are dropped.
func ParsePorts(spec string) Ports {
	ports := Ports{}
	seen := map[int]struct{}{}
	add := func(p int) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		ports = append(ports, p)
	}
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if from, to, ok := strings.Cut(token, "-"); ok {
			start, err1 := strconv.Atoi(strings.TrimSpace(from))
			end, err2 := strconv.Atoi(strings.TrimSpace(to))
			if err1 != nil || err2 != nil || !validPort(start) || !validPort(end) ||
				end < start || end-start >= maxPortRange {
				continue
			}
			for p := start; p <= end; p++ {
				add(p)
			}
			continue
		}
		p, err := strconv.Atoi(token)
		if err != nil || !validPort(p) {
			continue
		}
		add(p)
	}
	return ports
}

// FilterPorts drops invalid and duplicate ports from a port list.
func FilterPorts(list []int) Ports {
	ports := Ports{}
	seen := map[int]struct{}{}
	for _, p := range list {
		if !validPort(p) {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		ports = append(ports, p)
	}
	return ports
}

func validPort(p int) bool { return p >= 1 && p <= 65535 }

// String renders the ports in comma-separated form.
func (p Ports) String() string {
	s := make([]string, len(p))
	for idx, port := range p {
		s[idx] = strconv.Itoa(port)
	}
	return strings.Join(s, ",")
}

// UnmarshalJSON accepts either a port spec string or an array of numbers;
// invalid entries are dropped.
func (p *Ports) UnmarshalJSON(data []byte) error {
	var spec string
	if err := json.Unmarshal(data, &spec); err == nil {
		*p = ParsePorts(spec)
		return nil
	}
	var list []float64
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("ports must be a string or a list of numbers")
	}
	ints := make([]int, 0, len(list))
	for _, v := range list {
		if v != float64(int(v)) {
			continue
		}
		ints = append(ints, int(v))
	}
	*p = FilterPorts(ints)
	return nil
}

// UnmarshalYAML accepts either a port spec scalar or a sequence of ports.
func (p *Ports) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*p = ParsePorts(node.Value)
		return nil
	}
	var list []int
	if err := node.Decode(&list); err != nil {
		return err
	}
	*p = FilterPorts(list)
	return nil
}
