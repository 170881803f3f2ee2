package gradio

import (
	"fmt"
	"sort"
	"strings"
)

// apiInfo is the response of {prefix}/info.
type apiInfo struct {
	NamedEndpoints map[string]endpoint `json:"named_endpoints"`
}

type endpoint struct {
	Parameters []parameter `json:"parameters"`
}

type parameter struct {
	Label      string `json:"label"`
	Name       string `json:"parameter_name"`
	HasDefault bool   `json:"parameter_has_default"`
	Default    any    `json:"parameter_default"`
	Component  string `json:"component"`
}

// bind lays keyword arguments out in the endpoint's positional order,
// filling the rest from the declared defaults.
func (e endpoint) bind(params map[string]any) ([]any, error) {
	known := make(map[string]bool, len(e.Parameters))
	for _, p := range e.Parameters {
		known[p.Name] = true
	}

	var unknown []string
	for k := range params {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("parameter %s is not a valid keyword argument", strings.Join(unknown, ", "))
	}

	data := make([]any, len(e.Parameters))
	for i, p := range e.Parameters {
		if v, ok := params[p.Name]; ok {
			data[i] = v
			continue
		}
		if !p.HasDefault {
			return nil, fmt.Errorf("no value provided for required argument %q", p.Name)
		}
		data[i] = p.Default
	}
	return data, nil
}
