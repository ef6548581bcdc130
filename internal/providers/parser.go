package providers

import "strings"

// ProviderRef is one entry of a backend selector: name[:alias].
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

func ParseProviderList(raw string) []ProviderRef {
	parts := strings.Split(raw, "|")
	out := make([]ProviderRef, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ref := ProviderRef{Raw: p}
		if strings.Contains(p, ":") {
			x := strings.SplitN(p, ":", 2)
			ref.Name = strings.ToLower(strings.TrimSpace(x[0]))
			ref.KeyAlias = strings.TrimSpace(x[1])
		} else {
			ref.Name = strings.ToLower(p)
		}
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out
}

// BackendName returns the first provider name of a selector.
func BackendName(raw string) string {
	return ParseProviderList(raw)[0].Name
}
