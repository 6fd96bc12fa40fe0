// Package catalogue implements the Container Catalogue (C8): a read-once
// mapping from "image:tag" to the ContainerSpec batch mode should launch
// it with.
//
// Grounded directly on original_source/baseline.py's
// `with open("stable_args.json") as f: container_args = json.load(f)`,
// whose values are fed straight into Container(img=k, **v) -- the same
// keyword-argument shape rtclient.ContainerSpec already enumerates.
package catalogue

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nestybox/beacon/rtclient"
)

// Catalogue is the loaded, read-only "image:tag" -> ContainerSpec table.
type Catalogue struct {
	entries map[string]rtclient.ContainerSpec
	order   []string
}

// Load reads path once and decodes it into a Catalogue. Unknown spec
// fields are rejected per entry, the same discipline
// rtclient.DecodeContainerSpec applies everywhere else a spec is parsed.
func Load(path string) (*Catalogue, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalogue: read %s: %w", path, err)
	}

	var rawEntries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rawEntries); err != nil {
		return nil, fmt.Errorf("catalogue: decode %s: %w", path, err)
	}

	c := &Catalogue{entries: make(map[string]rtclient.ContainerSpec, len(rawEntries))}
	for key, rawSpec := range rawEntries {
		spec, err := rtclient.DecodeContainerSpec(rawSpec)
		if err != nil {
			return nil, fmt.Errorf("catalogue: entry %q: %w", key, err)
		}
		c.entries[key] = spec
		c.order = append(c.order, key)
	}

	return c, nil
}

// Keys returns every "image:tag" key. Order is not significant: it
// reflects Go's (unspecified) map-iteration order at Load time, not the
// order keys appeared in the source file.
func (c *Catalogue) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Spec returns the ContainerSpec registered under key.
func (c *Catalogue) Spec(key string) (rtclient.ContainerSpec, bool) {
	spec, ok := c.entries[key]
	return spec, ok
}

// Len reports the number of catalogued entries.
func (c *Catalogue) Len() int { return len(c.entries) }
