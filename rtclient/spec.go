package rtclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ContainerSpec is the enumerated set of container-creation options BEACON
// accepts (spec 4.3). It is recovered and renamed from
// original_source/emulating/types.ContainerSpec, trimmed to exactly the
// options spec.md names; unknown option keys are rejected rather than
// silently ignored.
type ContainerSpec struct {
	Command []string          `json:"command,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Volumes map[string]string `json:"volumes,omitempty"`
	// Ports maps "containerPort/proto" (proto optional, defaults to tcp;
	// e.g. "80/tcp" or "80") to the host port to publish it on.
	Ports   map[string]string `json:"ports,omitempty"`
	Workdir string            `json:"workdir,omitempty"`
}

// DecodeContainerSpec parses raw into a ContainerSpec, rejecting any field
// not in the enumeration above (spec 4.3: "Unknown options are rejected").
func DecodeContainerSpec(raw json.RawMessage) (ContainerSpec, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var spec ContainerSpec
	if err := dec.Decode(&spec); err != nil {
		return ContainerSpec{}, fmt.Errorf("rtclient: rejecting container spec: %w", err)
	}
	return spec, nil
}
