// Package resultstore implements the Result Store (C7): it persists one
// Snapshot per "image:tag" to disk, and lets batch mode skip images that
// already have a result on disk.
//
// Grounded on original_source/baseline.py:38, `json.dump(ev.syscalls(), f,
// indent=4)`, and on data_comparison.py:33's `dyn_body = json.load(f)` --
// the consumer expects the file at "result/<key>.json" to decode straight
// to a list of numbers, so that is exactly what Save writes: the syscall
// index list as a pretty-printed JSON array of integers, nothing else at
// that path. Capabilities and the seccomp latch, which the original never
// persisted at all, are kept alongside in a sibling "<key>.meta.json" file
// so Load can still hand back a complete Snapshot.
package resultstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nestybox/beacon/beaconerr"
	"github.com/nestybox/beacon/nskey"
)

// resultMeta is the sidecar BEACON adds on top of the original's bare
// syscall-array file, to carry the capability list and seccomp flag the
// original format has no room for.
type resultMeta struct {
	Capabilities []int `json:"capabilities"`
	SeccompFlag  bool  `json:"seccomp_flag"`
}

// Store is a directory of "<image>:<tag>.json" result files.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. The directory must already exist;
// Store never creates it (matching baseline.py, which assumes "result/"
// is present).
func New(dir string) *Store {
	return &Store{dir: dir}
}

// path renders the on-disk filename for one catalogue key's syscall list.
// The key is not sanitized: ":" is kept as is, and a key containing "/"
// (e.g. "library/nginx:latest") maps to a file in a subdirectory of dir.
func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// metaPath renders the sidecar filename holding capabilities/seccomp_flag.
func (s *Store) metaPath(key string) string {
	return filepath.Join(s.dir, key+".meta.json")
}

// Has reports whether a result for key is already on disk (spec 4.7:
// batch mode must not re-run an image it has already sampled).
func (s *Store) Has(key string) bool {
	_, err := os.Stat(s.path(key))
	return err == nil
}

// Save writes snap.Syscalls as a pretty-printed JSON array of integers to
// "<key>.json" -- the format data_comparison.py:33 reads back with
// `json.load(f)` and tests `num in dyn_body` against directly -- and
// stashes capabilities/seccomp_flag in "<key>.meta.json". A nil snapshot
// (the container produced no data) is still recorded, as an empty array,
// so that Has reports true on subsequent runs and batch mode does not
// retry a container that is simply unresponsive.
func (s *Store) Save(key string, snap *nskey.Snapshot) error {
	if snap == nil {
		snap = &nskey.Snapshot{}
	}

	syscalls := snap.Syscalls
	if syscalls == nil {
		syscalls = []int{}
	}
	body, err := json.MarshalIndent(syscalls, "", "    ")
	if err != nil {
		return fmt.Errorf("resultstore: marshal %s: %w", key, err)
	}
	if err := os.WriteFile(s.path(key), body, 0o644); err != nil {
		return fmt.Errorf("resultstore: write %s: %w", key, err)
	}

	meta := resultMeta{Capabilities: snap.Capabilities, SeccompFlag: snap.SeccompFlag}
	metaBody, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return fmt.Errorf("resultstore: marshal %s metadata: %w", key, err)
	}
	if err := os.WriteFile(s.metaPath(key), metaBody, 0o644); err != nil {
		return fmt.Errorf("resultstore: write %s metadata: %w", key, err)
	}
	return nil
}

// Load reads back a previously saved Snapshot for key, recombining the
// syscall array at "<key>.json" with the sidecar capabilities/seccomp_flag
// at "<key>.meta.json" (missing sidecar is tolerated as empty, since
// nothing outside this package is required to have written one).
func (s *Store) Load(key string) (*nskey.Snapshot, error) {
	body, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", beaconerr.ErrResultNotFound, key)
		}
		return nil, fmt.Errorf("resultstore: read %s: %w", key, err)
	}

	var syscalls []int
	if err := json.Unmarshal(body, &syscalls); err != nil {
		return nil, fmt.Errorf("resultstore: decode %s: %w", key, err)
	}
	snap := &nskey.Snapshot{Syscalls: syscalls}

	metaBody, err := os.ReadFile(s.metaPath(key))
	switch {
	case err == nil:
		var meta resultMeta
		if err := json.Unmarshal(metaBody, &meta); err != nil {
			return nil, fmt.Errorf("resultstore: decode %s metadata: %w", key, err)
		}
		snap.Capabilities = meta.Capabilities
		snap.SeccompFlag = meta.SeccompFlag
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("resultstore: read %s metadata: %w", key, err)
	}

	return snap, nil
}

// Done returns the catalogue keys already recorded in the store, derived
// from the ".json" basenames present in dir (excluding the ".meta.json"
// sidecars) -- the Go equivalent of baseline.py's
// `list(map(lambda f: f[:-5], os.listdir("result")))`.
func (s *Store) Done() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("resultstore: list %s: %w", s.dir, err)
	}

	var done []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".meta.json") {
			continue
		}
		if strings.HasSuffix(name, ".json") {
			done = append(done, strings.TrimSuffix(name, ".json"))
		}
	}
	return done, nil
}
