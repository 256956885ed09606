/*
Package config loads store configuration, both programmatically and from
a YAML manifest in the teacher's apiVersion/kind/metadata/spec shape
(spec.md §6 "Configuration keys", SPEC_FULL.md §6 expansion). Grounded on
the teacher's cmd/warren/apply.go WarrenResource document and its
getString/getInt spec-map accessors, generalized from a
map[string]interface{} spec payload to a typed manifest struct
(storeManifest) decoded directly by gopkg.in/yaml.v3.
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DefaultTickInterval matches spec.md §6's "broker.store.tick-interval"
// default.
const DefaultTickInterval = time.Second

// DefaultRequestTimeout matches spec.md §6's
// "broker.store.request-timeout" default.
const DefaultRequestTimeout = 10 * time.Second

// BackendKind selects a pkg/backend implementation (SPEC_FULL.md §4.3).
type BackendKind string

const (
	BackendMemory BackendKind = "memory"
	BackendSQLite BackendKind = "sqlite"
	BackendBolt   BackendKind = "bolt"
)

// BackendConfig selects and parameterizes a store's backend.
type BackendConfig struct {
	Kind BackendKind `yaml:"kind"`
	Path string      `yaml:"path,omitempty"`
}

// StoreConfig is the resolved, in-memory configuration for one store
// actor, independent of how it was loaded.
type StoreConfig struct {
	Name           string
	TickInterval   time.Duration
	RequestTimeout time.Duration
	Backend        BackendConfig
	Role           string // "master" or "clone"; clone-only fields below
	CloneID        string
	MasterEndpoint string
	MasterObject   string
}

// applyDefaults fills zero-valued fields with spec.md §6 defaults.
func (c *StoreConfig) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Backend.Kind == "" {
		c.Backend.Kind = BackendMemory
	}
	if c.Role == "" {
		c.Role = "master"
	}
	if c.Role == "clone" && c.CloneID == "" {
		c.CloneID = uuid.New().String()
	}
}

// storeManifest mirrors the teacher's WarrenResource document shape:
// apiVersion/kind/metadata/spec, specialized to kind: Store.
type storeManifest struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Metadata   struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
	Spec struct {
		TickInterval   string        `yaml:"tickInterval"`
		RequestTimeout string        `yaml:"requestTimeout"`
		Backend        BackendConfig `yaml:"backend"`
		Role           string        `yaml:"role"`
		CloneID        string        `yaml:"cloneId"`
		Master         struct {
			Endpoint string `yaml:"endpoint"`
			Object   string `yaml:"object"`
		} `yaml:"master"`
	} `yaml:"spec"`
}

// LoadFile reads and parses a StoreSpec YAML manifest (SPEC_FULL.md §6:
// "apiVersion/kind: Store/metadata.name/spec.{tickInterval,
// requestTimeout, backend}").
func LoadFile(path string) (StoreConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StoreConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a StoreSpec YAML document from data.
func Parse(data []byte) (StoreConfig, error) {
	var m storeManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return StoreConfig{}, fmt.Errorf("config: parse manifest: %w", err)
	}
	if m.Kind != "" && m.Kind != "Store" {
		return StoreConfig{}, fmt.Errorf("config: unsupported resource kind %q", m.Kind)
	}
	if m.Metadata.Name == "" {
		return StoreConfig{}, fmt.Errorf("config: metadata.name is required")
	}

	cfg := StoreConfig{
		Name:           m.Metadata.Name,
		Backend:        m.Spec.Backend,
		Role:           m.Spec.Role,
		CloneID:        m.Spec.CloneID,
		MasterEndpoint: m.Spec.Master.Endpoint,
		MasterObject:   m.Spec.Master.Object,
	}
	if m.Spec.TickInterval != "" {
		d, err := time.ParseDuration(m.Spec.TickInterval)
		if err != nil {
			return StoreConfig{}, fmt.Errorf("config: tickInterval: %w", err)
		}
		cfg.TickInterval = d
	}
	if m.Spec.RequestTimeout != "" {
		d, err := time.ParseDuration(m.Spec.RequestTimeout)
		if err != nil {
			return StoreConfig{}, fmt.Errorf("config: requestTimeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	cfg.applyDefaults()
	return cfg, nil
}
