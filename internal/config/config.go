// Package config resolves the install-time layout of the cosim toolchain.
// Everything the runner needs from its surroundings lives in one explicit
// struct: the simulation driver, the RPC schema, and the auxiliary RTL
// sources that get compiled into every cosim design.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config describes where the cosim toolchain is installed and which
// simulator to drive. Zero fields are filled in by ApplyDefaults.
type Config struct {
	// SimulatorDriverPath is the compile-and-run driver the runner shells
	// out to for both the build step and the simulation itself.
	SimulatorDriverPath string `yaml:"driver"`

	// SchemaPath points to the RPC schema handed to every test program.
	SchemaPath string `yaml:"schema"`

	// AuxiliaryFiles are the support RTL sources compiled alongside the
	// test's own source unless the run opts out of them.
	AuxiliaryFiles []string `yaml:"aux_files"`

	// SimulatorName selects the RTL simulator the driver should use. Empty
	// means the driver's default.
	SimulatorName string `yaml:"sim"`

	// RuntimePyDir holds the cosim python helper modules; it is put on the
	// test's import path alongside the test source's own directory.
	RuntimePyDir string `yaml:"runtime_py_dir"`
}

// EnvRoot names the environment variable pointing at the toolchain install
// root, used to resolve defaults for unset paths.
const EnvRoot = "COSIM_ROOT"

// Load reads a YAML config file. A missing file is not an error: it yields
// an empty Config so flag and default resolution still apply.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields from the install root layout.
func (c *Config) ApplyDefaults() {
	if root := os.Getenv(EnvRoot); root != "" {
		if c.SimulatorDriverPath == "" {
			c.SimulatorDriverPath = filepath.Join(root, "bin", "circt-rtl-sim.py")
		}
		include := filepath.Join(root, "lib", "Dialect", "ESI")
		if c.SchemaPath == "" {
			c.SchemaPath = filepath.Join(include, "runtime", "cosim", "CosimDpi.capnp")
		}
		if c.AuxiliaryFiles == nil {
			cosim := filepath.Join(include, "runtime", "cosim")
			c.AuxiliaryFiles = []string{
				filepath.Join(cosim, "Cosim_DpiPkg.sv"),
				filepath.Join(cosim, "Cosim_Endpoint.sv"),
				filepath.Join(cosim, "Cosim_Manifest.sv"),
				filepath.Join(cosim, "Cosim_MMIO.sv"),
				filepath.Join(include, "ESIPrimitives.sv"),
			}
		}
	}

	// The cosim python helper modules ship next to the driver.
	if c.RuntimePyDir == "" && c.SimulatorDriverPath != "" {
		c.RuntimePyDir = filepath.Dir(c.SimulatorDriverPath)
	}
}

// Validate checks that the config is complete enough to run a test.
func (c *Config) Validate() error {
	if c.SimulatorDriverPath == "" {
		return errors.New("no simulation driver configured: set driver in the config file or " + EnvRoot + " in the environment")
	}
	return nil
}
