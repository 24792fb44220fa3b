package sandbox

import (
	"sort"
	"strings"
)

// ImportHook is the name under which the restricted import hook is exposed.
const ImportHook = "__import__"

// CapabilitySet is the fixed allow-list of names visible to executed code and
// of modules it may import. It is a value: accessors return copies so callers
// can never alter the set an executor was built with.
type CapabilitySet struct {
	builtins    []string
	modules     []string
	hostModules []string
	imports     []string
}

// Standard returns the process-wide capability set.
//
// Builtins are the safe primitives plus direct file access through open.
// Modules are pre-bound both as builtins and globals. Host modules are bound
// as globals only and expose the full host OS surface.
func Standard() CapabilitySet {
	return CapabilitySet{
		builtins: []string{
			"print", "range", "len", "int", "float", "str", "bool",
			"list", "dict", "set", "tuple", "enumerate", "zip",
			"min", "max", "sum", "abs", "open",
		},
		modules:     []string{"time", "threading", "requests"},
		hostModules: []string{"os"},
		imports:     []string{"datetime", "time", "threading", "requests"},
	}
}

// Builtins lists the callables exposed as builtins, excluding the import hook.
func (c CapabilitySet) Builtins() []string { return clone(c.builtins) }

// Modules lists the pre-bound capability modules.
func (c CapabilitySet) Modules() []string { return clone(c.modules) }

// HostModules lists modules bound into globals with full host access.
func (c CapabilitySet) HostModules() []string { return clone(c.hostModules) }

// Imports lists module names the restricted import hook lets through.
func (c CapabilitySet) Imports() []string { return clone(c.imports) }

// Names returns every bare name executed code can reference, sorted.
func (c CapabilitySet) Names() []string {
	names := make([]string, 0, len(c.builtins)+len(c.modules)+len(c.hostModules)+1)
	names = append(names, c.builtins...)
	names = append(names, c.modules...)
	names = append(names, c.hostModules...)
	names = append(names, ImportHook)
	sort.Strings(names)
	return names
}

// Allows reports whether name is bound in the execution context.
func (c CapabilitySet) Allows(name string) bool {
	for _, n := range c.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// CanImport reports whether the import hook admits module. Submodules of an
// allowed package are admitted too.
func (c CapabilitySet) CanImport(module string) bool {
	top, _, _ := strings.Cut(module, ".")
	for _, n := range c.imports {
		if n == top {
			return true
		}
	}
	return false
}

// Descriptor is the serialisable view of a CapabilitySet.
type Descriptor struct {
	Builtins    []string `json:"builtins" yaml:"builtins"`
	Modules     []string `json:"modules" yaml:"modules"`
	HostModules []string `json:"host_modules" yaml:"host_modules"`
	Imports     []string `json:"imports" yaml:"imports"`
	ImportHook  string   `json:"import_hook" yaml:"import_hook"`
}

// Describe returns the descriptor served by the capabilities endpoint and CLI.
func (c CapabilitySet) Describe() Descriptor {
	return Descriptor{
		Builtins:    c.Builtins(),
		Modules:     c.Modules(),
		HostModules: c.HostModules(),
		Imports:     c.Imports(),
		ImportHook:  ImportHook,
	}
}

func clone(in []string) []string {
	return append([]string(nil), in...)
}
