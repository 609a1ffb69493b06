// Package appconfig loads mesh application definitions from YAML.
//
// A definition names the object paths of the application and lists its
// elements with their models:
//
//	root: /mesh/sensor
//	application: application
//	identity:
//	  company_id: 0x05F1
//	  product_id: 1
//	  version_id: 1
//	provisioner: false
//	elements:
//	  - path: ele00
//	    models:
//	      - sensor-server
//	      - vendor: {company: 0x05F1, id: 0x0001, publish: true}
//
// Relative paths are resolved against the root. Model names are looked up
// in a model.Registry; see NewRegistry for the built-in names.
package appconfig

import (
	"fmt"
	"os"
	"path"

	"github.com/godbus/dbus/v5"
	"gopkg.in/yaml.v3"

	"github.com/btmesh-go/mesh-go/pkg/examples"
	"github.com/btmesh-go/mesh-go/pkg/mesh"
	"github.com/btmesh-go/mesh-go/pkg/model"
	"github.com/btmesh-go/mesh-go/pkg/sensor"
	"github.com/btmesh-go/mesh-go/pkg/vendor"
	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// Definition is a parsed application definition.
type Definition struct {
	Root        string       `yaml:"root"`
	Application string       `yaml:"application"`
	Identity    *Identity    `yaml:"identity,omitempty"`
	Provisioner bool         `yaml:"provisioner,omitempty"`
	Elements    []ElementDef `yaml:"elements"`
}

// Identity is the composition identity of the application.
type Identity struct {
	CompanyID uint16 `yaml:"company_id"`
	ProductID uint16 `yaml:"product_id"`
	VersionID uint16 `yaml:"version_id"`
	CRPL      uint16 `yaml:"crpl,omitempty"`
}

// ElementDef defines one element.
type ElementDef struct {
	Path     string     `yaml:"path"`
	Location uint16     `yaml:"location,omitempty"`
	Models   []ModelDef `yaml:"models"`
}

// ModelDef is either the name of a registered model or an inline vendor
// model.
type ModelDef struct {
	Name   string
	Vendor *VendorDef
}

// VendorDef defines a vendor model.
type VendorDef struct {
	Company   uint16 `yaml:"company"`
	ID        uint16 `yaml:"id"`
	Publish   bool   `yaml:"publish,omitempty"`
	Subscribe bool   `yaml:"subscribe,omitempty"`
}

// UnmarshalYAML accepts a scalar model name or a mapping with a vendor key.
func (m *ModelDef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&m.Name)
	case yaml.MappingNode:
		var inline struct {
			Vendor *VendorDef `yaml:"vendor"`
		}
		if err := node.Decode(&inline); err != nil {
			return err
		}
		if inline.Vendor == nil {
			return fmt.Errorf("line %d: model mapping needs a vendor key", node.Line)
		}
		m.Vendor = inline.Vendor
		return nil
	default:
		return fmt.Errorf("line %d: model must be a name or a vendor mapping", node.Line)
	}
}

// MarshalYAML writes the model in the form it was read.
func (m ModelDef) MarshalYAML() (interface{}, error) {
	if m.Vendor != nil {
		return map[string]*VendorDef{"vendor": m.Vendor}, nil
	}
	return m.Name, nil
}

// Error describes a definition that failed to load.
type Error struct {
	// File is the definition file, empty for in-memory definitions.
	File string

	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.File != "" {
		return e.File + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Parse parses and validates a definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, &Error{Message: "failed to parse YAML", Cause: err}
	}
	if def.Root == "" {
		return nil, &Error{Message: "root is required"}
	}
	if len(def.Elements) == 0 {
		return nil, &Error{Message: "at least one element is required"}
	}
	if def.Application == "" {
		def.Application = "application"
	}
	for i, e := range def.Elements {
		if e.Path == "" {
			def.Elements[i].Path = fmt.Sprintf("ele%02d", i)
		}
	}
	return &def, nil
}

// Load reads and parses a definition file.
func Load(file string) (*Definition, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, &Error{File: file, Message: "failed to read file", Cause: err}
	}
	def, err := Parse(data)
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.File = file
		}
		return nil, err
	}
	return def, nil
}

// resolve returns p as an absolute object path below root.
func (d *Definition) resolve(p string) dbus.ObjectPath {
	if path.IsAbs(p) {
		return dbus.ObjectPath(path.Clean(p))
	}
	return dbus.ObjectPath(path.Join(d.Root, p))
}

// RootPath returns the root object path.
func (d *Definition) RootPath() dbus.ObjectPath {
	return dbus.ObjectPath(path.Clean(d.Root))
}

// Build instantiates the application. Element control handles, the agent
// and the provisioner control are left for the caller to fill in; a
// provisioner without a control is created when the definition asks for
// one.
func (d *Definition) Build(reg *model.Registry) (mesh.Application, error) {
	app := mesh.Application{Path: d.resolve(d.Application)}

	if d.Identity != nil {
		app.Identity = &mesh.Identity{
			CompanyID: wire.CompanyID(d.Identity.CompanyID),
			ProductID: d.Identity.ProductID,
			VersionID: d.Identity.VersionID,
			CRPL:      d.Identity.CRPL,
		}
	}
	if d.Provisioner {
		app.Provisioner = &mesh.Provisioner{}
	}

	for i, e := range d.Elements {
		element := mesh.Element{Path: d.resolve(e.Path), Location: e.Location}
		for _, def := range e.Models {
			m, err := def.build(reg)
			if err != nil {
				return mesh.Application{}, &Error{Message: fmt.Sprintf("element %d", i), Cause: err}
			}
			element.Models = append(element.Models, m)
		}
		app.Elements = append(app.Elements, element)
	}
	return app, nil
}

func (m ModelDef) build(reg *model.Registry) (model.Model, error) {
	if m.Vendor != nil {
		var opts []vendor.Option
		if m.Vendor.Publish {
			opts = append(opts, vendor.WithPublication())
		}
		if m.Vendor.Subscribe {
			opts = append(opts, vendor.WithSubscription())
		}
		return vendor.New(wire.CompanyID(m.Vendor.Company), m.Vendor.ID, opts...), nil
	}
	return reg.New(m.Name)
}

// NewRegistry returns a model registry with the foundation models and the
// temperature sensor models of package examples:
//
//	config-server, config-client, health-server, health-client,
//	sensor-server, sensor-client
func NewRegistry() *model.Registry {
	reg := model.NewRegistry()
	_ = reg.Register("sensor-server", func() model.Model { return sensor.NewServer(examples.TemperatureConfig()) })
	_ = reg.Register("sensor-client", func() model.Model { return sensor.NewClient(examples.TemperatureConfig()) })
	return reg
}
