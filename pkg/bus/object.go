package bus

import (
	"sort"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

// Standard interface names.
const (
	PropertiesInterface     = "org.freedesktop.DBus.Properties"
	IntrospectableInterface = "org.freedesktop.DBus.Introspectable"
	ObjectManagerInterface  = "org.freedesktop.DBus.ObjectManager"
)

// PropertyFunc returns the current property values of an interface.
type PropertyFunc func() map[string]dbus.Variant

// Interface is one D-Bus interface of an object.
type Interface struct {
	Name string

	// Methods maps method names to handler functions. Handlers follow the
	// godbus conventions: the last return value is a *dbus.Error.
	Methods map[string]interface{}

	// MethodSpecs describes the methods for introspection.
	MethodSpecs []introspect.Method

	// Properties returns the read-only properties of the interface. Nil
	// means the interface has none.
	Properties PropertyFunc
}

// Object is a set of interfaces exported at a path.
type Object struct {
	Path       dbus.ObjectPath
	Interfaces []Interface

	// ObjectManager exports org.freedesktop.DBus.ObjectManager at Path,
	// reporting every registered object below it.
	ObjectManager bool
}

// properties returns the property values of the named interface.
func (o *Object) properties(iface string) (map[string]dbus.Variant, bool) {
	for _, i := range o.Interfaces {
		if i.Name != iface {
			continue
		}
		if i.Properties == nil {
			return map[string]dbus.Variant{}, true
		}
		return i.Properties(), true
	}
	return nil, false
}

func (o *Object) hasProperties() bool {
	for _, i := range o.Interfaces {
		if i.Properties != nil {
			return true
		}
	}
	return false
}

// exportedNames returns every interface name exported for the object,
// including the standard interfaces served by the registry.
func (o *Object) exportedNames() []string {
	names := make([]string, 0, len(o.Interfaces)+3)
	for _, i := range o.Interfaces {
		names = append(names, i.Name)
	}
	if o.hasProperties() {
		names = append(names, PropertiesInterface)
	}
	if o.ObjectManager {
		names = append(names, ObjectManagerInterface)
	}
	names = append(names, IntrospectableInterface)
	return names
}

// introspectInterfaces describes the declared interfaces of the object.
func (o *Object) introspectInterfaces() []introspect.Interface {
	out := make([]introspect.Interface, 0, len(o.Interfaces))
	for _, i := range o.Interfaces {
		desc := introspect.Interface{Name: i.Name, Methods: i.MethodSpecs}
		if i.Properties != nil {
			props := i.Properties()
			names := make([]string, 0, len(props))
			for name := range props {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				desc.Properties = append(desc.Properties, introspect.Property{
					Name:   name,
					Type:   props[name].Signature().String(),
					Access: "read",
				})
			}
		}
		out = append(out, desc)
	}
	return out
}
