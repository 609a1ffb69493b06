package bus

import (
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

// propertiesMethods serves org.freedesktop.DBus.Properties for path.
// Properties are read-only.
func (r *Registry) propertiesMethods(path dbus.ObjectPath) map[string]interface{} {
	lookup := func(iface string) (map[string]dbus.Variant, *dbus.Error) {
		r.mu.Lock()
		obj, ok := r.objects[path]
		r.mu.Unlock()
		if !ok {
			return nil, prop.ErrIfaceNotFound
		}
		props, ok := obj.properties(iface)
		if !ok {
			return nil, prop.ErrIfaceNotFound
		}
		return props, nil
	}

	return map[string]interface{}{
		"Get": func(iface, name string) (dbus.Variant, *dbus.Error) {
			props, err := lookup(iface)
			if err != nil {
				return dbus.Variant{}, err
			}
			v, ok := props[name]
			if !ok {
				return dbus.Variant{}, prop.ErrPropNotFound
			}
			return v, nil
		},
		"GetAll": func(iface string) (map[string]dbus.Variant, *dbus.Error) {
			return lookup(iface)
		},
		"Set": func(iface, name string, _ dbus.Variant) *dbus.Error {
			props, err := lookup(iface)
			if err != nil {
				return err
			}
			if _, ok := props[name]; !ok {
				return prop.ErrPropNotFound
			}
			return prop.ErrReadOnly
		},
	}
}

// objectManagerMethods serves org.freedesktop.DBus.ObjectManager for root.
func (r *Registry) objectManagerMethods(root dbus.ObjectPath) map[string]interface{} {
	return map[string]interface{}{
		"GetManagedObjects": func() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, *dbus.Error) {
			return r.ManagedObjects(root), nil
		},
	}
}

// introspectMethods serves org.freedesktop.DBus.Introspectable for path.
func (r *Registry) introspectMethods(path dbus.ObjectPath) map[string]interface{} {
	return map[string]interface{}{
		"Introspect": func() (string, *dbus.Error) {
			return r.Introspect(path), nil
		},
	}
}

// Introspect returns the introspection XML of path, listing the declared
// interfaces and the child nodes currently registered.
func (r *Registry) Introspect(path dbus.ObjectPath) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	node := &introspect.Node{Name: string(path)}
	if obj, ok := r.objects[path]; ok {
		node.Interfaces = obj.introspectInterfaces()
		if obj.hasProperties() {
			node.Interfaces = append(node.Interfaces, prop.IntrospectData)
		}
		if obj.ObjectManager {
			node.Interfaces = append(node.Interfaces, objectManagerIntrospectData)
		}
	}
	for _, child := range r.childrenLocked(path) {
		node.Children = append(node.Children, introspect.Node{Name: child})
	}
	return string(introspect.NewIntrospectable(node))
}

var objectManagerIntrospectData = introspect.Interface{
	Name: ObjectManagerInterface,
	Methods: []introspect.Method{
		{
			Name: "GetManagedObjects",
			Args: []introspect.Arg{
				{Name: "objects", Type: "a{oa{sa{sv}}}", Direction: "out"},
			},
		},
	},
	Signals: []introspect.Signal{
		{
			Name: "InterfacesAdded",
			Args: []introspect.Arg{
				{Name: "object", Type: "o"},
				{Name: "interfaces", Type: "a{sa{sv}}"},
			},
		},
		{
			Name: "InterfacesRemoved",
			Args: []introspect.Arg{
				{Name: "object", Type: "o"},
				{Name: "interfaces", Type: "as"},
			},
		},
	},
}
