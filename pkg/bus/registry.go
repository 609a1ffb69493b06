package bus

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/multierr"
)

// Exporter publishes handlers on a bus connection. *dbus.Conn implements it.
type Exporter interface {
	Export(v interface{}, path dbus.ObjectPath, iface string) error
	ExportMethodTable(methods map[string]interface{}, path dbus.ObjectPath, iface string) error
}

// Registry is the table of exported objects. Structural changes and
// snapshot reads are serialized by a single lock.
type Registry struct {
	conn   Exporter
	logger *slog.Logger

	mu      sync.Mutex
	objects map[dbus.ObjectPath]*Object
}

// NewRegistry creates an empty registry exporting through conn.
// A nil logger disables logging.
func NewRegistry(conn Exporter, logger *slog.Logger) *Registry {
	return &Registry{
		conn:    conn,
		logger:  logger,
		objects: make(map[dbus.ObjectPath]*Object),
	}
}

// Tx inserts objects within Registry.Update.
type Tx struct {
	r        *Registry
	inserted []dbus.ObjectPath
	closed   bool
}

// Update runs fn with the registry lock held. If fn returns an error, every
// object inserted through the transaction is removed again and the error,
// combined with any removal failures, is returned.
func (r *Registry) Update(fn func(tx *Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &Tx{r: r}
	err := fn(tx)
	tx.closed = true
	if err == nil {
		return nil
	}

	for i := len(tx.inserted) - 1; i >= 0; i-- {
		path := tx.inserted[i]
		err = multierr.Append(err, r.removeLocked(path))
	}
	r.debugLog("registry: transaction rolled back", "objects", len(tx.inserted), "error", err)
	return err
}

// Insert exports obj and all its interfaces.
func (tx *Tx) Insert(obj Object) error {
	if tx.closed {
		return ErrTxClosed
	}
	r := tx.r

	if !obj.Path.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPath, obj.Path)
	}
	if len(obj.Interfaces) == 0 && !obj.ObjectManager {
		return fmt.Errorf("%w: %s", ErrNoInterfaces, obj.Path)
	}
	if _, exists := r.objects[obj.Path]; exists {
		return fmt.Errorf("%w: %s", ErrObjectExists, obj.Path)
	}

	stored := obj
	stored.Interfaces = append([]Interface(nil), obj.Interfaces...)
	r.objects[obj.Path] = &stored
	tx.inserted = append(tx.inserted, obj.Path)

	if err := r.exportLocked(&stored); err != nil {
		return fmt.Errorf("export %s: %w", obj.Path, err)
	}
	r.debugLog("registry: object exported", "path", obj.Path, "interfaces", stored.exportedNames())
	return nil
}

// exportLocked exports the declared and standard interfaces of obj.
func (r *Registry) exportLocked(obj *Object) error {
	path := obj.Path
	for _, iface := range obj.Interfaces {
		if len(iface.Methods) == 0 {
			// Property-only interfaces are served through Properties.
			continue
		}
		if err := r.conn.ExportMethodTable(iface.Methods, path, iface.Name); err != nil {
			return err
		}
	}

	if obj.hasProperties() {
		if err := r.conn.ExportMethodTable(r.propertiesMethods(path), path, PropertiesInterface); err != nil {
			return err
		}
	}
	if obj.ObjectManager {
		if err := r.conn.ExportMethodTable(r.objectManagerMethods(path), path, ObjectManagerInterface); err != nil {
			return err
		}
	}
	return r.conn.ExportMethodTable(r.introspectMethods(path), path, IntrospectableInterface)
}

// removeLocked unexports every interface of the object at path.
func (r *Registry) removeLocked(path dbus.ObjectPath) error {
	obj, ok := r.objects[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrObjectUnknown, path)
	}
	delete(r.objects, path)

	var err error
	for _, name := range obj.exportedNames() {
		err = multierr.Append(err, r.conn.Export(nil, path, name))
	}
	return err
}

// RemoveSubtree unexports root and every object below it. It returns the
// number of objects removed.
func (r *Registry) RemoveSubtree(root dbus.ObjectPath) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := r.subtreeLocked(root)
	// Deepest first so a partially removed tree never has orphans.
	sort.Slice(paths, func(i, j int) bool { return len(paths[i]) > len(paths[j]) })

	var err error
	for _, path := range paths {
		err = multierr.Append(err, r.removeLocked(path))
	}
	r.debugLog("registry: subtree removed", "root", root, "objects", len(paths))
	return len(paths), err
}

// Has reports whether an object is exported at path.
func (r *Registry) Has(path dbus.ObjectPath) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.objects[path]
	return ok
}

// Paths returns all exported object paths in sorted order.
func (r *Registry) Paths() []dbus.ObjectPath {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]dbus.ObjectPath, 0, len(r.objects))
	for path := range r.objects {
		out = append(out, path)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of exported objects.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objects)
}

// ManagedObjects returns the interfaces and properties of every object
// strictly below root, in the form of ObjectManager.GetManagedObjects.
func (r *Registry) ManagedObjects(root dbus.ObjectPath) map[dbus.ObjectPath]map[string]map[string]dbus.Variant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.managedObjectsLocked(root)
}

func (r *Registry) managedObjectsLocked(root dbus.ObjectPath) map[dbus.ObjectPath]map[string]map[string]dbus.Variant {
	out := make(map[dbus.ObjectPath]map[string]map[string]dbus.Variant)
	for _, path := range r.subtreeLocked(root) {
		if path == root {
			continue
		}
		obj := r.objects[path]
		ifaces := make(map[string]map[string]dbus.Variant, len(obj.Interfaces))
		for _, iface := range obj.Interfaces {
			props, _ := obj.properties(iface.Name)
			ifaces[iface.Name] = props
		}
		out[path] = ifaces
	}
	return out
}

// subtreeLocked returns root and all registered paths below it.
func (r *Registry) subtreeLocked(root dbus.ObjectPath) []dbus.ObjectPath {
	var out []dbus.ObjectPath
	for path := range r.objects {
		if IsDescendant(root, path) || path == root {
			out = append(out, path)
		}
	}
	return out
}

// childrenLocked returns the names of the direct children of path, including
// intermediate nodes that have no object of their own.
func (r *Registry) childrenLocked(path dbus.ObjectPath) []string {
	seen := make(map[string]struct{})
	for p := range r.objects {
		if !IsDescendant(path, p) {
			continue
		}
		rest := strings.TrimPrefix(string(p), string(path))
		rest = strings.TrimPrefix(rest, "/")
		name, _, _ := strings.Cut(rest, "/")
		seen[name] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) debugLog(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

// IsDescendant reports whether path lies strictly below root.
func IsDescendant(root, path dbus.ObjectPath) bool {
	if root == "/" {
		return path != "/" && strings.HasPrefix(string(path), "/")
	}
	return strings.HasPrefix(string(path), string(root)+"/")
}
