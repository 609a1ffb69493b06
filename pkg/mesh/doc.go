// Package mesh connects applications to the BlueZ mesh daemon.
//
// The daemon (bluetooth-meshd) owns the mesh network: bearers, keys,
// provisioning cryptography and the transport layers. Applications take
// part by exporting an object tree on D-Bus that the daemon calls into,
// and by calling the daemon's Network1, Node1 and Management1 interfaces.
//
// # Object Tree
//
// RegisterApplication exports the following objects below a root path:
//
//	<root>                 org.freedesktop.DBus.ObjectManager
//	<root>/agent           org.bluez.mesh.ProvisionAgent1
//	<app>                  org.bluez.mesh.Application1 (+ Provisioner1)
//	<element path>         org.bluez.mesh.Element1, one per element
//
// The application and element paths must lie below the root. Elements
// are numbered by their position in Application.Elements.
//
// # Receiving Messages
//
// Each element may carry an ElementControlHandle. Messages the daemon
// delivers to the element are parsed into an ElementMessage and sent on
// the handle's channel, which holds a single message. Delivery waits for
// the consumer for at most Config.DeliveryTimeout; on timeout the daemon
// is answered with org.bluez.Error.InProgress. Elements without a handle
// drop their messages.
//
//	ctrl, handle := mesh.NewElementControl()
//	app := mesh.Application{
//	    Path: "/sensor/application",
//	    Elements: []mesh.Element{{
//	        Path:    "/sensor/ele00",
//	        Models:  []model.Model{client},
//	        Control: handle,
//	    }},
//	}
//	reg, err := session.RegisterApplication(ctx, "/sensor", app)
//	...
//	defer reg.Unregister()
//	for msg := range ctrl.Messages() {
//	    ...
//	}
//
// # Sending Messages
//
// Network.Attach returns the Node for a registered application. Node.Publish
// encodes a model message and hands it to the daemon, which sends it to the
// publication address configured for the model.
package mesh
