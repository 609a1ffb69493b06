package model

import (
	"fmt"

	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// ModelIdentifier identifies a model type. It is either a SIG model
// identifier or a vendor (company, model) pair.
type ModelIdentifier struct {
	company wire.CompanyID
	id      uint16
	vendor  bool
}

// SIG returns the identifier of a Bluetooth SIG defined model.
func SIG(id uint16) ModelIdentifier {
	return ModelIdentifier{id: id}
}

// Vendor returns the identifier of a vendor model.
func Vendor(company wire.CompanyID, id uint16) ModelIdentifier {
	return ModelIdentifier{company: company, id: id, vendor: true}
}

// IsVendor reports whether this is a vendor model identifier.
func (m ModelIdentifier) IsVendor() bool {
	return m.vendor
}

// ID returns the 16-bit model identifier. For vendor models this excludes
// the company identifier.
func (m ModelIdentifier) ID() uint16 {
	return m.id
}

// Company returns the company identifier of a vendor model.
func (m ModelIdentifier) Company() (wire.CompanyID, bool) {
	return m.company, m.vendor
}

// String returns a printable representation, e.g. "SIG(0x1100)".
func (m ModelIdentifier) String() string {
	if m.vendor {
		return fmt.Sprintf("Vendor(%s, 0x%04X)", m.company, m.id)
	}
	return fmt.Sprintf("SIG(0x%04X)", m.id)
}

// Foundation model identifiers.
var (
	ConfigurationServerID = SIG(0x0000)
	ConfigurationClientID = SIG(0x0001)
	HealthServerID        = SIG(0x0002)
	HealthClientID        = SIG(0x0003)
)
