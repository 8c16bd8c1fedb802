package types

import "sync/atomic"

// DefaultVendor is the product label shown in debug representations until a
// driver calls SetVendor.
const DefaultVendor = "nosqlapi"

var vendor atomic.Value

func init() {
	vendor.Store(DefaultVendor)
}

// SetVendor overrides the product label used by String methods of the
// driver bases. An empty name restores DefaultVendor.
func SetVendor(name string) {
	if name == "" {
		name = DefaultVendor
	}
	vendor.Store(name)
}

// Vendor returns the current product label.
func Vendor() string {
	return vendor.Load().(string)
}
