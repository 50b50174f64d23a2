// Package capability holds what is known about each product: the static
// product table (declared function support, firmware gating, parameter
// ranges, command-template overrides) and the per-device resolved
// capability set.
//
// The product table is loaded once, from the embedded products.yaml or an
// override file, and is immutable for the rest of the run. Per-device
// resolved capabilities are the mutable part; they are owned by the host
// through the Store interface, and only the capability probe updates them.
//
// Not every product declares its capabilities. Records without a declared
// set return ErrUnknownProduct from Lookup-driven resolution, which is the
// designed trigger for active probing, never a refusal to operate the
// device.
package capability
