// Package model groups the data types shared by the scheduler services.
//
// The `task` sub-package defines a scheduled unit of work, its composite
// identity (client~vertex~worker) and its dispatch state machine.  The `job`
// sub-package defines the per-client registry entry.  None of these types
// synchronise access on their own; the owning services guard them.
package model
