package model

import "time"

// Establishment groups the chalets of one outfitter under a single
// owner.  Guides are not attached to an establishment.  This struct
// corresponds to a row in the `establishments` table.
type Establishment struct {
	ID        uint64    // establishments.id
	OwnerID   uint64    // establishments.owner_id
	Name      string    // establishments.name
	Region    *string   // establishments.region (nullable)
	CreatedAt time.Time // establishments.created_at
	UpdatedAt time.Time // establishments.updated_at
}
