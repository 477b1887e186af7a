package grid

import "github.com/JonMunkholm/factoryinv/internal/inventory"

// CellDiff is the edit status of one cell.
type CellDiff struct {
	Changed bool `json:"changed"`
}

// StyleFor reports whether field of row rowID differs between the overlay
// and the snapshot. Rows without an overlay entry are never changed. A row
// missing from the snapshot compares against empty values, so any
// non-empty field of a new row counts as changed.
func StyleFor(overlay *Overlay, snapshot *SnapshotStore, rowID, field string) CellDiff {
	edited, ok := overlay.Get(rowID)
	if !ok {
		return CellDiff{}
	}
	original, _ := snapshot.Find(rowID)
	return CellDiff{Changed: FieldChanged(edited, original, field)}
}

// FieldChanged compares one field of two rows. Absent keys read as "".
func FieldChanged(edited, original inventory.Row, field string) bool {
	return edited.Get(field) != original.Get(field)
}

// ChangedFields lists the known fields that differ between the rows.
func ChangedFields(edited, original inventory.Row) []string {
	var out []string
	for _, f := range inventory.Fields() {
		if FieldChanged(edited, original, f.Name) {
			out = append(out, f.Name)
		}
	}
	return out
}
