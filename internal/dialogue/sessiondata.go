package dialogue

import "maps"

// Well-known session data keys.
const (
	KeyBusinessName    = "business_name"
	KeyTaxID           = "tax_id"
	KeyEntityType      = "business_entity_type"
	KeyRelation        = "relation"
	KeyCaseID          = "case_id"
	KeyCaseName        = "case_name"
	KeyCategoryID      = "category_id"
	KeyCategoryName    = "category_name"
	KeyCaseOptions     = "case_options"
	KeyCategoryOptions = "category_options"
	KeyMeetingType     = "meeting_type"
	KeyDisplayName     = "display_name"
)

// SessionData accumulates partially collected answers across turns.
type SessionData map[string]any

// Merge returns the shallow union of existing and partial. Keys in partial
// win; no key of existing is dropped and nested values are replaced, not
// merged. Neither argument is modified.
func Merge(existing, partial SessionData) SessionData {
	out := make(SessionData, len(existing)+len(partial))
	maps.Copy(out, existing)
	maps.Copy(out, partial)
	return out
}

// String returns the value under key if it is a string.
func (d SessionData) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Options returns the value under key if it is a list of items.
func (d SessionData) Options(key string) []Item {
	items, _ := d[key].([]Item)
	return items
}

// Clone returns a shallow copy.
func (d SessionData) Clone() SessionData {
	return maps.Clone(d)
}
