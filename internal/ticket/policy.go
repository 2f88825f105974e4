package ticket

import "strings"

// Policy makes the access decisions for ticket creation and closure. Pure
// decision functions over supplied facts; no side effects.
type Policy struct {
	Prefix     string // ticket channel name prefix, e.g. "ticket-"
	CategoryID string // category ticket channels must live under
}

// FindOpen returns the first channel in existing that looks like an open
// ticket for ownerKey: prefixed name, name contains the owner key, parented
// to the ticket category. Linear scan; fine at support-ticket volumes.
func (p Policy) FindOpen(ownerKey string, existing []Channel) *Channel {
	if ownerKey == "" {
		return nil
	}
	for i := range existing {
		ch := &existing[i]
		if ch.ParentID != p.CategoryID {
			continue
		}
		if !strings.HasPrefix(ch.Name, p.Prefix) {
			continue
		}
		if strings.Contains(ch.Name, ownerKey) {
			return ch
		}
	}
	return nil
}

// CanCreate reports whether a new ticket may be created for ownerKey given
// the current channels under the ticket category.
func (p Policy) CanCreate(ownerKey string, existing []Channel) bool {
	return p.FindOpen(ownerKey, existing) == nil
}

// CanClose reports whether the actor may close the ticket channel: the
// channel name contains the actor's owner key (creator heuristic), or the
// actor holds the staff capability. The staff fact is resolved by the
// caller so that an unresolvable staff role fails closed before this runs.
func (p Policy) CanClose(actor Actor, hasStaff bool, ch Channel) bool {
	if hasStaff {
		return true
	}
	key := OwnerKey(actor.Tag)
	return key != "" && strings.Contains(ch.Name, key)
}
