package kv

// setRecord is the on-disk shape of an unordered set (the dependencies set
// and the stalled-watch set).
type setRecord struct {
	Members map[string]bool `json:"members"`
}

// SAdd adds members to the set at key, creating it if absent. Returns the
// number of members newly added (already-present members don't count).
func (t *Tx) SAdd(key string, members ...string) (int, error) {
	var rec setRecord
	ok, err := t.getJSON(key, &rec)
	if err != nil {
		return 0, err
	}
	if !ok || rec.Members == nil {
		rec.Members = map[string]bool{}
	}
	added := 0
	for _, m := range members {
		if !rec.Members[m] {
			rec.Members[m] = true
			added++
		}
	}
	if err := t.putJSON(key, rec); err != nil {
		return 0, err
	}
	return added, nil
}

// SRem removes members from the set at key.
func (t *Tx) SRem(key string, members ...string) error {
	var rec setRecord
	ok, err := t.getJSON(key, &rec)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(rec.Members, m)
	}
	return t.putJSON(key, rec)
}

// SMembers returns every member of the set at key.
func (t *Tx) SMembers(key string) ([]string, error) {
	var rec setRecord
	ok, err := t.getJSON(key, &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(rec.Members))
	for m := range rec.Members {
		out = append(out, m)
	}
	return out, nil
}

// SCard returns the number of members in the set at key.
func (t *Tx) SCard(key string) (int, error) {
	members, err := t.SMembers(key)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// SIsMember reports whether member is present in the set at key.
func (t *Tx) SIsMember(key, member string) (bool, error) {
	var rec setRecord
	ok, err := t.getJSON(key, &rec)
	if err != nil || !ok {
		return false, err
	}
	return rec.Members[member], nil
}
