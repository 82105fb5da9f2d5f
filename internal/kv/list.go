package kv

// listRecord is the on-disk shape of a list (the wait and active lists).
// Index 0 is the head.
type listRecord struct {
	Values []string `json:"values"`
}

func (t *Tx) loadList(key string) (listRecord, error) {
	var rec listRecord
	_, err := t.getJSON(key, &rec)
	return rec, err
}

// LPush inserts value at the head of the list at key.
func (t *Tx) LPush(key, value string) error {
	rec, err := t.loadList(key)
	if err != nil {
		return err
	}
	rec.Values = append([]string{value}, rec.Values...)
	return t.putJSON(key, rec)
}

// RPush appends value at the tail of the list at key.
func (t *Tx) RPush(key, value string) error {
	rec, err := t.loadList(key)
	if err != nil {
		return err
	}
	rec.Values = append(rec.Values, value)
	return t.putJSON(key, rec)
}

// LPop removes and returns the head of the list at key.
func (t *Tx) LPop(key string) (string, bool, error) {
	rec, err := t.loadList(key)
	if err != nil || len(rec.Values) == 0 {
		return "", false, err
	}
	v := rec.Values[0]
	rec.Values = rec.Values[1:]
	if err := t.putJSON(key, rec); err != nil {
		return "", false, err
	}
	return v, true, nil
}

// RPop removes and returns the tail of the list at key.
func (t *Tx) RPop(key string) (string, bool, error) {
	rec, err := t.loadList(key)
	if err != nil || len(rec.Values) == 0 {
		return "", false, err
	}
	last := len(rec.Values) - 1
	v := rec.Values[last]
	rec.Values = rec.Values[:last]
	if err := t.putJSON(key, rec); err != nil {
		return "", false, err
	}
	return v, true, nil
}

// LRem removes the first occurrence of value from the list at key. Used to
// pull a job out of the active list on finish/retry.
func (t *Tx) LRem(key, value string) (bool, error) {
	rec, err := t.loadList(key)
	if err != nil {
		return false, err
	}
	for i, v := range rec.Values {
		if v == value {
			rec.Values = append(rec.Values[:i], rec.Values[i+1:]...)
			return true, t.putJSON(key, rec)
		}
	}
	return false, nil
}

// LLen returns the number of elements in the list at key.
func (t *Tx) LLen(key string) (int, error) {
	rec, err := t.loadList(key)
	if err != nil {
		return 0, err
	}
	return len(rec.Values), nil
}

// LMembers returns every element of the list at key, head first.
func (t *Tx) LMembers(key string) ([]string, error) {
	rec, err := t.loadList(key)
	if err != nil {
		return nil, err
	}
	return rec.Values, nil
}
