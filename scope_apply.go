package kstore

// apply removes, upserts and re-sequences items. Keys the working list holds
// that TargetOrder does not mention keep their relative order after the
// sequenced ones.
func (d OrderedDiff[K, V]) apply(scope string, items []V, key func(V) K, clone func(V) V) ([]V, error) {
	if !d.HasChanges() {
		return items, nil
	}

	working := make(map[K]V, len(items))
	order := make([]K, 0, len(items)+len(d.Added))
	for _, item := range items {
		k := key(item)
		working[k] = item
		order = append(order, k)
	}

	for _, k := range d.Removed {
		if _, ok := working[k]; !ok {
			return nil, &StaleBaseError{Scope: scope, Key: describeKey(k), Action: ActionRemoved}
		}
		delete(working, k)
	}
	for _, item := range d.Modified {
		k := key(item)
		if _, ok := working[k]; !ok {
			return nil, &StaleBaseError{Scope: scope, Key: describeKey(k), Action: ActionModified}
		}
		working[k] = clone(item)
	}
	for _, added := range d.Added {
		k := key(added.Item)
		if _, ok := working[k]; !ok {
			order = append(order, k)
		}
		working[k] = clone(added.Item)
	}

	out := make([]V, 0, len(working))
	placed := make(map[K]struct{}, len(working))
	for _, k := range d.TargetOrder {
		item, ok := working[k]
		if !ok {
			continue
		}
		if _, dup := placed[k]; dup {
			continue
		}
		placed[k] = struct{}{}
		out = append(out, item)
	}
	for _, k := range order {
		item, ok := working[k]
		if !ok {
			continue
		}
		if _, done := placed[k]; done {
			continue
		}
		placed[k] = struct{}{}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (d MappingDiff[K, V]) apply(scope string, m map[K]V, clone func(V) V) (map[K]V, error) {
	if !d.HasChanges() {
		return m, nil
	}
	out := make(map[K]V, len(m)+len(d.Added))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range d.Removed {
		if _, ok := out[k]; !ok {
			return nil, &StaleBaseError{Scope: scope, Key: string(k), Action: ActionRemoved}
		}
		delete(out, k)
	}
	for _, k := range sortedKeys(d.Modified) {
		if _, ok := out[k]; !ok {
			return nil, &StaleBaseError{Scope: scope, Key: string(k), Action: ActionModified}
		}
		out[k] = clone(d.Modified[k])
	}
	for k, v := range d.Added {
		out[k] = clone(v)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (d ValueDiff[T]) apply(current T) T {
	if !d.Changed {
		return current
	}
	return d.Value
}
