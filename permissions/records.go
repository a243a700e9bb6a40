package permissions

import "encoding/json"

// The backend has shipped permission records in three shapes over time:
// bare names, {name} objects, and {permission:{name}} wrappers. All three
// must normalize identically.
type wrappedRecord struct {
	Name       string `json:"name"`
	Permission *struct {
		Name string `json:"name"`
	} `json:"permission"`
}

// NormalizeRecords flattens raw permission records into a deduplicated list
// of permission names, tolerating every record shape the backend has used.
// Unrecognizable records are skipped rather than failing the whole set.
func NormalizeRecords(records []json.RawMessage) []string {
	if len(records) == 0 {
		return nil
	}

	names := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	add := func(name string) {
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	for _, raw := range records {
		var bare string
		if err := json.Unmarshal(raw, &bare); err == nil {
			add(bare)
			continue
		}
		var wrapped wrappedRecord
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			continue
		}
		if wrapped.Permission != nil && wrapped.Permission.Name != "" {
			add(wrapped.Permission.Name)
			continue
		}
		add(wrapped.Name)
	}

	if len(names) == 0 {
		return nil
	}
	return names
}
