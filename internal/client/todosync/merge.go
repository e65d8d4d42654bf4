package todosync

import (
	"encoding/json"
	"fmt"
)

// merge builds the local list from the server objects, in server order.
// For an id also present in cached, fields the server sent win and fields
// it omitted keep their cached value. Cached-only ids are dropped.
func merge(items []json.RawMessage, cached []Todo) ([]Todo, error) {
	byID := make(map[string]Todo, len(cached))
	for _, t := range cached {
		byID[t.ID] = t
	}

	out := make([]Todo, 0, len(items))
	for _, raw := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("todosync: decode server todo: %w", err)
		}
		var id string
		if err := json.Unmarshal(fields["id"], &id); err != nil || id == "" {
			return nil, fmt.Errorf("todosync: server todo without id: %s", raw)
		}

		combined := make(map[string]json.RawMessage, len(fields))
		if prev, ok := byID[id]; ok {
			b, err := json.Marshal(prev)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(b, &combined); err != nil {
				return nil, err
			}
		}
		for k, v := range fields {
			combined[k] = v
		}

		b, err := json.Marshal(combined)
		if err != nil {
			return nil, err
		}
		var t Todo
		if err := json.Unmarshal(b, &t); err != nil {
			return nil, fmt.Errorf("todosync: decode merged todo %s: %w", id, err)
		}
		out = append(out, t)
	}
	return out, nil
}
