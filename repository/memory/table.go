package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"example.com/backstage/services/fleet/repository"
)

const zeroTime = "0001-01-01T00:00:00Z"

type table[T any] struct {
	store  *Store
	name   string
	unique []string
}

func (t *table[T]) FindByID(ctx context.Context, id string) (*T, error) {
	var entity *T
	err := t.store.access(ctx, func(d *database) error {
		rec, ok := d.table(t.name)[id]
		if !ok {
			return repository.ErrNotFound
		}
		e, err := decode[T](rec.doc)
		entity = e
		return err
	})
	return entity, err
}

func (t *table[T]) FindMany(ctx context.Context, q repository.Query) ([]T, error) {
	var entities []T
	err := t.store.access(ctx, func(d *database) error {
		matched, err := t.filter(d, q.Where)
		if err != nil {
			return err
		}
		sortRecords(matched, q.OrderBy, q.Desc)

		if q.Offset > 0 {
			if q.Offset >= len(matched) {
				matched = nil
			} else {
				matched = matched[q.Offset:]
			}
		}
		if q.Limit > 0 && len(matched) > q.Limit {
			matched = matched[:q.Limit]
		}

		entities = make([]T, 0, len(matched))
		for _, rec := range matched {
			e, err := decode[T](rec.doc)
			if err != nil {
				return err
			}
			entities = append(entities, *e)
		}
		return nil
	})
	return entities, err
}

func (t *table[T]) Count(ctx context.Context, where map[string]interface{}) (int64, error) {
	var count int64
	err := t.store.access(ctx, func(d *database) error {
		matched, err := t.filter(d, where)
		count = int64(len(matched))
		return err
	})
	return count, err
}

func (t *table[T]) Exists(ctx context.Context, where map[string]interface{}, excludeID string) (bool, error) {
	var found bool
	err := t.store.access(ctx, func(d *database) error {
		matched, err := t.filter(d, where)
		if err != nil {
			return err
		}
		for _, rec := range matched {
			if rec.doc["id"] != excludeID {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

func (t *table[T]) Create(ctx context.Context, entity *T) error {
	return t.store.access(ctx, func(d *database) error {
		doc, err := encode(entity)
		if err != nil {
			return err
		}
		id, _ := doc["id"].(string)
		if id == "" {
			return fmt.Errorf("%s: missing id", t.name)
		}
		rows := d.table(t.name)
		if _, exists := rows[id]; exists {
			return fmt.Errorf("%w: %s.id", repository.ErrDuplicateKey, t.name)
		}
		if err := t.checkUnique(rows, id, doc); err != nil {
			return err
		}

		now := normalizeTime(time.Now().UTC())
		for _, col := range []string{"created_at", "updated_at"} {
			if v, ok := doc[col]; ok && (v == nil || v == zeroTime) {
				doc[col] = now
			}
		}

		d.seq++
		rows[id] = &record{seq: d.seq, doc: doc}

		// reflect generated timestamps back into the caller's value
		created, err := decode[T](doc)
		if err != nil {
			return err
		}
		*entity = *created
		return nil
	})
}

func (t *table[T]) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return t.store.access(ctx, func(d *database) error {
		rows := d.table(t.name)
		rec, ok := rows[id]
		if !ok {
			return repository.ErrNotFound
		}
		return t.apply(rows, rec, fields)
	})
}

func (t *table[T]) UpdateWhere(ctx context.Context, id string, guard, fields map[string]interface{}) (bool, error) {
	var updated bool
	err := t.store.access(ctx, func(d *database) error {
		rows := d.table(t.name)
		rec, ok := rows[id]
		if !ok {
			return nil
		}
		matches, err := match(rec.doc, guard)
		if err != nil || !matches {
			return err
		}
		if err := t.apply(rows, rec, fields); err != nil {
			return err
		}
		updated = true
		return nil
	})
	return updated, err
}

func (t *table[T]) Delete(ctx context.Context, id string) error {
	return t.store.access(ctx, func(d *database) error {
		rows := d.table(t.name)
		if _, ok := rows[id]; !ok {
			return repository.ErrNotFound
		}
		delete(rows, id)
		return nil
	})
}

func (t *table[T]) DeleteWhere(ctx context.Context, where map[string]interface{}) (int64, error) {
	if len(where) == 0 {
		return 0, fmt.Errorf("refusing to delete without conditions")
	}
	var deleted int64
	err := t.store.access(ctx, func(d *database) error {
		matched, err := t.filter(d, where)
		if err != nil {
			return err
		}
		rows := d.table(t.name)
		for _, rec := range matched {
			delete(rows, rec.doc["id"].(string))
			deleted++
		}
		return nil
	})
	return deleted, err
}

// apply replaces rec with a copy carrying the new field values. Records are
// never mutated in place because transaction snapshots share them.
func (t *table[T]) apply(rows map[string]*record, rec *record, fields map[string]interface{}) error {
	doc := make(map[string]interface{}, len(rec.doc))
	for k, v := range rec.doc {
		doc[k] = v
	}
	for col, value := range fields {
		if _, ok := doc[col]; !ok {
			return fmt.Errorf("%s: unknown column %q", t.name, col)
		}
		normalized, err := normalize(value)
		if err != nil {
			return err
		}
		doc[col] = normalized
	}
	if _, ok := doc["updated_at"]; ok {
		if _, explicit := fields["updated_at"]; !explicit {
			doc["updated_at"] = normalizeTime(time.Now().UTC())
		}
	}

	// the document must still decode into the model
	if _, err := decode[T](doc); err != nil {
		return fmt.Errorf("%s: invalid update: %w", t.name, err)
	}

	id := doc["id"].(string)
	if err := t.checkUnique(rows, id, doc); err != nil {
		return err
	}
	rows[id] = &record{seq: rec.seq, doc: doc}
	return nil
}

func (t *table[T]) checkUnique(rows map[string]*record, id string, doc map[string]interface{}) error {
	for _, col := range t.unique {
		value := doc[col]
		if value == nil || value == "" {
			continue
		}
		for otherID, other := range rows {
			if otherID != id && reflect.DeepEqual(other.doc[col], value) {
				return fmt.Errorf("%w: %s.%s", repository.ErrDuplicateKey, t.name, col)
			}
		}
	}
	return nil
}

func (t *table[T]) filter(d *database, where map[string]interface{}) ([]*record, error) {
	var matched []*record
	for _, rec := range d.table(t.name) {
		ok, err := match(rec.doc, where)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.name, err)
		}
		if ok {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

func match(doc map[string]interface{}, where map[string]interface{}) (bool, error) {
	for col, value := range where {
		got, ok := doc[col]
		if !ok {
			return false, fmt.Errorf("unknown column %q", col)
		}
		want, err := normalize(value)
		if err != nil {
			return false, err
		}
		if options, isList := want.([]interface{}); isList {
			found := false
			for _, option := range options {
				if reflect.DeepEqual(got, option) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
			continue
		}
		if !reflect.DeepEqual(got, want) {
			return false, nil
		}
	}
	return true, nil
}

func sortRecords(records []*record, orderBy string, desc bool) {
	sort.SliceStable(records, func(i, j int) bool {
		c := 0
		if orderBy != "" {
			c = compareValues(records[i].doc[orderBy], records[j].doc[orderBy])
		}
		if c == 0 {
			c = compareInt(records[i].seq, records[j].seq)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			at, aerr := time.Parse(time.RFC3339Nano, av)
			bt, berr := time.Parse(time.RFC3339Nano, bv)
			if aerr == nil && berr == nil {
				return at.Compare(bt)
			}
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok && av != bv {
			if !av {
				return -1
			}
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func encode(entity interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decode[T any](doc map[string]interface{}) (*T, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var entity T
	if err := json.Unmarshal(raw, &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}

func normalize(value interface{}) (interface{}, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
