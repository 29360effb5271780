package store

import (
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// The helpers below give the embedded backends the same document semantics
// as MongoDB: documents are bson.M trees, equality is bson value equality and
// updates follow $set / $unset on dotted paths.

// toDocument converts a bson-tagged value into a bson.M.
func toDocument(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}

// toValue converts a single value into its bson representation, so that a
// struct assigned through $set is stored the same way InsertOne stores it.
func toValue(v any) (any, error) {
	doc, err := toDocument(bson.M{"v": v})
	if err != nil {
		return nil, err
	}
	return doc["v"], nil
}

// decodeDocument decodes doc into out.
func decodeDocument(doc bson.M, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return nil
}

// decodeDocuments decodes docs into out, a pointer to a slice.
func decodeDocuments(docs []bson.M, out any) error {
	ptr := reflect.ValueOf(out)
	if ptr.Kind() != reflect.Pointer || ptr.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("out must be a pointer to a slice, got %T", out)
	}

	slice := ptr.Elem()
	result := reflect.MakeSlice(slice.Type(), 0, len(docs))
	elemType := slice.Type().Elem()

	for _, doc := range docs {
		elem := reflect.New(elemType)
		if err := decodeDocument(doc, elem.Interface()); err != nil {
			return err
		}
		result = reflect.Append(result, elem.Elem())
	}

	slice.Set(result)
	return nil
}

// normalizeFilter converts the id filter into an ObjectID.
func normalizeFilter(filter Filter) (bson.M, error) {
	out := bson.M{}
	for k, v := range filter {
		if k == IDField {
			if s, ok := v.(string); ok {
				oid, err := ParseID(s)
				if err != nil {
					return nil, err
				}
				v = oid
			}
		}
		out[k] = v
	}
	return out, nil
}

// matches reports whether doc satisfies every equality in filter.
func matches(doc bson.M, filter bson.M) (bool, error) {
	for path, want := range filter {
		got, ok := lookup(doc, path)
		if !ok {
			return false, nil
		}
		eq, err := equalValues(got, want)
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

func equalValues(a, b any) (bool, error) {
	ta, da, err := bson.MarshalValue(a)
	if err != nil {
		return false, fmt.Errorf("encoding value: %w", err)
	}
	tb, db, err := bson.MarshalValue(b)
	if err != nil {
		return false, fmt.Errorf("encoding value: %w", err)
	}
	return bson.RawValue{Type: ta, Value: da}.Equal(bson.RawValue{Type: tb, Value: db}), nil
}

func lookup(doc bson.M, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = doc
	for _, p := range parts {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// applyUpdate applies $set then $unset semantics to doc in place.
func applyUpdate(doc bson.M, update Update) error {
	for path, v := range update.Set {
		if path == IDField {
			return fmt.Errorf("cannot modify %s", IDField)
		}
		val, err := toValue(v)
		if err != nil {
			return err
		}
		if err := setPath(doc, path, val); err != nil {
			return err
		}
	}
	for _, path := range update.Unset {
		unsetPath(doc, path)
	}
	return nil
}

func setPath(doc bson.M, path string, v any) error {
	parts := strings.Split(path, ".")
	cur := doc
	for i, p := range parts[:len(parts)-1] {
		next, ok := cur[p]
		if !ok || next == nil {
			m := bson.M{}
			cur[p] = m
			cur = m
			continue
		}
		m, ok := asMap(next)
		if !ok {
			return fmt.Errorf("cannot set %s: %s is not a document", path, strings.Join(parts[:i+1], "."))
		}
		// keep the converted map in the tree so the write below is visible
		cur[p] = m
		cur = m
	}
	cur[parts[len(parts)-1]] = v
	return nil
}

func unsetPath(doc bson.M, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		m, ok := asMap(cur[p])
		if !ok {
			return
		}
		cur[p] = m
		cur = m
	}
	delete(cur, parts[len(parts)-1])
}

func asMap(v any) (bson.M, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]any:
		return bson.M(m), true
	case bson.D:
		out := make(bson.M, len(m))
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out, true
	default:
		return nil, false
	}
}
