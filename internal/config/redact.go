package config

import "reflect"

// Classification is a field's security tier, declared via the `bmad` struct
// tag on Config's fields.
type Classification string

const (
	// Safe fields are freely editable via the dashboard.
	Safe Classification = "safe"
	// Risky fields are editable but flagged; changing them may break workflows.
	Risky Classification = "risky"
	// Dangerous fields are never exposed via schema/export; Redact replaces
	// their value with the literal string "***REDACTED***".
	Dangerous Classification = "dangerous"
)

const redactedPlaceholder = "***REDACTED***"

// Redact returns a copy of cfg, leaving cfg unchanged, with every field
// tagged `bmad:"dangerous"` replaced by the literal string "***REDACTED***".
// Maps are rebuilt in the copy; slices are shared with cfg. It is used when writing
// the effective-config snapshot and when exporting config via the dashboard.
func Redact(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	out := *cfg
	redactValue(reflect.ValueOf(&out).Elem())
	return &out
}

func redactValue(v reflect.Value) {
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			field := v.Field(i)
			if !field.CanSet() {
				continue
			}
			tag := t.Field(i).Tag.Get("bmad")
			if Classification(tag) == Dangerous && field.Kind() == reflect.String {
				field.SetString(redactedPlaceholder)
				continue
			}
			redactValue(field)
		}
	case reflect.Map:
		if v.IsNil() {
			return
		}
		// Build a fresh map so the input's map is never written to.
		fresh := reflect.MakeMapWithSize(v.Type(), v.Len())
		for _, key := range v.MapKeys() {
			elem := v.MapIndex(key)
			// Map values are not addressable; copy, redact, and store.
			copied := reflect.New(elem.Type()).Elem()
			copied.Set(elem)
			redactValue(copied)
			fresh.SetMapIndex(key, copied)
		}
		v.Set(fresh)
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			redactValue(v.Index(i))
		}
	case reflect.Ptr:
		if !v.IsNil() {
			redactValue(v.Elem())
		}
	}
}

// FieldClassification returns the security classification declared for a
// struct field path such as "providers.claude.command", walking the Config
// type's `bmad` tags. The segment after a map field is taken as a map key
// and the rest of the path is walked in the map's element type. Once the
// path cannot be followed further (a slice, a map of non-struct values, a
// path ending at a map key, or an unknown nested name), the tag of the last
// field reached is returned. It returns ("", false) only when the first
// segment names no Config field.
func FieldClassification(loc string) (Classification, bool) {
	t := reflect.TypeOf(Config{})
	return walkClassification(t, loc)
}

func walkClassification(t reflect.Type, loc string) (Classification, bool) {
	if loc == "" {
		return "", false
	}
	head, rest := splitFirst(loc)

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		yamlName := yamlFieldName(f)
		if yamlName != head {
			continue
		}
		tag := Classification(f.Tag.Get("bmad"))
		if rest == "" {
			return tag, true
		}
		ft := f.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		switch ft.Kind() {
		case reflect.Struct:
			if cls, ok := walkClassification(ft, rest); ok {
				return cls, true
			}
			return tag, true
		case reflect.Map:
			_, sub := splitFirst(rest)
			et := ft.Elem()
			for et.Kind() == reflect.Ptr {
				et = et.Elem()
			}
			if sub != "" && et.Kind() == reflect.Struct {
				if cls, ok := walkClassification(et, sub); ok {
					return cls, true
				}
			}
			return tag, true
		case reflect.Slice:
			return tag, true
		default:
			return tag, true
		}
	}
	return "", false
}

func splitFirst(loc string) (head, rest string) {
	for i := 0; i < len(loc); i++ {
		if loc[i] == '.' {
			return loc[:i], loc[i+1:]
		}
	}
	return loc, ""
}

func yamlFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("yaml")
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			return tag[:i]
		}
	}
	if tag == "" {
		return f.Name
	}
	return tag
}
