package patch

import (
	"reflect"
	"strings"
)

// AllowedPaths lists the JSON pointer patterns a form bound to the struct T
// can hold: one per exported field, "-" for list items and "*" for map
// values. Recursive types stop at the first repetition.
func AllowedPaths[T any]() map[string]bool {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	paths := map[string]bool{}
	if typ.Kind() != reflect.Struct {
		return paths
	}
	collectPaths(typ, "", paths, map[reflect.Type]bool{})
	return paths
}

func collectPaths(typ reflect.Type, prefix string, paths map[string]bool, visiting map[reflect.Type]bool) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if visiting[typ] {
		return
	}

	switch typ.Kind() {
	case reflect.Struct:
		visiting[typ] = true
		defer delete(visiting, typ)
		for i := 0; i < typ.NumField(); i++ {
			field := typ.Field(i)
			if !field.IsExported() {
				continue
			}
			name := jsonFieldName(field)
			if name == "-" {
				continue
			}
			fieldPath := prefix + "/" + pointerEscaper.Replace(name)
			paths[fieldPath] = true
			collectPaths(field.Type, fieldPath, paths, visiting)
		}
	case reflect.Slice, reflect.Array:
		itemPath := prefix + "/-"
		paths[itemPath] = true
		collectPaths(typ.Elem(), itemPath, paths, visiting)
	case reflect.Map:
		valuePath := prefix + "/*"
		paths[valuePath] = true
		collectPaths(typ.Elem(), valuePath, paths, visiting)
	}
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" {
		return field.Name
	}
	return name
}
