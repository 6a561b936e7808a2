package gqlerrors

import "fmt"

// copyOf clones err so relocation never mutates the value it was given.
func copyOf(err *Error) *Error {
	cpy := &Error{
		Message:       err.Message,
		OriginalError: err.OriginalError,
	}

	if err.Extensions != nil {
		cpy.Extensions = make(map[string]interface{}, len(err.Extensions))
		for k, v := range err.Extensions {
			cpy.Extensions[k] = v
		}
	}

	if err.Locations != nil {
		cpy.Locations = append([]Location{}, err.Locations...)
	}

	if err.Path != nil {
		cpy.Path = append([]interface{}{}, err.Path...)
	}

	return cpy
}

// RelocatedError returns a copy of err placed at path. A nil path keeps the
// original path, an empty non-nil path clears it, anything else replaces it.
func RelocatedError(err *Error, path []interface{}) *Error {
	cpy := copyOf(err)
	if path == nil {
		return cpy
	}

	if len(path) == 0 {
		cpy.Path = []interface{}{}
		return cpy
	}

	cpy.Path = append([]interface{}{}, path...)
	return cpy
}

// SliceRelocatedError returns a copy of err with the first path segment
// dropped. Used when a result nested one level deeper is lifted up.
func SliceRelocatedError(err *Error) *Error {
	cpy := copyOf(err)
	if len(cpy.Path) > 0 {
		cpy.Path = cpy.Path[1:]
	}
	return cpy
}

// ExtendedError returns a copy of err with ext merged into its extensions.
func ExtendedError(err *Error, ext map[string]interface{}) *Error {
	cpy := copyOf(err)
	if len(ext) == 0 {
		return cpy
	}
	if cpy.Extensions == nil {
		cpy.Extensions = make(map[string]interface{}, len(ext))
	}
	for k, v := range ext {
		cpy.Extensions[k] = v
	}
	return cpy
}

// StrippedError returns a copy of err without the named extension keys.
func StrippedError(err *Error, keys ...string) *Error {
	cpy := copyOf(err)
	for _, k := range keys {
		delete(cpy.Extensions, k)
	}
	if len(cpy.Extensions) == 0 {
		cpy.Extensions = nil
	}
	return cpy
}

// PathSegmentKey stringifies a path segment so both field names and list
// indices can key a map.
func PathSegmentKey(segment interface{}) string {
	if s, ok := segment.(string); ok {
		return s
	}
	return fmt.Sprint(segment)
}

// GroupByPath partitions errs by the first segment of each error's path,
// stripping that segment from the grouped copies. Errors without a path or
// with a single-segment path belong to the current level and are dropped.
func GroupByPath(errs ErrorList) map[string]ErrorList {
	grouped := make(map[string]ErrorList)
	for _, err := range errs {
		if len(err.Path) < 2 {
			continue
		}

		key := PathSegmentKey(err.Path[0])
		grouped[key] = append(grouped[key], SliceRelocatedError(err))
	}
	return grouped
}
