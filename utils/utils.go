package utils

import (
	"errors"
	"unsafe"
)

// Str interprets b as a string without copying. The caller must not let the
// result outlive the buffer (fasthttp reuses them between requests).
func Str(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

func FlattenErrors(errs []error) error {
	switch len(errs) {
	default:
		return errors.Join(errs...)
	case 1:
		return errs[0]
	case 0:
		return nil
	}
}
