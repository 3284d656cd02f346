package gateway

import (
	"errors"
	"fmt"
)

type ErrNotFound struct {
	error
}

func NewErrNotFound(kind, name string) *ErrNotFound {
	return &ErrNotFound{fmt.Errorf("%s %q not found", kind, name)}
}

func NewErrDatacenterNotFound(name string) *ErrNotFound {
	return NewErrNotFound("datacenter", name)
}

func NewErrClusterNotFound(name string) *ErrNotFound {
	return NewErrNotFound("cluster", name)
}

func NewErrHostNotFound(name string) *ErrNotFound {
	return NewErrNotFound("host", name)
}

func NewErrSwitchNotFound(name string) *ErrNotFound {
	return NewErrNotFound("distributed switch", name)
}

func NewErrPortGroupNotFound(name string) *ErrNotFound {
	return NewErrNotFound("port group", name)
}

func NewErrStoragePolicyNotFound(name string) *ErrNotFound {
	return NewErrNotFound("storage policy", name)
}

type ErrAlreadyExists struct {
	error
}

func NewErrAlreadyExists(kind, name string) *ErrAlreadyExists {
	return &ErrAlreadyExists{fmt.Errorf("%s %q already exists", kind, name)}
}

type ErrUnsupported struct {
	error
}

func NewErrUnsupported(kind, name string) *ErrUnsupported {
	return &ErrUnsupported{fmt.Errorf("%s %q is not supported by the host", kind, name)}
}

type ErrValidation struct {
	error
}

func NewErrValidation(format string, args ...any) *ErrValidation {
	return &ErrValidation{fmt.Errorf(format, args...)}
}

func IsNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

func IsAlreadyExists(err error) bool {
	var e *ErrAlreadyExists
	return errors.As(err, &e)
}

func IsUnsupported(err error) bool {
	var e *ErrUnsupported
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ErrValidation
	return errors.As(err, &e)
}
