package vsphere

import (
	"github.com/pkg/errors"
	"github.com/vmware/govmomi/fault"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/ecst/vbuild/internal/gateway"
)

// translate maps vSphere faults onto gateway errors so callers can branch
// on them; anything else is wrapped with context.
func translate(err error, kind, name, action string) error {
	if err == nil {
		return nil
	}
	switch {
	case fault.Is(err, &types.DuplicateName{}), fault.Is(err, &types.AlreadyExists{}):
		return gateway.NewErrAlreadyExists(kind, name)
	case fault.Is(err, &types.ManagedObjectNotFound{}), fault.Is(err, &types.NotFound{}):
		return gateway.NewErrNotFound(kind, name)
	case fault.Is(err, &types.NotSupported{}):
		return gateway.NewErrUnsupported(kind, name)
	}
	return errors.Wrapf(err, "failed to %s %s %q", action, kind, name)
}
