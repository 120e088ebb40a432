package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"hirelens/internal/services"
	"hirelens/internal/textutil"
)

// CheckAccess verifies the current user can open a device node for reading
// and writing. Non-path identifiers such as ALSA "hw:0,0" or "default" are
// resolved by the sound server and pass unchecked.
func CheckAccess(device string) error {
	device = strings.TrimSpace(device)
	if device == "" {
		return services.Wrap(services.ErrDeviceUnavailable, "capture", "access", "no device configured", nil)
	}
	if !filepath.IsAbs(device) {
		return nil
	}
	return classifyAccess(device, unix.Access(device, unix.R_OK|unix.W_OK))
}

func classifyAccess(device string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return services.Wrap(services.ErrPermissionDenied, "capture", "access", device, err)
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		return services.Wrap(services.ErrDeviceUnavailable, "capture", "access", device, err)
	default:
		return services.Wrap(services.ErrDeviceUnavailable, "capture", "access", device, err)
	}
}

// LockPath returns the lock file guarding a device.
func LockPath(lockDir, device string) string {
	return filepath.Join(lockDir, textutil.SanitizeToken(device)+".lock")
}

// lockDevice takes the exclusive lock for device. An empty lockDir disables
// locking.
func lockDevice(lockDir, device string) (*flock.Flock, error) {
	if strings.TrimSpace(lockDir) == "" {
		return nil, nil
	}
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "lock", "create lock directory", err)
	}
	lock := flock.New(LockPath(lockDir, device))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "lock", device, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "lock",
			fmt.Sprintf("%s is in use by another session", device), nil)
	}
	return lock, nil
}
