package live

import (
	"github.com/juju/errors"
)

// IsConfigError reports whether err is a registration configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, errors.NotValid)
}

// IsNotRegistered reports whether err names an assignment key that was
// never registered with the session.
func IsNotRegistered(err error) bool {
	return errors.Is(err, errors.NotFound)
}

func notRegistered(key string) error {
	return errors.NotFoundf("live assignment %q", key)
}
