package cfg

import (
	"sync"
)

var (
	loader     Loader
	loaderOnce sync.Once
)

// Loader hands out the process-wide configuration. The viper loader backs
// the binaries, the mock loader backs the tests.
type Loader interface {
	Load() (*Config, error)
}

// NewLoader pins the first loader it is given for the lifetime of the
// process, later calls return the same one.
func NewLoader(l Loader) (Loader, error) {
	loaderOnce.Do(func() {
		loader = l
	})
	return loader, nil
}
