//go:build !linux && !darwin

package serial

// Open is not available on this platform.
func Open(cfg Config) (Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return nil, ErrUnsupported
}
