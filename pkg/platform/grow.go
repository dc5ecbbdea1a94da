package platform

import "errors"

// fetchGrowing calls fetch with a buffer of *size bytes until it stops
// returning overflow, letting fetch raise *size each time. It gives up after
// attempts tries and returns the last error.
func fetchGrowing(size uint32, attempts int, overflow error, fetch func(buf []byte, size *uint32) error) ([]byte, error) {
	var err error
	for range attempts {
		buf := make([]byte, size)
		err = fetch(buf, &size)
		if err == nil {
			return buf, nil
		}
		if !errors.Is(err, overflow) {
			return nil, err
		}
	}
	return nil, err
}
