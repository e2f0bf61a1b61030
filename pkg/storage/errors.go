package storage

import "fmt"

var errMissingBucket = fmt.Errorf("missing bucket")

func errUnsupportedScheme(scheme string) error {
	return fmt.Errorf("unsupported scheme %q (want s3 or gs)", scheme)
}
