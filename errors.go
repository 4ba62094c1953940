package edix

import (
	"errors"
	"fmt"

	"github.com/hupe1980/edix/addr"
	"github.com/hupe1980/edix/bitmap"
	"github.com/hupe1980/edix/blobstore"
	"github.com/hupe1980/edix/bucketfile"
	"github.com/hupe1980/edix/indexfile"
	"github.com/hupe1980/edix/manifest"
)

var (
	// ErrNotFound is returned when a snapshot file does not exist in the
	// store.
	ErrNotFound = errors.New("not found")

	// ErrCorrupted is returned when a fetched file fails format
	// validation: bad magic, unsupported version, unknown bitmap cookie,
	// or a buffer shorter than its own header claims. Usually a partial
	// or damaged transfer; never retried internally.
	ErrCorrupted = errors.New("corrupted data")

	// ErrOutOfRange is returned for indices outside the snapshot's
	// address space. This is a caller bug, not a data problem.
	ErrOutOfRange = errors.New("index out of range")
)

// translateError unifies package-level errors into the root taxonomy while
// keeping the original chain reachable via errors.Is/As.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	for _, target := range []error{
		bitmap.ErrUnknownCookie,
		bitmap.ErrTruncated,
		indexfile.ErrInvalidMagic,
		indexfile.ErrUnsupportedVersion,
		indexfile.ErrTruncated,
		bucketfile.ErrInvalidMagic,
		bucketfile.ErrUnsupportedVersion,
		bucketfile.ErrTruncated,
		bucketfile.ErrUnordered,
		manifest.ErrInvalid,
	} {
		if errors.Is(err, target) {
			return fmt.Errorf("%w: %w", ErrCorrupted, err)
		}
	}

	if errors.Is(err, addr.ErrOutOfRange) || errors.Is(err, bucketfile.ErrOutOfRange) {
		return fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}

	return err
}
