package mpmetrics

import (
	"os"

	"github.com/arcspin/mpmetrics/internal/keycodec"
	"github.com/arcspin/mpmetrics/internal/mmapfile"
)

// ErrFileVanished indicates a dictionary file was unlinked or
// truncated beneath its writer.
var ErrFileVanished = mmapfile.ErrFileVanished

// KeyError is returned by DecodeKey when an encoded key fails JSON
// validation.
type KeyError = keycodec.KeyError

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
