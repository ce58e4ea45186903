package audio

import (
	"fmt"
	"io"
	"os"
)

// Spooler writes uploaded audio to disk so file-based engines can read
// it. An empty dir means the OS temp directory.
type Spooler struct {
	dir string
}

func NewSpooler(dir string) *Spooler {
	return &Spooler{dir: dir}
}

// Spool copies r into a uniquely named .wav file under the spool
// directory and returns its path. The caller owns the file and must
// Remove it when done.
func (s *Spooler) Spool(r io.Reader) (string, error) {
	f, err := os.CreateTemp(s.dir, "upload-*.wav")
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write spool file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close spool file: %w", err)
	}
	return f.Name(), nil
}

// Remove deletes a spooled file. A missing file is not an error.
func (s *Spooler) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
