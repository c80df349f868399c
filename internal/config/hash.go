package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// Fingerprint hashes every source file in load order, so operators can tell
// whether two daemons run the same configuration. It is empty for a Config
// that was not loaded from disk.
func (c *Config) Fingerprint() (string, error) {
	if len(c.Sources) == 0 {
		return "", nil
	}
	h := blake3.New()
	for _, path := range c.Sources {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", path, err)
		}
		fmt.Fprintf(h, "%s\x00%d\x00", path, len(data))
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil)[:32]), nil
}
