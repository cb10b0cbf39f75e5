// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads the search API key. The key lives in a single
// plain-text file (apikey.txt by default); as a fallback it may sit in a
// secrets directory under the name DirKey, or in an environment variable.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/sd-oa-harvest/pkg/types"
)

// DirKey is the file name of the API key inside a secrets directory.
const DirKey = "elsevier-api-key"

// EnvKey is the environment variable consulted last.
const EnvKey = "SD_OA_HARVEST_API_KEY"

// readKey returns the trimmed contents of path. found is false when the
// file does not exist.
func readKey(path string) (key string, found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: reading API key file %s: %v", types.ErrConfiguration, path, err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

// APIKey resolves the search API key. keyFile wins when it exists; then
// dir/elsevier-api-key when non-empty; then $SD_OA_HARVEST_API_KEY. An
// unreadable or empty key file, or no key anywhere, is an ErrConfiguration.
func APIKey(keyFile, dir string) (string, error) {
	if keyFile != "" {
		key, found, err := readKey(keyFile)
		if err != nil {
			return "", err
		}
		if found {
			if key == "" {
				return "", fmt.Errorf("%w: API key file %s is empty", types.ErrConfiguration, keyFile)
			}
			return key, nil
		}
	}

	if dir != "" {
		key, _, err := readKey(filepath.Join(dir, DirKey))
		if err != nil {
			return "", err
		}
		if key != "" {
			return key, nil
		}
	}

	if key := strings.TrimSpace(os.Getenv(EnvKey)); key != "" {
		return key, nil
	}

	return "", fmt.Errorf("%w: no API key found in %s, %s or $%s",
		types.ErrConfiguration, keyFile, filepath.Join(dir, DirKey), EnvKey)
}
