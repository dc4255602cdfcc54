package utils

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExtractFilename returns the last non-empty path segment of an absolute URL,
// still percent-encoded so an escaped slash cannot split it.
func ExtractFilename(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	escaped := parsed.EscapedPath()
	if escaped == "" || strings.HasSuffix(escaped, "/") {
		return "", false
	}
	name := path.Base(escaped)
	if name == "." || name == "/" || name == "" {
		return "", false
	}
	return name, true
}

// ResolveOutputPath picks the destination for a transfer. An explicit path
// wins as is. A derived name never clobbers an existing file and is claimed
// by creating it empty, so concurrent transfers deriving the same name each
// get their own path.
func ResolveOutputPath(explicit, rawURL, serverName string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	name := serverName
	if name == "" {
		if derived, ok := ExtractFilename(rawURL); ok {
			name = derived
		} else {
			name = DefaultFileName
		}
	}
	candidate := name
	for {
		err := claimPath(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", NewError(KindFilesystem, "create", err)
		}
		candidate = RenewOutputPath(name)
	}
}

func claimPath(outputPath string) error {
	file, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	return file.Close()
}

func RenewOutputPath(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	index := 1
	for {
		outputPath = filepath.Join(dir, fmt.Sprintf("%s-(%d)%s", name, index, ext))
		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			return outputPath
		}
		index++
	}
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

func ReadBatchFile(filePath string) ([]BatchEntry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, NewError(KindFilesystem, "read batch file", err)
	}
	var entries []BatchEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, NewError(KindConfig, "parse batch file", err)
	}
	valid := entries[:0]
	for _, entry := range entries {
		if strings.TrimSpace(entry.URL) == "" {
			continue
		}
		valid = append(valid, entry)
	}
	return valid, nil
}

// RemovePartial deletes a destination left behind by a failed transfer.
func RemovePartial(outputPath string) error {
	info, err := os.Stat(outputPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return NewError(KindFilesystem, "stat", err)
	}
	if info.IsDir() {
		return NewError(KindFilesystem, "remove", fmt.Errorf("%s is a directory", outputPath))
	}
	if err := os.Remove(outputPath); err != nil {
		return NewError(KindFilesystem, "remove", err)
	}
	return nil
}
