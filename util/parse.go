package util

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ProcPath joins elements under the proc mount, honoring HOST_PROC the same
// way gopsutil does so both read the same tree.
func ProcPath(elem ...string) string {
	return hostPath("HOST_PROC", "/proc", elem)
}

// SysPath joins elements under the sys mount, honoring HOST_SYS.
func SysPath(elem ...string) string {
	return hostPath("HOST_SYS", "/sys", elem)
}

func hostPath(env, def string, elem []string) string {
	root := os.Getenv(env)
	if root == "" {
		root = def
	}
	return filepath.Join(append([]string{root}, elem...)...)
}

// ReadFileString reads a file and returns its trimmed contents.
func ReadFileString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// ReadFileLines reads a file and returns its lines.
func ReadFileLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// ParseKeyValueFile parses a file with "key value" or "key: value" lines.
func ParseKeyValueFile(path string) (map[string]string, error) {
	lines, err := ReadFileLines(path)
	if err != nil {
		return nil, err
	}
	return ParseKeyValueLines(lines), nil
}

// ParseKeyValueLines parses lines with "key value" or "key: value" format.
func ParseKeyValueLines(lines []string) map[string]string {
	m := make(map[string]string)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var key, val string
		if idx := strings.Index(line, ":"); idx >= 0 {
			key = strings.TrimSpace(line[:idx])
			val = strings.TrimSpace(line[idx+1:])
		} else {
			fields := strings.Fields(line)
			key = fields[0]
			val = strings.Join(fields[1:], " ")
		}
		if key != "" {
			m[key] = val
		}
	}
	return m
}

// ParseUint64 parses a string to uint64, returning 0 on error.
func ParseUint64(s string) uint64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), " kB"))
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}

// ParseInt parses a string to int, returning 0 on error.
func ParseInt(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}

// ParseFloat64 parses a string to float64, returning 0 on error.
func ParseFloat64(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

// ParseHex64 parses a hex string such as a /proc/net/tcp queue field.
func ParseHex64(s string) uint64 {
	v, _ := strconv.ParseUint(strings.TrimSpace(s), 16, 64)
	return v
}
