package sdcard

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Device is a detected removable partition.
type Device struct {
	Node  string
	Label string
}

// MatchLabel reports whether a filesystem label matches the configured
// glob. An empty glob matches nothing so unlabeled setups stay inert.
func MatchLabel(glob, label string) bool {
	glob = strings.TrimSpace(glob)
	label = strings.TrimSpace(label)
	if glob == "" || label == "" {
		return false
	}
	ok, err := doublestar.Match(glob, label)
	return err == nil && ok
}

// ResolveMount finds where a device node is mounted. The mount table is
// consulted first; if the node is absent the conventional
// <mountBase>/<label> directory is used when it exists.
func ResolveMount(mountBase string, dev Device) (string, error) {
	if mount := mountPointOf(dev.Node, "/proc/mounts"); mount != "" {
		return mount, nil
	}
	candidate := filepath.Join(mountBase, dev.Label)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate, nil
	}
	return "", fmt.Errorf("device %s (%s) is not mounted", dev.Node, dev.Label)
}

func mountPointOf(node, mountsPath string) string {
	f, err := os.Open(mountsPath)
	if err != nil {
		return ""
	}
	defer f.Close()
	return scanMounts(f, node)
}

func scanMounts(r io.Reader, node string) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if fields[0] == node {
			return unescapeMount(fields[1])
		}
	}
	return ""
}

// unescapeMount decodes the octal escapes /proc/mounts uses for
// whitespace in mount points.
func unescapeMount(path string) string {
	replacer := strings.NewReplacer(
		`\040`, " ",
		`\011`, "\t",
		`\012`, "\n",
		`\134`, `\`,
	)
	return replacer.Replace(path)
}
