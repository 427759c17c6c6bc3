// Package beets talks to a beets installation: it parses the duplicate
// export produced by the duplicatez plugin, and shells out to the beet
// command to ask how complete an album folder is.
package beets

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// Duplicates maps an opaque grouping key (recording + album fingerprint)
// to the file paths beets flagged as the same logical recording.
type Duplicates map[string][]string

func ParseDuplicates(r io.Reader) (Duplicates, error) {
	var dups Duplicates
	if err := json.NewDecoder(r).Decode(&dups); err != nil {
		return nil, fmt.Errorf("decode duplicates: %w", err)
	}
	if len(dups) == 0 {
		return nil, fmt.Errorf("no duplicate groups in export")
	}
	return dups, nil
}

func ReadDuplicates(path string) (Duplicates, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return ParseDuplicates(f)
}

// AlbumInfo is one album's completeness as reported by beets for a
// folder. A folder yielding more than one AlbumInfo mixes albums.
type AlbumInfo struct {
	Album       string
	Total       int
	Missing     int
	Compilation bool
}

const infoFormat = `$album:::$albumtotal:::$missing:::$comp`

// Client wraps the beet executable. Command is the base invocation, eg.
// "beet" or "docker exec beets beet", split shell-style.
type Client struct {
	Command string
}

// AlbumInfos reports the albums beets knows for a folder. A nil result
// with no error means beets has nothing for the path, which callers
// treat as no completeness data rather than a failure.
func (c *Client) AlbumInfos(ctx context.Context, dir string) ([]AlbumInfo, error) {
	base := c.Command
	if base == "" {
		base = "beet"
	}
	argv, err := shlex.Split(base)
	if err != nil {
		return nil, fmt.Errorf("split command: %w", err)
	}
	argv = append(argv, "ls", "-a", "-f", infoFormat, "path:"+dir)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("run %q: %w: %s", argv[0], err, strings.TrimSpace(stderr.String()))
	}

	infos, err := parseAlbumInfos(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("album info for %q: %w", dir, err)
	}
	if len(infos) == 0 {
		slog.DebugContext(ctx, "no beets album info", "dir", dir)
		return nil, nil
	}
	return infos, nil
}

func parseAlbumInfos(r io.Reader) ([]AlbumInfo, error) {
	var infos []AlbumInfo

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ":::")
		if len(parts) != 4 {
			return nil, fmt.Errorf("unexpected line %q", line)
		}

		var info AlbumInfo
		info.Album = parts[0]
		var err error
		if info.Total, err = strconv.Atoi(parts[1]); err != nil {
			return nil, fmt.Errorf("parse total %q: %w", parts[1], err)
		}
		if info.Missing, err = strconv.Atoi(parts[2]); err != nil {
			return nil, fmt.Errorf("parse missing %q: %w", parts[2], err)
		}
		info.Compilation = parseBool(parts[3])
		infos = append(infos, info)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return infos, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no":
		return false
	}
	return true
}
