package catalog

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"vavoo-proxy/faults"
	"vavoo-proxy/logger"
)

var (
	segmentIDRegex  = regexp.MustCompile(`(\d+)\.ts$`)
	tvgNameRegex    = regexp.MustCompile(`tvg-name="([^"]*)"`)
	groupTitleRegex = regexp.MustCompile(`group-title="([^"]*)"`)
)

// bundleRecord is one entry of the JSON flavour of the bundle.
type bundleRecord struct {
	Group string `json:"group"`
	URL   string `json:"url"`
	Name  string `json:"name"`
}

// ParseBundle turns a bundle document into the channels of the wanted group.
// Group comparison ignores case.
func ParseBundle(body []byte, group string, log logger.Logger) ([]Channel, error) {
	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		return parseRecords(trimmed, group, log)
	}
	return parsePlaylist(trimmed, group, log)
}

func parseRecords(body []byte, group string, log logger.Logger) ([]Channel, error) {
	var records []bundleRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, faults.New(faults.ErrCatalogFetch, "catalog.parse", err)
	}

	channels := make([]Channel, 0)
	for i, rec := range records {
		if !strings.EqualFold(strings.TrimSpace(rec.Group), group) {
			continue
		}
		url := strings.TrimSpace(rec.URL)
		if url == "" {
			log.Debugf("Skipping record #%d without url", i)
			continue
		}
		channels = append(channels, Channel{
			ID:    strconv.Itoa(i),
			Name:  strings.TrimSpace(rec.Name),
			URL:   url,
			Group: rec.Group,
		})
	}

	return channels, nil
}

func parsePlaylist(body []byte, group string, log logger.Logger) ([]Channel, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	channels := make([]Channel, 0)
	meta := ""
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXTINF"):
			if meta != "" {
				log.Debugf("Skipping metadata without media line before line %d", lineNum)
			}
			meta = line
			continue
		case strings.HasPrefix(line, "#"):
			continue
		}

		if meta == "" {
			log.Debugf("Skipping media line %d without metadata", lineNum)
			continue
		}

		ch, ok := parseEntry(meta, line)
		meta = ""
		if !ok {
			log.Warnf("Skipping malformed entry at line %d", lineNum)
			continue
		}
		if !strings.EqualFold(ch.Group, group) {
			continue
		}
		channels = append(channels, ch)
	}

	if err := scanner.Err(); err != nil {
		return nil, faults.New(faults.ErrCatalogFetch, "catalog.parse", err)
	}

	return channels, nil
}

// parseEntry extracts a channel from a metadata line and its media line.
// Entries without a segment id or a name are rejected.
func parseEntry(meta, media string) (Channel, bool) {
	id := segmentIDRegex.FindStringSubmatch(media)
	if id == nil {
		return Channel{}, false
	}

	name := ""
	if m := tvgNameRegex.FindStringSubmatch(meta); m != nil {
		name = strings.TrimSpace(m[1])
	}
	if name == "" {
		if idx := strings.LastIndex(meta, ","); idx >= 0 {
			name = strings.TrimSpace(meta[idx+1:])
		}
	}
	if name == "" {
		return Channel{}, false
	}

	groupTitle := ""
	if m := groupTitleRegex.FindStringSubmatch(meta); m != nil {
		groupTitle = strings.TrimSpace(m[1])
	}

	return Channel{ID: id[1], Name: name, URL: media, Group: groupTitle}, true
}
