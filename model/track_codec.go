package model

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"Decibel/logger"
)

// ErrMalformedTrack is returned when a serialized track cannot be decoded.
var ErrMalformedTrack = errors.New("malformed serialized track")

// Serialize encodes the track as space separated (tag id, value) pairs.
// Integer values are written in decimal, text values percent-encoded.
func (t *Track) Serialize() string {
	ids := make([]int, 0, len(t.tags))
	for id := range t.tags {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	parts := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
		switch v := t.tags[TagID(id)].(type) {
		case int:
			parts = append(parts, strconv.Itoa(v))
		case string:
			parts = append(parts, url.PathEscape(v))
		default:
			parts = append(parts, url.PathEscape(fmt.Sprint(v)))
		}
	}
	return strings.Join(parts, " ")
}

// Unserialize decodes a line produced by Serialize. Pairs may come in any order.
func Unserialize(line string) (*Track, error) {
	tokens := strings.Split(line, " ")
	if len(tokens)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of tokens (%d)", ErrMalformedTrack, len(tokens))
	}

	t := &Track{tags: make(map[TagID]any, len(tokens)/2)}
	for i := 0; i < len(tokens); i += 2 {
		n, err := strconv.Atoi(tokens[i])
		if err != nil {
			return nil, fmt.Errorf("%w: bad tag id %q", ErrMalformedTrack, tokens[i])
		}
		id := TagID(n)
		if !id.Valid() {
			return nil, fmt.Errorf("%w: unknown tag id %d", ErrMalformedTrack, n)
		}

		if id.IsIntTag() {
			v, err := strconv.Atoi(tokens[i+1])
			if err != nil {
				return nil, fmt.Errorf("%w: tag %d: %v", ErrMalformedTrack, n, err)
			}
			t.tags[id] = v
			continue
		}

		v, err := url.PathUnescape(tokens[i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: tag %d: %v", ErrMalformedTrack, n, err)
		}
		t.tags[id] = v
	}

	if !t.Has(TagPath) {
		return nil, fmt.Errorf("%w: missing path", ErrMalformedTrack)
	}
	return t, nil
}

// UnserializeAll decodes every line, skipping the malformed ones.
func UnserializeAll(lines []string) []*Track {
	tracks := make([]*Track, 0, len(lines))
	for i, line := range lines {
		t, err := Unserialize(line)
		if err != nil {
			logger.Warn("skipping serialized track",
				logger.Int("line", i),
				logger.ErrorField(err))
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks
}
