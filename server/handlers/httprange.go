package handlers

import (
	"errors"
	"strconv"
	"strings"
)

var errUnsupportedRange = errors.New("unsupported range header")

// byteRange is a parsed Range request. End is -1 for open-ended ranges
// ("bytes=900-").
type byteRange struct {
	Start int64
	End   int64
}

// parseRangeHeader parses a single-range bytes header. Multi-range and
// suffix ("bytes=-500") forms are reported as unsupported; the caller falls
// back to serving the full content, which is always a valid response.
func parseRangeHeader(header string) (byteRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return byteRange{}, errUnsupportedRange
	}

	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return byteRange{}, errUnsupportedRange
	}

	start, end, found := strings.Cut(spec, "-")
	if !found || start == "" {
		return byteRange{}, errUnsupportedRange
	}

	startByte, err := strconv.ParseInt(start, 10, 64)
	if err != nil || startByte < 0 {
		return byteRange{}, errUnsupportedRange
	}

	endByte := int64(-1)
	if end != "" {
		endByte, err = strconv.ParseInt(end, 10, 64)
		if err != nil || endByte < startByte {
			return byteRange{}, errUnsupportedRange
		}
	}

	return byteRange{Start: startByte, End: endByte}, nil
}
