package serialmux

import "strings"

const (
	LineTypeAdvertisement = "advertisement"
	LineTypeAck           = "ack"
	LineTypeComment       = "comment"
	LineTypeUnknown       = "unknown"
)

// ClassifyLine inspects a line printed by the dongle and returns a line type
// token. Only advertisement lines carry detections.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return LineTypeUnknown
	case strings.HasPrefix(line, "#"):
		return LineTypeComment
	case line == "OK" || strings.HasPrefix(line, "OK ") || strings.HasPrefix(line, "ERR"):
		return LineTypeAck
	case strings.HasPrefix(line, "{") && strings.Contains(line, `"addr"`):
		return LineTypeAdvertisement
	case strings.Count(line, ",") >= 1 && !strings.HasPrefix(line, "{"):
		return LineTypeAdvertisement
	}
	return LineTypeUnknown
}
