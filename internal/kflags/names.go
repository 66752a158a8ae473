package kflags

import (
	"fmt"
	"strings"
)

var names = map[string]Mask{
	"access":       InAccess,
	"modify":       InModify,
	"attrib":       InAttrib,
	"close_write":  InCloseWrite,
	"close_nowrite": InCloseNoWrite,
	"close":        InClose,
	"open":         InOpen,
	"moved_from":   InMovedFrom,
	"moved_to":     InMovedTo,
	"move":         InMove,
	"create":       InCreate,
	"delete":       InDelete,
	"delete_self":  InDeleteSelf,
	"move_self":    InMoveSelf,
	"all":          InAllEvents,
}

// ParseMask parses a comma-separated list of inotify event names (the
// same vocabulary as inotifywait's --event flag, lowercased) into a
// Mask. An empty string yields InAllEvents.
func ParseMask(csv string) (Mask, error) {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return InAllEvents, nil
	}
	var m Mask
	for _, part := range strings.Split(csv, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		bit, ok := names[name]
		if !ok {
			return 0, fmt.Errorf("kflags: unknown event name %q", part)
		}
		m |= bit
	}
	return m, nil
}
