package motion

import (
	"regexp"
	"strconv"
)

// nodePattern matches the id and key attributes of a flat node list entry.
var nodePattern = regexp.MustCompile(`<node id="([^"]+)" key="(\d+)"`)

// NameMap maps device keys to node names, e.g. 4 => "Hips".
type NameMap map[uint32]string

// ParseNameMap converts the flat XML node list sent by the service,
//
//	<node id="Hips" key="4" ... />
//
// into a NameMap keyed like the Frame elements. A regular expression scan is
// enough for the flat list. Entries with key 0 are skipped.
//
// Returns:
//   - NameMap: One entry per node with a positive key
//   - error: ErrNoNodes if no usable entry was found
func ParseNameMap(xmlNodeList string) (NameMap, error) {
	names := make(NameMap)

	for _, m := range nodePattern.FindAllStringSubmatch(xmlNodeList, -1) {
		key, err := strconv.ParseUint(m[2], 10, 32)
		if err != nil || key == 0 {
			continue
		}
		// First entry wins.
		if _, dup := names[uint32(key)]; !dup {
			names[uint32(key)] = m[1]
		}
	}

	if len(names) == 0 {
		return nil, ErrNoNodes
	}
	return names, nil
}

// Name returns the node name for key, falling back to the decimal key.
func (n NameMap) Name(key uint32) string {
	if name, ok := n[key]; ok {
		return name
	}
	return strconv.FormatUint(uint64(key), 10)
}
