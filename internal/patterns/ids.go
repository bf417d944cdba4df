package patterns

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// patternID hashes the type, the sorted affected ids and the detection
// time in milliseconds. The same issue detected at another instant gets a
// different id.
func patternID(typ Type, affected []string, at time.Time) string {
	sorted := slices.Clone(affected)
	slices.Sort(sorted)

	h := xxhash.New()
	h.WriteString(string(typ))
	h.WriteString("|")
	h.WriteString(strings.Join(sorted, ","))
	h.WriteString("|")
	h.WriteString(strconv.FormatInt(at.UnixMilli(), 10))

	return "pattern-" + strconv.FormatUint(h.Sum64(), 36)
}
