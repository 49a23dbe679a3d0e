package store

import (
	"fmt"
	"regexp"
	"strconv"
)

var rexSuffix = regexp.MustCompile(`^(.*)_REX(\d+)$`)

// NextReExecutionName returns the clone name for a port: "p" becomes
// "p_REX1", "p_REX1" becomes "p_REX2", and so on.
func NextReExecutionName(name string) string {
	if m := rexSuffix.FindStringSubmatch(name); m != nil {
		n, err := strconv.Atoi(m[2])
		if err == nil {
			return fmt.Sprintf("%s_REX%d", m[1], n+1)
		}
	}
	return name + "_REX1"
}
