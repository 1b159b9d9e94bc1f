package bridge

import (
	"fmt"
	"strings"
)

// ArgumentError names the required options that were not supplied.
type ArgumentError struct {
	Missing []string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("missing required option(s): %s", strings.Join(e.Missing, ", "))
}
