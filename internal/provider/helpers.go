package provider

import (
	"fmt"
	"strconv"
)

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func errStatus(code int, url string) error {
	return fmt.Errorf("GET %s: unexpected status %d", url, code)
}
