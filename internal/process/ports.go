package process

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Timing for local port health checks. Background launches get the
// long window; claim validation after a CLI run gets a shorter one.
const (
	portWaitTimeout = 20 * time.Second

	// ClaimWaitTimeout bounds validation of a "server is running on
	// localhost" claim made by a finished CLI task.
	ClaimWaitTimeout = 15 * time.Second

	// PreCheckTimeout is the quick reachability probe used before
	// attempting a promotion.
	PreCheckTimeout = 1200 * time.Millisecond

	// DefaultWaitTimeout is the generic readiness window.
	DefaultWaitTimeout = 8 * time.Second

	dialTimeout  = 600 * time.Millisecond
	pollInterval = 350 * time.Millisecond
)

var portPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:localhost|127\.0\.0\.1)\s*:\s*(\d{2,5})`),
	regexp.MustCompile(`(?i)\bport\s+(\d{2,5})\b`),
	regexp.MustCompile(`(?i)--port(?:=|\s+)(\d{2,5})`),
}

// ExtractPortCandidates pulls likely TCP ports out of free-form task
// text and shell commands. Results are deduplicated and sorted.
func ExtractPortCandidates(text string) []int {
	seen := make(map[int]struct{})
	for _, re := range portPatterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(match[1])
			if err != nil || n < 1 || n > 65535 {
				continue
			}
			seen[n] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

// IsPortOpen reports whether anything accepts a TCP connection on the
// loopback port.
func IsPortOpen(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), dialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// WaitForAnyPort polls until one of the candidate ports accepts a
// connection or the timeout elapses. It returns the first open port.
func WaitForAnyPort(ctx context.Context, ports []int, timeout time.Duration) (int, bool) {
	if len(ports) == 0 {
		return 0, false
	}
	deadline := time.Now().Add(timeout)
	for {
		for _, p := range ports {
			if IsPortOpen(p) {
				return p, true
			}
		}
		if time.Now().After(deadline) {
			return 0, false
		}
		select {
		case <-ctx.Done():
			return 0, false
		case <-time.After(pollInterval):
		}
	}
}

// AnyPortOpen is the non-blocking sibling of WaitForAnyPort: a single
// sweep with no polling.
func AnyPortOpen(ports []int) (int, bool) {
	for _, p := range ports {
		if IsPortOpen(p) {
			return p, true
		}
	}
	return 0, false
}
