// Package metrics summarises a batch of source downloads.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
)

type Collector struct {
	mu sync.Mutex

	// Successful downloads only
	latencies []time.Duration
	bytes     int
	changed   int

	errorCounts   map[string]int
	totalErrors   int
	timeoutErrors int
}

func New() *Collector {
	return &Collector{errorCounts: make(map[string]int)}
}

func (c *Collector) RecordSuccess(duration time.Duration, size int, changed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latencies = append(c.latencies, duration)
	c.bytes += size
	if changed {
		c.changed++
	}
}

func (c *Collector) RecordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalErrors++

	errType := Classify(err)
	if errType == "Timeout" {
		c.timeoutErrors++
	}
	c.errorCounts[errType]++
}

// Classify buckets a download error by its message.
func Classify(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return "Timeout"
	case strings.Contains(msg, "refused"):
		return "Conn Refused"
	case strings.Contains(msg, "reset"):
		return "Conn Reset"
	case strings.Contains(msg, "EOF"):
		return "EOF / Empty"
	case strings.Contains(msg, "no such host"):
		return "DNS Error"
	case strings.Contains(msg, "status code"):
		return "HTTP Status"
	case strings.Contains(msg, "unsupported url scheme"):
		return "Unsupported URL"
	}
	return "Unknown"
}

// Successes returns the number of recorded successful downloads.
func (c *Collector) Successes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.latencies)
}

func (c *Collector) PrintReport(out io.Writer, currentTimeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(out, "\n📊 \033[1mUPDATE REPORT\033[0m")
	fmt.Fprintln(out, "────────────────────────────────────────")

	fmt.Fprintln(w, "\033[1;36m[ DOWNLOADS ]\033[0m")
	fmt.Fprintf(w, "  Succeeded:\t%d (%d changed)\n", len(c.latencies), c.changed)
	fmt.Fprintf(w, "  Received:\t%d bytes\n", c.bytes)
	if len(c.latencies) > 0 {
		sorted := append([]time.Duration(nil), c.latencies...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		p50 := sorted[len(sorted)/2]
		p90 := sorted[int(float64(len(sorted))*0.9)]
		fmt.Fprintf(w, "  Avg Duration:\t%v\n", average(sorted).Round(time.Millisecond))
		fmt.Fprintf(w, "  p50 (Median):\t%v\n", p50.Round(time.Millisecond))
		fmt.Fprintf(w, "  p90 (Slowest 10%%):\t%v\n", p90.Round(time.Millisecond))
	}
	fmt.Fprintln(w, "")

	fmt.Fprintln(w, "\033[1;36m[ ERRORS ]\033[0m")
	fmt.Fprintf(w, "  Total Failures:\t%d\n", c.totalErrors)
	var kinds []string
	for k := range c.errorCounts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s:\t%d\n", k, c.errorCounts[k])
	}
	if c.totalErrors > 0 && c.timeoutErrors*2 > c.totalErrors {
		fmt.Fprintf(w, "  💡 Recommendation:\tRaise 'fetch.timeout' or set 'fetch.proxy_url' (Current: %s)\n", currentTimeout)
	}

	w.Flush()
	fmt.Fprintln(out, "")
}

func average(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return time.Duration(int64(sum) / int64(len(d)))
}
