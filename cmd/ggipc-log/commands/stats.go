package commands

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents         int
	EventsByLayer       map[log.Layer]int
	EventsByCategory    map[log.Category]int
	EventsByDirection   map[log.Direction]int
	RequestsByOperation map[string]int
	RemoteErrors        map[string]int
	Connections         map[string]*ConnectionStats
	Errors              int
	TimeRange           struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen      time.Time
	LastSeen       time.Time
	Events         int
	Component      string
	Requests       int
	StreamEvents   int
	MaxRoundTrip   time.Duration
	totalRoundTrip time.Duration
	responses      int
}

// MeanRoundTrip is the average request round trip seen on the connection.
func (c *ConnectionStats) MeanRoundTrip() time.Duration {
	if c.responses == 0 {
		return 0
	}
	return c.totalRoundTrip / time.Duration(c.responses)
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:       make(map[log.Layer]int),
		EventsByCategory:    make(map[log.Category]int),
		EventsByDirection:   make(map[log.Direction]int),
		RequestsByOperation: make(map[string]int),
		RemoteErrors:        make(map[string]int),
		Connections:         make(map[string]*ConnectionStats),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if event.Component != "" && conn.Component == "" {
		conn.Component = event.Component
	}

	if msg := event.Message; msg != nil {
		switch msg.Kind {
		case log.MessageKindRequest:
			conn.Requests++
			if msg.Operation != "" {
				s.RequestsByOperation[msg.Operation]++
			}
		case log.MessageKindStreamEvent:
			conn.StreamEvents++
		case log.MessageKindError:
			if msg.ErrorCode != "" {
				s.RemoteErrors[msg.ErrorCode]++
			}
		}
		if msg.ProcessingTime != nil {
			conn.responses++
			conn.totalRoundTrip += *msg.ProcessingTime
			conn.MaxRoundTrip = max(conn.MaxRoundTrip, *msg.ProcessingTime)
		}
	}

	if event.Error != nil {
		s.Errors++
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintln(w, title)
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		fmt.Fprintf(w, "  %-40s %d\n", k+":", counts[k])
	}
	fmt.Fprintln(w)
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Greengrass IPC Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerFrame, log.LayerIPC, log.LayerClient} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	printCounts(w, "Requests by Operation:", stats.RequestsByOperation)
	printCounts(w, "Remote Errors:", stats.RemoteErrors)

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		ids := slices.SortedFunc(maps.Keys(stats.Connections), func(a, b string) int {
			if c := stats.Connections[a].FirstSeen.Compare(stats.Connections[b].FirstSeen); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})

		fmt.Fprintln(w)
		for _, id := range ids {
			c := stats.Connections[id]
			duration := c.LastSeen.Sub(c.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(id), c.Events, duration)
			if c.Component != "" {
				fmt.Fprintf(w, "           Component: %s\n", c.Component)
			}
			if c.Requests > 0 || c.StreamEvents > 0 {
				fmt.Fprintf(w, "           Requests: %d  Stream events: %d\n", c.Requests, c.StreamEvents)
			}
			if c.responses > 0 {
				fmt.Fprintf(w, "           Round trip: mean %s, max %s\n",
					formatDuration(c.MeanRoundTrip()), formatDuration(c.MaxRoundTrip))
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
