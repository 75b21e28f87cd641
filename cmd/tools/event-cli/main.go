package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/annel0/voxel-detach/internal/detached"
	"github.com/annel0/voxel-detach/internal/eventbus"
)

const timeFormat = "2006-01-02T15:04:05Z"

func main() {
	var (
		url        = flag.String("url", "nats://127.0.0.1:4222", "NATS server URL")
		stream     = flag.String("stream", "DETACHED", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		limit      = flag.Int("limit", 100, "Maximum number of events (tail)")
		follow     = flag.Bool("follow", false, "Follow new events (like tail -f)")
		window     = flag.Duration("for", 5*time.Second, "How long to collect events (stats)")
	)
	flag.Parse()

	bus, err := eventbus.NewJetStreamBus(eventbus.JetStreamConfig{URL: *url, Stream: *stream, Replay: true})
	if err != nil {
		log.Fatalf("❌ Failed to connect to JetStream: %v", err)
	}
	defer bus.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	filter := eventbus.Filter{Types: parseStringList(*eventTypes)}

	switch *command {
	case "tail":
		if err := tailEvents(ctx, bus, filter, *limit, *follow); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}
	case "stats":
		if err := showStats(ctx, bus, filter, *window); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		flag.Usage()
		os.Exit(1)
	}
}

func tailEvents(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter, limit int, follow bool) error {
	fmt.Printf("🎬 Tailing events (limit: %d, follow: %v)\n", limit, follow)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu    sync.Mutex
		count int
	)
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		if !follow && count >= limit {
			return
		}
		count++
		fmt.Println(formatEvent(ev))
		if !follow && count >= limit {
			cancel()
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	if !follow {
		// Без follow выходим, когда поток затих
		select {
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
		}
	} else {
		<-ctx.Done()
	}

	mu.Lock()
	fmt.Printf("\n📊 Total events: %d\n", count)
	mu.Unlock()
	return nil
}

func showStats(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter, window time.Duration) error {
	var (
		mu     sync.Mutex
		counts = make(map[string]int)
		first  time.Time
		last   time.Time
	)
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		counts[ev.EventType]++
		if first.IsZero() || ev.Timestamp.Before(first) {
			first = ev.Timestamp
		}
		if ev.Timestamp.After(last) {
			last = ev.Timestamp
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
	case <-time.After(window):
	}

	mu.Lock()
	defer mu.Unlock()
	fmt.Println("📊 Event Statistics")
	if !first.IsZero() {
		fmt.Printf("Period: %s - %s\n", first.Format(timeFormat), last.Format(timeFormat))
	}
	fmt.Print(formatCounts(counts))
	return nil
}

func formatCounts(counts map[string]int) string {
	types := make([]string, 0, len(counts))
	total := 0
	for t, n := range counts {
		types = append(types, t)
		total += n
	}
	sort.Strings(types)

	var b strings.Builder
	fmt.Fprintf(&b, "Total events: %d\n", total)
	for _, t := range types {
		fmt.Fprintf(&b, "  %s: %d events\n", t, counts[t])
	}
	return b.String()
}

// formatEvent печатает заголовок события и разобранную полезную нагрузку известных типов
func formatEvent(ev *eventbus.Envelope) string {
	head := fmt.Sprintf("[%s] %s/%s [%s]",
		ev.Timestamp.UTC().Format(timeFormat), ev.Source, ev.EventType, ev.ID)

	switch ev.EventType {
	case detached.EventBlockPlaced:
		var p detached.BlockPlacedEvent
		if err := json.Unmarshal(ev.Payload, &p); err == nil {
			return fmt.Sprintf("%s\n  Matrix: %d Chunk: %s Voxel: %d Value: %d Hit: (%.2f,%.2f,%.2f)",
				head, p.Matrix, p.Chunk, p.Voxel, p.Value, p.Hit[0], p.Hit[1], p.Hit[2])
		}
	case detached.EventMatrixAdded, detached.EventMatrixRemoved, detached.EventMatrixMoved:
		var p detached.MatrixEvent
		if err := json.Unmarshal(ev.Payload, &p); err == nil {
			return fmt.Sprintf("%s\n  Matrix: %d Chunks: %d", head, p.Matrix, p.Chunks)
		}
	}
	return fmt.Sprintf("%s\n  Payload: %s", head, string(ev.Payload))
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
