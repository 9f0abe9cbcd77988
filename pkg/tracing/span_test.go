package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "q-1")

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, child := StartChildSpan(ctx, "shard")
			child.SetAttr("shard_id", i)
			child.End()
		}()
	}
	wg.Wait()
	root.End()
	first := root.Duration()
	root.End()

	if root.Duration() != first {
		t.Error("a second End must not move the duration")
	}
	children := root.Children()
	if len(children) != 3 {
		t.Fatalf("children = %d", len(children))
	}
	for _, c := range children {
		if c.TraceID != "q-1" {
			t.Errorf("child trace id = %q", c.TraceID)
		}
	}
	if SpanFromContext(context.Background()) != nil {
		t.Error("empty context has no span")
	}
}

func TestLogAtDebugOnly(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "q-2")
	_, child := StartChildSpan(ctx, "dependence")
	child.SetAttr("outcome", "applied")
	root.End()

	var buf bytes.Buffer
	root.Log(ctx, slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	if buf.Len() != 0 {
		t.Fatalf("logged at info level: %s", buf.String())
	}

	root.Log(ctx, slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["span"] != "dependence" || rec["outcome"] != "applied" || rec["depth"] != float64(1) || rec["ended"] != false {
		t.Errorf("child record = %v", rec)
	}
}
