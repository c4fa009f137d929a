package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLoggerNotifierWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	n := NewLoggerNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	if err := n.Send(context.Background(), Message{Kind: KindWagerSettled, Destination: "dest", WagerID: 9, Body: "paid"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["kind"] != KindWagerSettled || entry["wager_id"] != float64(9) {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestRecorderKeepsOrder(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	_ = r.Send(ctx, Message{Kind: KindWagerCreated})
	_ = r.Send(ctx, Message{Kind: KindWagerJoined})

	kinds := r.Kinds()
	if len(kinds) != 2 || kinds[0] != KindWagerCreated || kinds[1] != KindWagerJoined {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
	msgs := r.Messages()
	msgs[0].Kind = "mutated"
	if r.Kinds()[0] != KindWagerCreated {
		t.Fatal("Messages returned shared storage")
	}
}
