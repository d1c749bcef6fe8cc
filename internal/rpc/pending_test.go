package rpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestPendingTableResolve(t *testing.T) {
	pt := NewPendingTable()
	id, wait := pt.Send(context.Background(), time.Second)

	if !pt.Resolve(id, json.RawMessage(`{"ok":true}`), nil) {
		t.Fatal("Resolve() = false, want true for outstanding id")
	}

	result, err := wait()
	if err != nil {
		t.Fatalf("wait() error = %v", err)
	}
	if string(result) != `{"ok":true}` {
		t.Errorf("result = %s", result)
	}

	if pt.Resolve(id, nil, nil) {
		t.Error("Resolve() on an already-resolved id should return false")
	}
}

func TestPendingTableTimeout(t *testing.T) {
	pt := NewPendingTable()
	_, wait := pt.Send(context.Background(), 20*time.Millisecond)

	_, err := wait()
	if err == nil {
		t.Fatal("wait() should return a timeout error")
	}
}

func TestPendingTableCancellation(t *testing.T) {
	pt := NewPendingTable()
	ctx, cancel := context.WithCancel(context.Background())
	id, wait := pt.Send(ctx, time.Second)
	cancel()

	_, err := wait()
	if err == nil {
		t.Fatal("wait() should return context.Canceled")
	}
	if pt.Resolve(id, nil, nil) {
		t.Error("Resolve() after cancellation should find no pending entry")
	}
}

func TestPendingTableCloseAll(t *testing.T) {
	pt := NewPendingTable()
	_, wait1 := pt.Send(context.Background(), time.Second)
	_, wait2 := pt.Send(context.Background(), time.Second)

	pt.CloseAll("shutdown")

	if _, err := wait1(); err == nil {
		t.Error("wait1() should fail after CloseAll")
	}
	if _, err := wait2(); err == nil {
		t.Error("wait2() should fail after CloseAll")
	}
	if pt.Len() != 0 {
		t.Errorf("Len() = %d, want 0", pt.Len())
	}
}
