package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/burl/pkg/mesh"
	"github.com/chazu/burl/pkg/smooth"
)

func testOps() map[string]OpFunc {
	return map[string]OpFunc{
		"echo": func(payload any, report func(Progress)) (any, error) {
			report(Progress{Current: 1, Total: 1, Stage: "echo"})
			return payload, nil
		},
		"fail": func(payload any, report func(Progress)) (any, error) {
			return nil, fmt.Errorf("op failed on %v", payload)
		},
		"panic": func(payload any, report func(Progress)) (any, error) {
			panic("corrupted")
		},
		"block": func(payload any, report func(Progress)) (any, error) {
			<-payload.(chan struct{})
			return "unblocked", nil
		},
		"handshake": func(payload any, report func(Progress)) (any, error) {
			ch := payload.(chan struct{})
			ch <- struct{}{}
			<-ch
			report(Progress{Current: 1, Total: 1, Stage: "late"})
			return "late result", nil
		},
	}
}

func await(t *testing.T, h *Handle) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.Await(ctx)
}

func TestDispatchAndAwait(t *testing.T) {
	e := NewExecutor(testOps())
	h, err := e.Dispatch("echo", "hello")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if h.ID == uuid.Nil {
		t.Error("handle has zero correlation id")
	}

	value, err := await(t, h)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if value != "hello" {
		t.Errorf("value = %v, want hello", value)
	}
}

func TestProgressRoutedToHandle(t *testing.T) {
	e := NewExecutor(testOps())
	h, err := e.Dispatch("echo", 42)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if _, err := await(t, h); err != nil {
		t.Fatalf("Await: %v", err)
	}

	var events []Progress
	for p := range h.Progress() {
		events = append(events, p)
	}
	if len(events) != 1 {
		t.Fatalf("got %d progress events, want 1", len(events))
	}
	if events[0].Stage != "echo" {
		t.Errorf("Stage = %q, want echo", events[0].Stage)
	}
}

func TestDispatchRejectsBadRequests(t *testing.T) {
	e := NewExecutor(testOps())
	if _, err := e.Dispatch("no-such-op", 1); err == nil {
		t.Error("expected error for unknown operation")
	}
	if _, err := e.Dispatch("echo", nil); err == nil {
		t.Error("expected error for nil payload")
	}
}

func TestOperationalFailureArrivesThroughHandle(t *testing.T) {
	e := NewExecutor(testOps())
	h, err := e.Dispatch("fail", "input")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if _, err := await(t, h); err == nil {
		t.Error("expected the op's error through the handle")
	}

	// The executor survives an ordinary op error.
	h2, err := e.Dispatch("echo", "still alive")
	if err != nil {
		t.Fatalf("Dispatch after failure: %v", err)
	}
	if v, err := await(t, h2); err != nil || v != "still alive" {
		t.Errorf("follow-up op: value=%v err=%v", v, err)
	}
}

func TestTerminateFailsAllPending(t *testing.T) {
	e := NewExecutor(testOps())
	gate := make(chan struct{})

	blocked, err := e.Dispatch("block", gate)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	queued, err := e.Dispatch("echo", "never runs")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	e.Terminate()
	close(gate)

	if _, err := await(t, queued); !errors.Is(err, ErrTerminated) {
		t.Errorf("queued op err = %v, want ErrTerminated", err)
	}
	if _, err := e.Dispatch("echo", "after"); !errors.Is(err, ErrTerminated) {
		t.Errorf("post-terminate Dispatch err = %v, want ErrTerminated", err)
	}
	// The blocked op was in flight when Terminate hit; its handle is
	// rejected like the rest.
	if _, err := await(t, blocked); !errors.Is(err, ErrTerminated) {
		t.Errorf("in-flight op err = %v, want ErrTerminated", err)
	}
}

func TestTerminateDiscardsLateResult(t *testing.T) {
	e := NewExecutor(testOps())
	ch := make(chan struct{})

	h, err := e.Dispatch("handshake", ch)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	<-ch // op is now in flight
	e.Terminate()
	ch <- struct{}{} // let the op finish with its own result

	if _, err := await(t, h); !errors.Is(err, ErrTerminated) {
		t.Fatalf("in-flight op err = %v, want ErrTerminated", err)
	}

	// The op's late result must be dropped, not delivered as a second
	// receive on the handle.
	select {
	case res, ok := <-h.done:
		if ok {
			t.Errorf("second result delivered after termination: %+v", res)
		}
	case <-time.After(50 * time.Millisecond):
	}

	// Progress was closed by the rejection; the op's late report must
	// not panic the worker or reopen the stream.
	for range h.Progress() {
	}
}

func TestDispatchUnblocksOnTerminate(t *testing.T) {
	e := NewExecutor(testOps())
	gate := make(chan struct{})
	defer close(gate)

	// Park the worker on a blocking op, then fill the queue behind it.
	if _, err := e.Dispatch("block", gate); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	for i := 0; i < cap(e.queue); i++ {
		if _, err := e.Dispatch("echo", i); err != nil {
			t.Fatalf("Dispatch %d: %v", i, err)
		}
	}

	errc := make(chan error, 1)
	go func() {
		_, err := e.Dispatch("echo", "overflow")
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	e.Terminate()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrTerminated) {
			t.Errorf("overflow Dispatch err = %v, want ErrTerminated", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dispatch still blocked after Terminate")
	}
}

func TestPanicKillsTheContext(t *testing.T) {
	e := NewExecutor(testOps())
	h, err := e.Dispatch("panic", 1)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if _, err := await(t, h); !errors.Is(err, ErrTerminated) {
		t.Errorf("panicked op err = %v, want ErrTerminated", err)
	}
	if _, err := e.Dispatch("echo", 1); !errors.Is(err, ErrTerminated) {
		t.Errorf("Dispatch after panic err = %v, want ErrTerminated", err)
	}
}

func TestConcurrentDispatches(t *testing.T) {
	e := NewExecutor(testOps())
	const n = 32

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := e.Dispatch("echo", i)
			if err != nil {
				t.Errorf("Dispatch %d: %v", i, err)
				return
			}
			v, err := await(t, h)
			if err != nil {
				t.Errorf("Await %d: %v", i, err)
				return
			}
			if v != i {
				t.Errorf("result routed to wrong handle: got %v, want %d", v, i)
			}
		}(i)
	}
	wg.Wait()
}

func TestAwaitHonorsContext(t *testing.T) {
	e := NewExecutor(testOps())
	gate := make(chan struct{})
	defer close(gate)

	h, err := e.Dispatch("block", gate)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := h.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestPoolReplacesDeadExecutor(t *testing.T) {
	p := NewPool()
	first := p.Executor(FamilyCSG)
	if p.Executor(FamilyCSG) != first {
		t.Error("healthy executor not reused")
	}
	if p.Executor(FamilyDecimate) == first {
		t.Error("families must not share executors")
	}

	first.Terminate()
	replacement := p.Executor(FamilyCSG)
	if replacement == first {
		t.Error("dead executor not replaced")
	}
	if _, err := replacement.Dispatch(OpSmooth, SmoothPayload{
		Mesh:    &mesh.Buffer{Positions: []float32{0, 0, 0, 1, 0, 0, 0, 0, 1}},
		Options: smooth.Options{Method: smooth.Taubin, Iterations: 1},
	}); err != nil {
		t.Errorf("replacement executor rejects work: %v", err)
	}

	p.Shutdown()
	if _, err := replacement.Dispatch(OpSmooth, SmoothPayload{}); !errors.Is(err, ErrTerminated) {
		t.Errorf("post-shutdown Dispatch err = %v, want ErrTerminated", err)
	}
}

func TestDefaultOpsRejectWrongPayloadType(t *testing.T) {
	e := NewExecutor(DefaultOps())
	h, err := e.Dispatch(OpDecimate, "not a decimate payload")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if _, err := await(t, h); err == nil {
		t.Error("expected a payload type error through the handle")
	}
}
