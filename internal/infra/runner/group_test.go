package runner

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGroupGoDeliversError(t *testing.T) {
	var g Group
	want := errors.New("boom")
	ch := g.Go(context.Background(), func(ctx context.Context) error { return want })
	select {
	case err := <-ch:
		if !errors.Is(err, want) {
			t.Fatalf("err = %v, want %v", err, want)
		}
	case <-time.After(time.Second):
		t.Fatal("worker never exited")
	}
	g.Wait()
}

func TestGroupRunReportsNamedExits(t *testing.T) {
	var g Group
	ctx, cancel := context.WithCancel(context.Background())
	g.Run(ctx, "feed", func(ctx context.Context) error { return errors.New("feed down") })
	g.Run(ctx, "http", func(ctx context.Context) error { <-ctx.Done(); return nil })

	select {
	case res := <-g.Exits():
		if res.Name != "feed" || res.Err == nil {
			t.Fatalf("first exit = %+v, want feed failure", res)
		}
	case <-time.After(time.Second):
		t.Fatal("no exit reported")
	}
	cancel()
	select {
	case res := <-g.Exits():
		if res.Name != "http" || res.Err != nil {
			t.Fatalf("second exit = %+v, want clean http stop", res)
		}
	case <-time.After(time.Second):
		t.Fatal("http worker never stopped")
	}
	g.Wait()
}
