package main

import (
	"context"
	"testing"
	"time"
)

func TestStopOnCloseCancelsWhenBotCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})

	returned := make(chan struct{})
	go func() {
		stopOnClose(ctx, done, cancel)
		close(returned)
	}()

	close(done)
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after bot closed")
	}
	<-returned
}

func TestStopOnCloseReturnsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	cancelled := false

	cancel()
	stopOnClose(ctx, done, func() { cancelled = true })
	if cancelled {
		t.Error("cancel called although the bot never closed")
	}
}
