package split

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestWaitScanReturnsScanError(t *testing.T) {
	boom := errors.New("adapter gone")
	err := waitScan(context.Background(),
		func() error { return boom },
		func() { t.Error("stop must not be called when the scan ends itself") })
	assert.ErrorIs(t, err, boom)
}

func TestWaitScanMatchCompletes(t *testing.T) {
	err := waitScan(context.Background(),
		func() error { return nil }, // radio stopped by the match callback
		func() { t.Error("stop must not be called after a match") })
	assert.NoError(t, err)
}

func TestWaitScanCancelStopsRadio(t *testing.T) {
	release := make(chan struct{})
	stopCalled := false
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		// a radio scan with no match in range blocks until told to stop
		done <- waitScan(ctx, func() error {
			<-release
			return nil
		}, func() {
			stopCalled = true
			close(release)
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, stopCalled, "cancellation must stop the radio")
	case <-time.After(time.Second):
		t.Fatal("cancelled scan never returned")
	}
}

func TestWaitScanTimeoutViaContext(t *testing.T) {
	release := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := waitScan(ctx, func() error {
		<-release
		return nil
	}, func() { close(release) })

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
