package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingService struct {
	name     string
	started  chan struct{}
	stopCh   chan struct{}
	log      *stopLog
	startErr error

	stopOnce sync.Once
}

type stopLog struct {
	mu    sync.Mutex
	order []string
}

func (l *stopLog) record(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = append(l.order, name)
}

func (l *stopLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

func newRecordingService(name string, log *stopLog) *recordingService {
	return &recordingService{
		name:    name,
		started: make(chan struct{}),
		stopCh:  make(chan struct{}),
		log:     log,
	}
}

func (s *recordingService) Start() error {
	close(s.started)
	if s.startErr != nil {
		return s.startErr
	}
	<-s.stopCh
	return nil
}

func (s *recordingService) Stop() {
	s.stopOnce.Do(func() {
		s.log.record(s.name)
		close(s.stopCh)
	})
}

func TestLifecycleStopsServicesInReverseOrder(t *testing.T) {
	log := &stopLog{}
	first := newRecordingService("first", log)
	second := newRecordingService("second", log)

	lc := NewLifecycle(zap.NewNop())
	lc.Add("first", first)
	lc.Add("second", second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- lc.Run(ctx)
	}()

	waitStarted(t, first)
	waitStarted(t, second)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle did not shut down")
	}

	assert.Equal(t, []string{"second", "first"}, log.snapshot())
}

func TestLifecycleReturnsServiceError(t *testing.T) {
	log := &stopLog{}
	healthy := newRecordingService("healthy", log)
	failing := newRecordingService("failing", log)
	failing.startErr = errors.New("bind failed")

	lc := NewLifecycle(zap.NewNop())
	lc.Add("healthy", healthy)
	lc.Add("failing", failing)

	done := make(chan error, 1)
	go func() {
		done <- lc.Run(context.Background())
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failing")
		assert.Contains(t, err.Error(), "bind failed")
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle did not shut down after service error")
	}
}

func TestLifecycleFuncService(t *testing.T) {
	stopCh := make(chan struct{})
	var stopped bool
	svc := &FuncService{
		StartFn: func() error {
			<-stopCh
			return nil
		},
		StopFn: func() {
			stopped = true
			close(stopCh)
		},
	}

	lc := NewLifecycle(zap.NewNop())
	lc.Add("func", svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- lc.Run(ctx)
	}()

	// Give the service a moment to start before cancelling.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle did not shut down")
	}
	assert.True(t, stopped)
}

func waitStarted(t *testing.T, s *recordingService) {
	t.Helper()
	select {
	case <-s.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("service %s did not start", s.name)
	}
}
