package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/shehryarbajwa/regpool/pkg/models"
)

// fakeService is an in-memory Service
type fakeService struct {
	mu        sync.Mutex
	next      int
	createErr error
	openErr   error
	closeErr  error
	created   []string
	closed    []string
}

func (f *fakeService) Create(_ context.Context, req models.CreateBrowserRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.next++
	id := fmt.Sprintf("bid-%d", f.next)
	f.created = append(f.created, id)
	return id, nil
}

func (f *fakeService) Open(_ context.Context, id string) (string, error) {
	if f.openErr != nil {
		return "", f.openErr
	}
	return "ws://fake/" + id, nil
}

func (f *fakeService) Close(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
	return f.closeErr
}

func (f *fakeService) Detail(_ context.Context, id string) (Detail, error) {
	return Detail{ID: id, Seq: 7}, nil
}

func (f *fakeService) closedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}
