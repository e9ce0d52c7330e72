package registry_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
	"github.com/telemetry-sdk/edge-delivery/internal/registry"
)

func TestUnregisterDeliversFragmentsInOrder(t *testing.T) {
	t.Parallel()

	completion := registry.NewCompletion()

	var delivered []entity.EventHandle

	completion.Register("event-1", func(handles []entity.EventHandle) {
		delivered = handles
	})

	completion.AddFragment("event-1", entity.EventHandle{Type: "state:store"})
	completion.AddFragment("event-1", entity.EventHandle{Type: "identity:result"})

	completion.Unregister("event-1")

	require.Len(t, delivered, 2)
	assert.Equal(t, "state:store", delivered[0].Type)
	assert.Equal(t, "identity:result", delivered[1].Type)
	assert.Equal(t, 0, completion.Pending())
}

func TestUnregisterWithoutFragments(t *testing.T) {
	t.Parallel()

	completion := registry.NewCompletion()

	called := 0

	completion.Register("event-1", func(handles []entity.EventHandle) {
		called++

		assert.Empty(t, handles)
	})

	completion.Unregister("event-1")
	completion.Unregister("event-1")

	assert.Equal(t, 1, called)
}

func TestFragmentsAreIsolatedPerEventID(t *testing.T) {
	t.Parallel()

	completion := registry.NewCompletion()

	var deliveredFirst, deliveredSecond []entity.EventHandle

	completion.Register("event-1", func(handles []entity.EventHandle) { deliveredFirst = handles })
	completion.Register("event-2", func(handles []entity.EventHandle) { deliveredSecond = handles })

	completion.AddFragment("event-1", entity.EventHandle{Type: "identity:result"})
	completion.AddFragment("event-2", entity.EventHandle{Type: "personalization:decisions"})
	completion.AddFragment("event-1", entity.EventHandle{Type: "state:store"})

	completion.Unregister("event-1")
	completion.Unregister("event-2")

	require.Len(t, deliveredFirst, 2)
	assert.Equal(t, "identity:result", deliveredFirst[0].Type)
	assert.Equal(t, "state:store", deliveredFirst[1].Type)

	require.Len(t, deliveredSecond, 1)
	assert.Equal(t, "personalization:decisions", deliveredSecond[0].Type)
}

func TestRegisterSupersedesPriorRegistration(t *testing.T) {
	t.Parallel()

	completion := registry.NewCompletion()

	firstCalled := false
	secondCalled := false

	completion.Register("event-1", func([]entity.EventHandle) { firstCalled = true })
	completion.AddFragment("event-1", entity.EventHandle{Type: "old"})
	completion.Register("event-1", func(handles []entity.EventHandle) {
		secondCalled = true

		assert.Empty(t, handles)
	})

	completion.Unregister("event-1")

	assert.False(t, firstCalled)
	assert.True(t, secondCalled)
}

func TestIgnoredOperations(t *testing.T) {
	t.Parallel()

	completion := registry.NewCompletion()

	completion.Register("", func([]entity.EventHandle) {})
	completion.Register("event-1", nil)
	completion.AddFragment("unknown", entity.EventHandle{})
	completion.Unregister("unknown")

	assert.Equal(t, 0, completion.Pending())
}

func TestCallbackMayReenterRegistry(t *testing.T) {
	t.Parallel()

	completion := registry.NewCompletion()

	reentered := false

	completion.Register("event-1", func([]entity.EventHandle) {
		completion.Register("event-2", func([]entity.EventHandle) { reentered = true })
		completion.Unregister("event-2")
	})

	completion.Unregister("event-1")

	assert.True(t, reentered)
}

func TestConcurrentFragmentsAndUnregister(t *testing.T) {
	t.Parallel()

	completion := registry.NewCompletion()

	done := make(chan struct{})

	completion.Register("event-1", func([]entity.EventHandle) { close(done) })

	wg := sync.WaitGroup{}

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			completion.AddFragment("event-1", entity.EventHandle{Type: "state:store"})
		}()
	}

	wg.Wait()
	completion.Unregister("event-1")

	<-done
	assert.Equal(t, 0, completion.Pending())
}
