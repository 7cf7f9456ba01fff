package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticOperationID_ReturnsSameID(t *testing.T) {
	gen := NewStaticOperationID("op-123")

	assert.Equal(t, "op-123", gen.Generate())
	assert.Equal(t, "op-123", gen.Generate())
}

func TestStaticOperationID_EmptyDefault(t *testing.T) {
	assert.Equal(t, "test-operation", NewStaticOperationID("").Generate())
}

func TestStaticOperationID_ThreadSafe(t *testing.T) {
	gen := NewStaticOperationID("thread-safe")

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				assert.Equal(t, "thread-safe", gen.Generate())
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
