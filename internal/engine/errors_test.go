package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/baiirun/worklog/internal/storage"
)

func TestFromStore(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"not found", fmt.Errorf("item not found: x: %w", storage.ErrNotFound), ErrNotFound},
		{"conflict", fmt.Errorf("item x changed: %w", storage.ErrConflict), ErrConflict},
		{"deadline", context.DeadlineExceeded, ErrDependency},
		{"other", errors.New("disk I/O error"), ErrDependency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fromStore("op", tt.err)
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, fromStore("op", nil))
}

func TestFromStore_KeepsEngineErrors(t *testing.T) {
	orig := precondition("open issues must be resolved first")
	err := fromStore("change status", orig)

	assert.Same(t, orig, err)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Contains(t, err.Error(), "change status: precondition failed: open issues")
}

func TestError_Message(t *testing.T) {
	err := withOp("delete item", deny(ReasonNotOwner, "only the owner may delete %s", "mt-1"))

	assert.Equal(t, "delete item: authorization denied (not owner): only the owner may delete mt-1", err.Error())
	assert.Equal(t, ReasonNotOwner, ReasonOf(err))
	assert.Equal(t, Reason(""), ReasonOf(errors.New("plain")))
}
