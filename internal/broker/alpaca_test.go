package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCallBoundedPropagatesResult(t *testing.T) {
	value, err := callBounded(context.Background(), func() (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, value)

	_, err = callBounded(context.Background(), func() (int, error) {
		return 0, errors.New("refused")
	})
	require.EqualError(t, err, "refused")
}

func TestCallBoundedReturnsDeadlineOnHungCall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	block := make(chan struct{})
	defer close(block)

	_, err := callBounded(ctx, func() (int, error) {
		<-block
		return 0, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
