package actor_test

import (
	"context"
	"testing"

	"github.com/medflow/pharmacy-stock/pkg/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	a := &actor.Actor{ID: "u-1", Name: "Dana Pharmacist"}
	ctx := actor.WithActor(context.Background(), a)

	got := actor.FromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "u-1", got.ID)
	assert.False(t, got.IsSystem())
	assert.Equal(t, "Dana Pharmacist", got.String())
}

func TestFromContextOrSystem(t *testing.T) {
	got := actor.FromContextOrSystem(context.Background())
	assert.True(t, got.IsSystem())
	assert.Equal(t, actor.SystemID, got.ID)

	assert.Nil(t, actor.FromContext(context.Background()))

	var none *actor.Actor
	assert.True(t, none.IsSystem())
	assert.Equal(t, "system", none.String())
}
