package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCancelled, StatusProcessing, false},
		{StatusCompleted, StatusCancelled, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.False(t, StatusPending.Terminal())
}

func TestProductFlags(t *testing.T) {
	p := Product{Active: true, Stock: 1, Category: Category{RequiresPlayerID: true}}
	assert.True(t, p.NeedsPlayerID())
	assert.True(t, p.Available())

	p.Stock = 0
	assert.False(t, p.Available())

	r := Product{IsRedeemProduct: true}
	assert.True(t, r.RedeemCodeUsed())
	r.AvailableCodes = 2
	assert.False(t, r.RedeemCodeUsed())
}
