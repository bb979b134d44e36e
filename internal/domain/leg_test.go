package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegJSONKeepsVariant(t *testing.T) {
	in := Leg{GameRef: "g1", Odds: -110, Pick: PlayerProp{PlayerID: "p23", Stat: "points", Side: SideOver, Line: decimal.RequireFromString("27.5")}}

	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"market":"player_prop"`)

	var out Leg
	require.NoError(t, json.Unmarshal(b, &out))
	prop, ok := out.Pick.(PlayerProp)
	require.True(t, ok, "pick=%T", out.Pick)
	assert.Equal(t, "p23", prop.PlayerID)
	assert.True(t, prop.Line.Equal(decimal.RequireFromString("27.5")))
}

func TestLegUnmarshalUnknownMarket(t *testing.T) {
	var l Leg
	err := json.Unmarshal([]byte(`{"gameRef":"g1","odds":100,"market":"exotic","pick":{}}`), &l)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedLeg))
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusPartiallySettled))
	assert.True(t, StatusPartiallySettled.CanTransition(StatusLost))
	assert.False(t, StatusWon.CanTransition(StatusLost))
	assert.False(t, StatusPartiallySettled.CanTransition(StatusPending))
}

func TestInsufficientFundsIs(t *testing.T) {
	var err error = &InsufficientFundsError{Required: decimal.NewFromInt(10)}
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
}
