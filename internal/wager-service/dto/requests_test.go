package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceWagerRequestDecodesNumbersAndStrings(t *testing.T) {
	body := `{"kind":"parlay","stake":"25.50","legs":[{"gameRef":"g1","marketType":"moneyline","selection":"home","odds":"-110"}],"teaserPoints":6}`
	var req PlaceWagerRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	assert.Equal(t, "25.5", req.Stake.String())
	require.NotNil(t, req.TeaserPoints)
	assert.Equal(t, "6", req.TeaserPoints.String())
	assert.Nil(t, req.Validate().Err())
}

func TestPlaceWagerRequestValidation(t *testing.T) {
	req := PlaceWagerRequest{Kind: "lottery", RoundRobinSizes: []int{1}, PushRule: "maybe"}
	verr := req.Validate()
	require.Error(t, verr.Err())

	got := map[string]string{}
	for _, f := range verr.Fields {
		got[f.Field] = f.Message
	}
	assert.Contains(t, got["kind"], "must be one of")
	assert.Equal(t, "is required", got["legs"])
	assert.Equal(t, "must be at least 2", got["roundRobinSizes[0]"])
	assert.Contains(t, got["pushRule"], "continue halt")
}

func TestDepositRequestValidation(t *testing.T) {
	req := DepositRequest{}
	verr := req.Validate()
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "externalRef", verr.Fields[0].Field)
}
