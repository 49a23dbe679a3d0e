package symphony

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model/enum"
)

func TestParseMasterContract(t *testing.T) {
	payload := strings.Join([]string{
		"NSEFO|51234|NIFTY2620922000CE|OPTIDX|CE|22000|2026-09-24|50|0.05|NIFTY",
		"NSEFO|51235|NIFTY2620922000PE|OPTIDX|PE|22000|2026-09-24|50|0.05|NIFTY",
		"short|row",
		"NSEFO|51236|NIFTY26SEPFUT|FUTIDX|FUT|0|2026-09-24|50|0.05|NIFTY",
	}, "\n")

	out, err := parseMasterContract(strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, out, 3)

	call := out[0]
	assert.Equal(t, "NSEFO", call.Segment)
	assert.Equal(t, "51234", call.Token)
	assert.Equal(t, enum.OptionTypeCall, call.OptionType)
	assert.Equal(t, 22000.0, call.StrikePrice)
	assert.Equal(t, 50, call.LotSize)
	assert.Equal(t, 0.05, call.TickSize)
	assert.Equal(t, "NIFTY", call.UnderlyingName)
	assert.Equal(t, "2026-09-24", call.Expiry.Format("2006-01-02"))

	assert.Equal(t, enum.OptionTypeFuture, out[2].OptionType)
}

func TestParseMasterContractEmpty(t *testing.T) {
	out, err := parseMasterContract(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, out)
}
