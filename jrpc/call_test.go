package jrpc_test

import (
	"testing"
	"time"

	"github.com/flashbots/authproxy/jrpc"

	"github.com/stretchr/testify/assert"
)

func TestUnmarshal(t *testing.T) {
	{ // numeric id
		call, err := jrpc.Unmarshal([]byte(
			`{"jsonrpc":"2.0","id":42,"method":"engine_newPayloadV4","params":[{}]}`,
		))
		assert.NoError(t, err)
		assert.Equal(t, "42", call.GetID())
		assert.Equal(t, "engine_newPayloadV4", call.GetMethod())
	}

	{ // string id
		call, err := jrpc.Unmarshal([]byte(
			`{"jsonrpc":"2.0","id":"abc","method":"engine_getPayloadV4","params":[]}`,
		))
		assert.NoError(t, err)
		assert.Equal(t, `"abc"`, call.GetID())
		assert.Equal(t, "engine_getPayloadV4", call.GetMethod())
	}

	{ // not json-rpc at all
		_, err := jrpc.Unmarshal([]byte(`this is not json`))
		assert.Error(t, err)
	}
}

func TestParseForkchoiceUpdated(t *testing.T) {
	{ // state + payload attributes
		call, err := jrpc.Unmarshal([]byte(`{
			"jsonrpc": "2.0",
			"id": 1,
			"method": "engine_forkchoiceUpdatedV3",
			"params": [
				{
					"headBlockHash": "0x3b8fb240d288781d4aac94d3fd16809ee413bc99294a085798a589dae51ddd4a",
					"safeBlockHash": "0x3b8fb240d288781d4aac94d3fd16809ee413bc99294a085798a589dae51ddd4a",
					"finalizedBlockHash": "0x0000000000000000000000000000000000000000000000000000000000000000"
				},
				{
					"timestamp": "0x6553f100"
				}
			]
		}`))
		assert.NoError(t, err)

		state, attrs := jrpc.ParseForkchoiceUpdated(call)
		assert.NotNil(t, state)
		assert.NotNil(t, attrs)

		assert.Equal(t,
			"0x3b8fb240d288781d4aac94d3fd16809ee413bc99294a085798a589dae51ddd4a",
			state.HeadBlockHash.Hex(),
		)

		ts, err := attrs.GetTimestamp()
		assert.NoError(t, err)
		assert.Equal(t, time.Unix(0x6553f100, 0), ts)
	}

	{ // state only
		call, err := jrpc.Unmarshal([]byte(`{
			"jsonrpc": "2.0",
			"id": 2,
			"method": "engine_forkchoiceUpdatedV3",
			"params": [
				{"headBlockHash": "0x0000000000000000000000000000000000000000000000000000000000000001"},
				null
			]
		}`))
		assert.NoError(t, err)

		state, attrs := jrpc.ParseForkchoiceUpdated(call)
		assert.NotNil(t, state)
		assert.Nil(t, attrs)
	}
}
