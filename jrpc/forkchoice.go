package jrpc

import (
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	gojson "github.com/goccy/go-json"
)

// ForkchoiceState is the first parameter of engine_forkchoiceUpdated calls;
// only used for diagnostics.
type ForkchoiceState struct {
	HeadBlockHash      ethcommon.Hash `json:"headBlockHash"`
	SafeBlockHash      ethcommon.Hash `json:"safeBlockHash"`
	FinalizedBlockHash ethcommon.Hash `json:"finalizedBlockHash"`
}

// PayloadAttributes is the (optional) second parameter of
// engine_forkchoiceUpdated calls. Its timestamp is the deadline by which the
// block must be built.
type PayloadAttributes struct {
	Timestamp string `json:"timestamp"`
}

func (pa PayloadAttributes) GetTimestamp() (time.Time, error) {
	epoch, err := hexutil.DecodeUint64(pa.Timestamp)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(epoch), 0), nil
}

// ParseForkchoiceUpdated extracts the forkchoice state and, when present, the
// payload attributes from a forkchoiceUpdated call. Either result may be nil
// if the respective parameter is absent or does not parse.
func ParseForkchoiceUpdated(call Call) (*ForkchoiceState, *PayloadAttributes) {
	params := call.GetParams()

	var state *ForkchoiceState
	if len(params) >= 1 && params[0] != nil {
		fs := ForkchoiceState{}
		if err := gojson.Unmarshal(params[0], &fs); err == nil {
			state = &fs
		}
	}

	var attrs *PayloadAttributes
	if len(params) >= 2 && params[1] != nil {
		pa := PayloadAttributes{}
		if err := gojson.Unmarshal(params[1], &pa); err == nil && pa.Timestamp != "" {
			attrs = &pa
		}
	}

	return state, attrs
}
