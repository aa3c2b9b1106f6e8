package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"swapFeed/internal/model"
)

// SwapDecoder decodes the two recognized swap event shapes by topic0.
type SwapDecoder struct {
	managerEvent abi.Event
	poolEvent    abi.Event
}

// NewSwapDecoder builds a decoder over the embedded swap ABIs.
func NewSwapDecoder() (*SwapDecoder, error) {
	managerABI, poolABI, err := SwapABIs()
	if err != nil {
		return nil, err
	}
	return &SwapDecoder{
		managerEvent: managerABI.Events["Swap"],
		poolEvent:    poolABI.Events["Swap"],
	}, nil
}

// Topic0s returns the recognized event signature topics for query filters.
func (d *SwapDecoder) Topic0s() []string {
	return []string{TopicManagerSwap, TopicPoolSwap}
}

// CanDecode checks whether topic0 names a recognized swap shape.
func (d *SwapDecoder) CanDecode(topic0 string) bool {
	switch strings.ToLower(topic0) {
	case TopicManagerSwap, TopicPoolSwap:
		return true
	default:
		return false
	}
}

// ZeroSwapEvent is the decode-failure fallback: a zero-filled payload that
// keeps the pool id so the record stays attributable.
func ZeroSwapEvent(poolID string) model.SwapEventData {
	return model.SwapEventData{
		Amount0:      "0",
		Amount1:      "0",
		SqrtPriceX96: "0",
		Liquidity:    "0",
		PoolID:       poolID,
	}
}

// PoolID derives the pool identifier for a swap log: the indexed bytes32
// id for the pool-manager shape, the emitting contract otherwise. The id
// does not encode token addresses; resolving it to a token pair is out of
// reach here.
func (d *SwapDecoder) PoolID(rec model.SwapRecord) string {
	if strings.EqualFold(rec.Topic0(), TopicManagerSwap) && len(rec.Topics) > 1 {
		return rec.Topics[1]
	}
	return rec.Address
}

// Decode parses a swap log's data payload into its fixed-width fields.
func (d *SwapDecoder) Decode(rec model.SwapRecord) (model.SwapEventData, error) {
	switch strings.ToLower(rec.Topic0()) {
	case TopicManagerSwap:
		return d.decodeManager(rec)
	case TopicPoolSwap:
		return d.decodePool(rec)
	default:
		return model.SwapEventData{}, fmt.Errorf("unsupported topic0: %s", rec.Topic0())
	}
}

func (d *SwapDecoder) decodeManager(rec model.SwapRecord) (model.SwapEventData, error) {
	values, err := unpackNonIndexed(d.managerEvent, rec.Data)
	if err != nil {
		return model.SwapEventData{}, err
	}
	if len(values) != 6 {
		return model.SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.SwapEventData{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.SwapEventData{}, err
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return model.SwapEventData{}, err
	}
	liquidity, err := asBigInt(values[3])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.SwapEventData{}, err
	}
	feeInt, err := asBigInt(values[5])
	if err != nil {
		return model.SwapEventData{}, err
	}
	fee, err := uint24FromBig(feeInt)
	if err != nil {
		return model.SwapEventData{}, err
	}

	return model.SwapEventData{
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
		SqrtPriceX96: sqrtPrice.String(),
		Liquidity:    liquidity.String(),
		Tick:         tick,
		Fee:          fee,
		PoolID:       d.PoolID(rec),
	}, nil
}

func (d *SwapDecoder) decodePool(rec model.SwapRecord) (model.SwapEventData, error) {
	values, err := unpackNonIndexed(d.poolEvent, rec.Data)
	if err != nil {
		return model.SwapEventData{}, err
	}
	if len(values) != 5 {
		return model.SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.SwapEventData{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.SwapEventData{}, err
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return model.SwapEventData{}, err
	}
	liquidity, err := asBigInt(values[3])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.SwapEventData{}, err
	}

	return model.SwapEventData{
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
		SqrtPriceX96: sqrtPrice.String(),
		Liquidity:    liquidity.String(),
		Tick:         tick,
		PoolID:       d.PoolID(rec),
	}, nil
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	b, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected big.Int, got %T", value)
	}
	return b, nil
}

func int24FromBig(value *big.Int) (int32, error) {
	if !value.IsInt64() {
		return 0, fmt.Errorf("int24 out of range: %s", value)
	}
	v := value.Int64()
	if v < -(1<<23) || v >= 1<<23 {
		return 0, fmt.Errorf("int24 out of range: %d", v)
	}
	return int32(v), nil
}

func uint24FromBig(value *big.Int) (uint32, error) {
	if !value.IsUint64() {
		return 0, fmt.Errorf("uint24 out of range: %s", value)
	}
	v := value.Uint64()
	if v >= 1<<24 {
		return 0, fmt.Errorf("uint24 out of range: %d", v)
	}
	return uint32(v), nil
}
