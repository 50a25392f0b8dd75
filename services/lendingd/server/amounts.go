package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"vstreet/crypto"
)

const requestLimit = 1 << 20 // 1 MiB

var errEmptyBody = errors.New("request body is empty")

// Amount is a non-negative integer carried as a decimal JSON string.
type Amount struct {
	uint256.Int
}

// UnmarshalJSON accepts "123" or 123.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" {
		return errors.New("amount is empty")
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	a.Int = *v
	return nil
}

// Address decodes a bech32 or hex address from a JSON string.
type Address struct {
	crypto.Address
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	addr, err := crypto.DecodeAddress(s)
	if err != nil {
		return err
	}
	a.Address = addr
	return nil
}

func decodeBody(r *http.Request, dst any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, requestLimit))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(data) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// units renders a scaled integer as a decimal number of whole units.
func units(v uint256.Int, scale uint64) string {
	d := decimal.NewFromBigInt(v.ToBig(), 0)
	if scale <= 1 {
		return d.String()
	}
	return d.Div(decimal.NewFromBigInt(new(uint256.Int).SetUint64(scale).ToBig(), 0)).String()
}

// ratio renders a fixed-point rate over scale as a percentage.
func ratio(rate, scale uint64) string {
	if scale == 0 {
		return "0"
	}
	r := decimal.NewFromBigInt(new(uint256.Int).SetUint64(rate).ToBig(), 0)
	s := decimal.NewFromBigInt(new(uint256.Int).SetUint64(scale).ToBig(), 0)
	return r.Mul(decimal.NewFromInt(100)).Div(s).String()
}
