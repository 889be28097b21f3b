package money

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepeatedDeltasDoNotDrift(t *testing.T) {
	total := Zero()
	step := MustParse("0.10")
	for i := 0; i < 1000; i++ {
		total = total.Add(step)
	}
	for i := 0; i < 999; i++ {
		total = total.Sub(step)
	}
	assert.True(t, total.Equal(MustParse("0.1")), "got %s", total)
}

func TestMulIntAndString(t *testing.T) {
	assert.Equal(t, "19.98", MustParse("9.99").MulInt(2).String())
	assert.Equal(t, "5.00", MustParse("5").String())
	assert.Equal(t, "0.125", MustParse("0.125").String())
}

func TestJSONAcceptsNumbersAndStrings(t *testing.T) {
	var body struct {
		A Money  `json:"a"`
		B Money  `json:"b"`
		C *Money `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 9.99, "b": "12.50", "c": null}`), &body))
	assert.True(t, body.A.Equal(MustParse("9.99")))
	assert.True(t, body.B.Equal(MustParse("12.5")))
	assert.Nil(t, body.C)

	out, err := json.Marshal(map[string]Money{"total": MustParse("24.98")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total": 24.98}`, string(out))
}

func TestJSONRejectsGarbage(t *testing.T) {
	var m Money
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &m))
}

func TestScanAndValue(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan([]byte("7.2500")))
	assert.Equal(t, "7.25", m.String())

	require.NoError(t, m.Scan(int64(3)))
	assert.True(t, m.Equal(FromInt(3)))

	v, err := MustParse("1.50").Value()
	require.NoError(t, err)
	assert.Equal(t, "1.5", v)
}

func TestParseRejectsValuesOutsideStoredPrecision(t *testing.T) {
	cases := map[string]error{
		"1e200000000":     ErrOutOfRange,
		"1e10":            ErrOutOfRange,
		"10000000000":     ErrOutOfRange,
		"-10000000000.00": ErrOutOfRange,
		"0.12345":         ErrPrecision,
		"1e-5":            ErrPrecision,
		"1e-200000000":    ErrPrecision,
	}
	for raw, want := range cases {
		_, err := Parse(raw)
		assert.True(t, errors.Is(err, want), "%s: got %v", raw, err)
	}

	_, err := Parse("1" + string(make([]byte, 40)))
	assert.Error(t, err)
}

func TestParseAcceptsValuesWithinStoredPrecision(t *testing.T) {
	cases := map[string]string{
		"1e9":             "1000000000.00",
		"9999999999.9999": "9999999999.9999",
		"0.12300":         "0.123",
		"2.5e-1":          "0.25",
		"0e99999999":      "0.00",
	}
	for raw, want := range cases {
		m, err := Parse(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, m.String(), raw)
	}
}

func TestJSONRejectsHugeExponent(t *testing.T) {
	var body struct {
		Paid Money `json:"paid"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"paid": 1e200000000}`), &body))
	assert.Error(t, json.Unmarshal([]byte(`{"paid": "1e200000000"}`), &body))
}
