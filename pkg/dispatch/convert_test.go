package dispatch

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

type celsius float64

func TestConvert(t *testing.T) {
	tests := []struct {
		name    string
		v       any
		to      reflect.Type
		want    any
		wantErr bool
	}{
		{name: "nil is zero value", v: nil, to: reflect.TypeOf(0), want: 0},
		{name: "assignable passes through", v: "Ada", to: reflect.TypeOf(""), want: "Ada"},
		{name: "int to int64", v: 36, to: reflect.TypeOf(int64(0)), want: int64(36)},
		{name: "int64 above 2^53 keeps precision", v: int64(1<<53 + 1), to: reflect.TypeOf(int64(0)), want: int64(1<<53 + 1)},
		{name: "integral float to int", v: float64(36), to: reflect.TypeOf(0), want: 36},
		{name: "fractional float to int", v: 36.5, to: reflect.TypeOf(0), wantErr: true},
		{name: "int overflows int8", v: 300, to: reflect.TypeOf(int8(0)), wantErr: true},
		{name: "negative int to uint", v: -1, to: reflect.TypeOf(uint(0)), wantErr: true},
		{name: "large uint64 to int64", v: uint64(1 << 63), to: reflect.TypeOf(int64(0)), wantErr: true},
		{name: "named float", v: 21.5, to: reflect.TypeOf(celsius(0)), want: celsius(21.5)},
		{name: "number never becomes string", v: 65, to: reflect.TypeOf(""), wantErr: true},
		{name: "json number to int64", v: json.Number("9007199254740993"), to: reflect.TypeOf(int64(0)), want: int64(9007199254740993)},
		{name: "json number to uint64", v: json.Number("18446744073709551615"), to: reflect.TypeOf(uint64(0)), want: uint64(18446744073709551615)},
		{name: "json number to float", v: json.Number("1.25"), to: reflect.TypeOf(float32(0)), want: float32(1.25)},
		{name: "fractional json number to int", v: json.Number("1.5"), to: reflect.TypeOf(0), wantErr: true},
		{name: "json number overflows int16", v: json.Number("70000"), to: reflect.TypeOf(int16(0)), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.v, tt.to)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Convert(%v, %s) error = %v, wantErr %v", tt.v, tt.to, err, tt.wantErr)
			}
			if err != nil {
				var re *ResultError
				if !errors.As(err, &re) {
					t.Errorf("Convert() error = %T, want *ResultError", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Convert(%v, %s) = %v (%T), want %v (%T)", tt.v, tt.to, got, got, tt.want, tt.want)
			}
		})
	}
}
