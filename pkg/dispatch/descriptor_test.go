package dispatch

import (
	"errors"
	"reflect"
	"testing"
)

type lookup interface {
	Find(key string, limit int) ([]string, error)
	Close()
}

var lookupType = reflect.TypeOf((*lookup)(nil)).Elem()

func TestDescriptor_String(t *testing.T) {
	tests := []struct {
		name string
		desc Descriptor
		want string
	}{
		{name: "getter", desc: MustDescriptor(personType, "GetName"), want: "Person.GetName() string"},
		{name: "setter", desc: MustDescriptor(personType, "SetName"), want: "Person.SetName(string)"},
		{name: "multiple results", desc: MustDescriptor(lookupType, "Find"), want: "lookup.Find(string, int) ([]string, error)"},
		{name: "free function", desc: FuncDescriptor("hash", func([]byte) uint64 { return 0 }), want: "hash([]uint8) uint64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.desc.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescriptor_Results(t *testing.T) {
	find := MustDescriptor(lookupType, "Find")
	if !find.ReturnsError() {
		t.Error("Find.ReturnsError() = false, want true")
	}
	if got := find.ResultType(); got != reflect.TypeOf([]string(nil)) {
		t.Errorf("Find.ResultType() = %v, want []string", got)
	}

	closeDesc := MustDescriptor(lookupType, "Close")
	if closeDesc.ReturnsError() {
		t.Error("Close.ReturnsError() = true, want false")
	}
	if closeDesc.ResultType() != nil {
		t.Errorf("Close.ResultType() = %v, want nil", closeDesc.ResultType())
	}
}

func TestDescriptor_Comparable(t *testing.T) {
	a := MustDescriptor(personType, "GetName")
	b := MustDescriptor(personType, "GetName")
	if a != b {
		t.Error("descriptors for the same method are not equal")
	}
	if a == a.WithDefault() {
		t.Error("WithDefault() descriptor equals the abstract one")
	}
}

func TestDescriptorOf_Errors(t *testing.T) {
	tests := []struct {
		name     string
		contract reflect.Type
		method   string
	}{
		{name: "nil contract", contract: nil, method: "GetName"},
		{name: "struct contract", contract: reflect.TypeOf(struct{}{}), method: "GetName"},
		{name: "missing method", contract: personType, method: "GetAge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DescriptorOf(tt.contract, tt.method); !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("DescriptorOf() error = %v, want ErrInvalidDescriptor", err)
			}
		})
	}
}

func TestDescriptorsOf(t *testing.T) {
	descs, err := DescriptorsOf(personType)
	if err != nil {
		t.Fatalf("DescriptorsOf() error = %v", err)
	}
	if len(descs) != 2 || descs[0].Name != "GetName" || descs[1].Name != "SetName" {
		t.Errorf("DescriptorsOf() = %v, want GetName, SetName", descs)
	}
}
