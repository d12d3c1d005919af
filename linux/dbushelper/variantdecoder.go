//go:build linux

package dbushelper

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/ugorji/go/codec"

	"github.com/darkhz/blueapplet/api/bluetooth"
	sstore "github.com/darkhz/blueapplet/api/helpers/sessionstore"
)

// variantExt represents a go-codec extension to parse DBus variant values.
type variantExt struct{}

// resolver holds an encoder and decoder.
type resolver struct {
	check bool

	encoder *codec.Encoder
	decoder *codec.Decoder
	data    []byte

	sync.Mutex
}

var variantDecoder resolver

// ConvertExt converts a variant struct into an encodable value.
func (v variantExt) ConvertExt(variant any) any {
	switch value := variant.(type) {
	case *dbus.Variant:
		return value.Value()

	case dbus.Variant:
		return value.Value()
	}

	return variant
}

// UpdateExt is a no-op, variants are only ever encoded.
func (v variantExt) UpdateExt(_, _ any) {}

// DecodeVariantMap decodes a map of variants into the provided data.
// The checkProps are properties that, if present, must hold a typed value.
// MacAddress values are decoded through their TextUnmarshaler.
func DecodeVariantMap(
	variants map[string]dbus.Variant, data any,
	checkProps ...string,
) error {
	variantDecoder.Lock()
	defer variantDecoder.Unlock()

	if !variantDecoder.check {
		handle := codec.JsonHandle{}
		handle.TypeInfos = codec.NewTypeInfos([]string{"codec"})
		handle.SetInterfaceExt(reflect.TypeOf(dbus.Variant{}), 1, variantExt{})
		handle.SetInterfaceExt(reflect.TypeOf((*dbus.Variant)(nil)), 1, variantExt{})

		variantDecoder.encoder = codec.NewEncoderBytes(&variantDecoder.data, &handle)
		variantDecoder.decoder = codec.NewDecoderBytes(variantDecoder.data, &handle)

		variantDecoder.check = true
	}

	for _, prop := range checkProps {
		value, ok := variants[prop]
		if !ok {
			continue
		}
		if value.Signature().Empty() {
			return fmt.Errorf("no signature found for property '%s'", prop)
		}
	}

	variantDecoder.encoder.ResetBytes(&variantDecoder.data)

	if err := variantDecoder.encoder.Encode(&variants); err != nil {
		return err
	}

	variantDecoder.decoder.ResetBytes(variantDecoder.data)

	return variantDecoder.decoder.Decode(data)
}

// DecodeDeviceFunc returns a function to decode and merge device data.
func DecodeDeviceFunc(variants map[string]dbus.Variant) sstore.MergeDeviceDataFunc {
	return func(device *bluetooth.DeviceData) error {
		return DecodeVariantMap(variants, device)
	}
}
