package cfgloader

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/code19m/errx"
	"gopkg.in/yaml.v3"
)

func printConfig(config any) {
	out, err := MaskedYAML(config)
	if err != nil {
		slog.Error("[cfgloader]: failed to marshal config", "error", err.Error())
		return
	}
	slog.Info(fmt.Sprintf("[cfgloader]: loaded config:\n%s", out))
}

// MaskedYAML renders config as YAML with every `mask:"true"` field starred out.
func MaskedYAML(config any) (string, error) {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	out, err := yaml.Marshal(maskValue(val).Interface())
	if err != nil {
		return "", errx.Wrap(err)
	}
	return string(out), nil
}

func maskValue(val reflect.Value) reflect.Value {
	if !val.IsValid() {
		return val
	}

	switch val.Kind() { //nolint:exhaustive // only handled kinds relevant to masking
	case reflect.Ptr:
		if val.IsNil() {
			return val
		}
		ptr := reflect.New(val.Elem().Type())
		ptr.Elem().Set(maskValue(val.Elem()))
		return ptr

	case reflect.Struct:
		masked := reflect.New(val.Type()).Elem()
		for i := range val.NumField() {
			field := val.Type().Field(i)
			origVal := val.Field(i)

			if !masked.Field(i).CanSet() || !origVal.CanInterface() {
				continue
			}

			if field.Tag.Get("mask") == "true" {
				masked.Field(i).Set(maskAny(origVal))
			} else {
				masked.Field(i).Set(maskValue(origVal))
			}
		}
		return masked

	case reflect.Map:
		if val.IsNil() {
			return val
		}
		masked := reflect.MakeMapWithSize(val.Type(), val.Len())
		iter := val.MapRange()
		for iter.Next() {
			masked.SetMapIndex(iter.Key(), maskValue(iter.Value()))
		}
		return masked

	default:
		return val
	}
}

func maskAny(val reflect.Value) reflect.Value {
	switch val.Kind() { //nolint:exhaustive // only handled kinds relevant to masking
	case reflect.String:
		return reflect.ValueOf(strings.Repeat("*", len(val.String()))).Convert(val.Type())
	case reflect.Struct, reflect.Map, reflect.Ptr:
		return maskValue(val)
	default:
		return reflect.Zero(val.Type())
	}
}
