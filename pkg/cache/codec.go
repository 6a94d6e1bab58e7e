package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec сериализует значения для хранения в кэше
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// MsgpackCodec компактный бинарный формат, используется по умолчанию.
// msgpack восстанавливает время в time.Local, поэтому после декодирования
// все time.Time переводятся в UTC: попадание в кэш совпадает с промахом.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return err
	}
	toUTC(reflect.ValueOf(v))
	return nil
}

func (MsgpackCodec) Name() string { return "msgpack" }

// JSONCodec удобен для отладки содержимого redis
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	toUTC(reflect.ValueOf(v))
	return nil
}

func (JSONCodec) Name() string { return "json" }

// CodecByName возвращает codec по имени
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "msgpack":
		return MsgpackCodec{}, nil
	case "json":
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown cache codec %q", name)
	}
}

var timeType = reflect.TypeFor[time.Time]()

// toUTC переводит в UTC все доступные для записи time.Time внутри v
func toUTC(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			toUTC(v.Elem())
		}
	case reflect.Struct:
		if v.Type() == timeType {
			if v.CanSet() {
				v.Set(reflect.ValueOf(v.Interface().(time.Time).UTC()))
			}
			return
		}
		for i := range v.NumField() {
			if f := v.Field(i); f.CanSet() {
				toUTC(f)
			}
		}
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			toUTC(v.Index(i))
		}
	case reflect.Map:
		if v.IsNil() {
			return
		}
		iter := v.MapRange()
		for iter.Next() {
			elem := reflect.New(v.Type().Elem()).Elem()
			elem.Set(iter.Value())
			toUTC(elem)
			v.SetMapIndex(iter.Key(), elem)
		}
	}
}
