package log

import (
	"sync"
	"time"

	"gopkg.in/Sirupsen/logrus.v0"
)

const maxZFields = 16

// EntryZ is the allocation-free counterpart of Entry: typed fields are
// accumulated in a fixed buffer and only converted to strings when the entry
// is actually emitted. A nil *EntryZ is valid and does nothing, which is how
// per-module filtering is implemented.
type EntryZ struct {
	mod   Module
	lvl   Level
	msg   string
	zfbuf [maxZFields]ZField
	zfidx int
}

var zpool = sync.Pool{
	New: func() any { return new(EntryZ) },
}

func NewEntryZ() *EntryZ {
	e := zpool.Get().(*EntryZ)
	e.zfidx = 0
	return e
}

func (e *EntryZ) field(f ZField) *EntryZ {
	if e == nil || e.zfidx == maxZFields {
		return e
	}
	e.zfbuf[e.zfidx] = f
	e.zfidx++
	return e
}

func (e *EntryZ) Bool(key string, val bool) *EntryZ {
	return e.field(ZField{Type: FieldTypeBool, Key: key, Boolean: val})
}

func (e *EntryZ) String(key string, val string) *EntryZ {
	return e.field(ZField{Type: FieldTypeString, Key: key, String: val})
}

func (e *EntryZ) Stringer(key string, val any) *EntryZ {
	return e.field(ZField{Type: FieldTypeStringer, Key: key, Interface: val})
}

func (e *EntryZ) Hex8(key string, val uint8) *EntryZ {
	return e.field(ZField{Type: FieldTypeHex8, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Hex16(key string, val uint16) *EntryZ {
	return e.field(ZField{Type: FieldTypeHex16, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Hex32(key string, val uint32) *EntryZ {
	return e.field(ZField{Type: FieldTypeHex32, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Hex64(key string, val uint64) *EntryZ {
	return e.field(ZField{Type: FieldTypeHex64, Key: key, Integer: val})
}

func (e *EntryZ) Int(key string, val int) *EntryZ {
	return e.field(ZField{Type: FieldTypeInt, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Int64(key string, val int64) *EntryZ {
	return e.field(ZField{Type: FieldTypeInt, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Uint8(key string, val uint8) *EntryZ {
	return e.field(ZField{Type: FieldTypeUint, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Uint16(key string, val uint16) *EntryZ {
	return e.field(ZField{Type: FieldTypeUint, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Uint32(key string, val uint32) *EntryZ {
	return e.field(ZField{Type: FieldTypeUint, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Uint64(key string, val uint64) *EntryZ {
	return e.field(ZField{Type: FieldTypeUint, Key: key, Integer: val})
}

func (e *EntryZ) Error(key string, err error) *EntryZ {
	return e.field(ZField{Type: FieldTypeError, Key: key, Error: err})
}

func (e *EntryZ) Duration(key string, val time.Duration) *EntryZ {
	return e.field(ZField{Type: FieldTypeDuration, Key: key, Duration: val})
}

func (e *EntryZ) Blob(key string, val []byte) *EntryZ {
	return e.field(ZField{Type: FieldTypeBlob, Key: key, Blob: val})
}

// End emits the entry and recycles it. It must be the last call in the chain.
func (e *EntryZ) End() {
	if e == nil {
		return
	}

	fields := make(logrus.Fields, e.zfidx+1)
	fields["_mod"] = modNames[e.mod]
	for i := range e.zfbuf[:e.zfidx] {
		fields[e.zfbuf[i].Key] = e.zfbuf[i].Value()
	}

	entry := logrus.StandardLogger().WithFields(fields)
	switch e.lvl {
	case PanicLevel:
		entry.Panic(e.msg)
	case FatalLevel:
		entry.Fatal(e.msg)
	case ErrorLevel:
		entry.Error(e.msg)
	case WarnLevel:
		entry.Warn(e.msg)
	case InfoLevel:
		entry.Info(e.msg)
	default:
		entry.Debug(e.msg)
	}

	zpool.Put(e)
}
