// Package wire implements Dirmi's invocation codec: encoding and decoding of
// MethodIDs, typed parameters, reply framing, and throwables.
//
// Framing:
//
//	call frame:  MethodID || param0 || ... || paramN-1
//	reply frame: status-tag || [return-value]
//
// where status-tag is one of StatusOK, StatusOKTrue, StatusOKFalse,
// StatusThrowable. A boolean return folds into the tag (no payload byte
// follows); a non-boolean OK is followed by the encoded return value; a
// throwable is followed by an encoded *dirmierr.Remote.
//
// Parameter encodings are dispatched on RemoteParameter.Tag: fixed-width
// primitives via encoding/binary, strings as a length-prefixed UTF-8 blob,
// and TagSerializedObject/throwables as a length-prefixed
// github.com/zeebo/bencode blob, reserved for the one tag that actually
// needs an open-ended encoding.
package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/zeebo/bencode"

	"github.com/bluelightning32/Dirmi/dirmierr"
)

// StatusTag is the first byte of a synchronous reply frame.
type StatusTag uint8

const (
	StatusOK StatusTag = iota
	StatusOKTrue
	StatusOKFalse
	StatusThrowable
)

const maxBlobLen = 64 << 20 // sanity cap; a negative or absurd length is MalformedFrame

// ReadMethodID decodes a MethodID written by WriteMethodID.
func ReadMethodID(r io.Reader) (MethodID, error) {
	var buf [6]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return MethodID{}, err
	}
	hash := binary.BigEndian.Uint32(buf[0:4])
	disambiguator := binary.BigEndian.Uint16(buf[4:6])
	return NewMethodID(hash, disambiguator), nil
}

// WriteMethodID is ReadMethodID's encoder; this is a MethodID's canonical
// wire form, the first field of every call frame.
func WriteMethodID(w io.Writer, id MethodID) error {
	var buf [6]byte
	binary.BigEndian.PutUint32(buf[0:4], id.hash)
	binary.BigEndian.PutUint16(buf[4:6], id.disambiguator)
	_, err := w.Write(buf[:])
	return err
}

// ReadParam decodes one value described by desc.
func ReadParam(r io.Reader, desc RemoteParameter) (interface{}, error) {
	switch desc.Tag {
	case TagBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return b[0] != 0, nil
	case TagByte:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return b[0], nil
	case TagInt16:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return int16(binary.BigEndian.Uint16(b[:])), nil
	case TagUint16:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return binary.BigEndian.Uint16(b[:]), nil
	case TagInt32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return int32(binary.BigEndian.Uint32(b[:])), nil
	case TagInt64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return int64(binary.BigEndian.Uint64(b[:])), nil
	case TagFloat32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return math.Float32frombits(binary.BigEndian.Uint32(b[:])), nil
	case TagFloat64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
	case TagChar:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return rune(binary.BigEndian.Uint32(b[:])), nil
	case TagString:
		blob, err := readBlob(r)
		if err != nil {
			return nil, err
		}
		return string(blob), nil
	case TagSerializedObject:
		blob, err := readBlob(r)
		if err != nil {
			return nil, err
		}
		var v interface{}
		if err := bencode.NewDecoder(bytes.NewReader(blob)).Decode(&v); err != nil {
			return nil, errors.Wrap(dirmierr.ErrMalformedFrame, err.Error())
		}
		return v, nil
	case TagRemoteReference:
		blob, err := readBlob(r)
		if err != nil {
			return nil, err
		}
		return RemoteRef{TypeName: string(blob)}, nil
	default:
		return nil, errors.Wrapf(dirmierr.ErrMalformedFrame, "unknown param tag %d", desc.Tag)
	}
}

// WriteParam encodes v per desc; the counterpart of ReadParam.
func WriteParam(w io.Writer, desc RemoteParameter, v interface{}) error {
	switch desc.Tag {
	case TagBool:
		b := v.(bool)
		var buf [1]byte
		if b {
			buf[0] = 1
		}
		_, err := w.Write(buf[:])
		return err
	case TagByte:
		buf := [1]byte{v.(byte)}
		_, err := w.Write(buf[:])
		return err
	case TagInt16:
		var buf [2]byte
		binary.BigEndian.PutUint16(buf[:], uint16(v.(int16)))
		_, err := w.Write(buf[:])
		return err
	case TagUint16:
		var buf [2]byte
		binary.BigEndian.PutUint16(buf[:], v.(uint16))
		_, err := w.Write(buf[:])
		return err
	case TagInt32:
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(v.(int32)))
		_, err := w.Write(buf[:])
		return err
	case TagInt64:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(v.(int64)))
		_, err := w.Write(buf[:])
		return err
	case TagFloat32:
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], math.Float32bits(v.(float32)))
		_, err := w.Write(buf[:])
		return err
	case TagFloat64:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(v.(float64)))
		_, err := w.Write(buf[:])
		return err
	case TagChar:
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(v.(rune)))
		_, err := w.Write(buf[:])
		return err
	case TagString:
		return writeBlob(w, []byte(v.(string)))
	case TagSerializedObject:
		buf := new(bytes.Buffer)
		if err := bencode.NewEncoder(buf).Encode(v); err != nil {
			return err
		}
		return writeBlob(w, buf.Bytes())
	case TagRemoteReference:
		ref := v.(RemoteRef)
		return writeBlob(w, []byte(ref.TypeName))
	default:
		return errors.Wrapf(dirmierr.ErrMalformedFrame, "unknown param tag %d", desc.Tag)
	}
}

// WriteOk writes the void-return reply tag.
func WriteOk(w io.Writer) error {
	_, err := w.Write([]byte{byte(StatusOK)})
	return err
}

// WriteOkBool writes the tag-folded boolean-return reply: no payload byte
// follows the tag.
func WriteOkBool(w io.Writer, b bool) error {
	tag := StatusOKFalse
	if b {
		tag = StatusOKTrue
	}
	_, err := w.Write([]byte{byte(tag)})
	return err
}

// WriteOkValue writes StatusOK followed by v encoded per desc.
func WriteOkValue(w io.Writer, desc RemoteParameter, v interface{}) error {
	if _, err := w.Write([]byte{byte(StatusOK)}); err != nil {
		return err
	}
	return WriteParam(w, desc, v)
}

// WriteThrowable writes StatusThrowable followed by an encoded throwable.
func WriteThrowable(w io.Writer, cause error) error {
	if _, err := w.Write([]byte{byte(StatusThrowable)}); err != nil {
		return err
	}
	remote := dirmierr.NewRemote(cause)
	buf := new(bytes.Buffer)
	if err := bencode.NewEncoder(buf).Encode(map[string]string{
		"type":    remote.TypeName,
		"message": remote.Message,
	}); err != nil {
		return err
	}
	return writeBlob(w, buf.Bytes())
}

// ReadReply decodes a synchronous reply frame, returning the decoded return
// value (nil for a void return; true or false for a tag-folded boolean
// return) and any decoded remote throwable as err.
func ReadReply(r io.Reader, returnDesc *RemoteParameter) (value interface{}, err error) {
	var tagBuf [1]byte
	if _, err = io.ReadFull(r, tagBuf[:]); err != nil {
		return nil, err
	}
	switch StatusTag(tagBuf[0]) {
	case StatusOK:
		if returnDesc == nil {
			return nil, nil
		}
		return ReadParam(r, *returnDesc)
	case StatusOKTrue:
		return true, nil
	case StatusOKFalse:
		return false, nil
	case StatusThrowable:
		blob, rerr := readBlob(r)
		if rerr != nil {
			return nil, rerr
		}
		var decoded map[string]string
		if derr := bencode.NewDecoder(bytes.NewReader(blob)).Decode(&decoded); derr != nil {
			return nil, errors.Wrap(dirmierr.ErrMalformedFrame, derr.Error())
		}
		return nil, &dirmierr.Remote{TypeName: decoded["type"], Message: decoded["message"]}
	default:
		return nil, errors.Wrapf(dirmierr.ErrMalformedFrame, "unknown status tag %d", tagBuf[0])
	}
}

func readBlob(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := int32(binary.BigEndian.Uint32(lenBuf[:]))
	if n < 0 || n > maxBlobLen {
		return nil, errors.Wrapf(dirmierr.ErrMalformedFrame, "invalid blob length %d", n)
	}
	blob := make([]byte, n)
	if _, err := io.ReadFull(r, blob); err != nil {
		return nil, err
	}
	return blob, nil
}

func writeBlob(w io.Writer, blob []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(blob)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(blob)
	return err
}
