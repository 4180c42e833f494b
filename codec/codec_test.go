package codec

import (
	"errors"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

type report struct {
	Year  int               `json:"year" msgpack:"year" cbor:"year"`
	Title string            `json:"title" msgpack:"title" cbor:"title"`
	Tags  map[string]string `json:"tags,omitempty" msgpack:"tags,omitempty" cbor:"tags,omitempty"`
}

func TestJSONDoesNotEscape(t *testing.T) {
	b, err := JSON[map[string]string]{}.Encode(map[string]string{"path": "/reports/é<b>&"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"path":"/reports/é<b>&"}`
	if string(b) != want {
		t.Fatalf("got %s want %s", b, want)
	}
}

func TestCodecsRoundTrip(t *testing.T) {
	in := report{Year: 2024, Title: "annual", Tags: map[string]string{"k": "v"}}
	cb, err := NewCBOR[report](true)
	if err != nil {
		t.Fatal(err)
	}
	codecs := map[string]Codec[report]{
		"json":    JSON[report]{},
		"msgpack": Msgpack[report]{},
		"cbor":    cb,
	}
	for name, c := range codecs {
		b, err := c.Encode(in)
		if err != nil {
			t.Fatalf("%s encode: %v", name, err)
		}
		out, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if out.Year != in.Year || out.Title != in.Title || out.Tags["k"] != "v" {
			t.Fatalf("%s mismatch: %+v", name, out)
		}
	}
}

func TestCBORDeterministic(t *testing.T) {
	c, err := NewCBOR[map[string]int](true)
	if err != nil {
		t.Fatal(err)
	}
	m := map[string]int{"b": 2, "a": 1, "c": 3, "d": 4}
	first, _ := c.Encode(m)
	for i := 0; i < 10; i++ {
		b, _ := c.Encode(m)
		if string(b) != string(first) {
			t.Fatalf("non-deterministic output")
		}
	}

	tc, _ := NewCBOR[time.Time](false)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	b, _ := tc.Encode(ts)
	got, err := tc.Decode(b)
	if err != nil || !got.Equal(ts) {
		t.Fatalf("time round trip: %v %v", got, err)
	}
}

func TestProtobuf(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	b, err := c.Encode(wrapperspb.String("report:2024"))
	if err != nil {
		t.Fatal(err)
	}
	m, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if m.GetValue() != "report:2024" {
		t.Fatalf("got %q", m.GetValue())
	}

	var empty Protobuf[*wrapperspb.StringValue]
	if _, err := empty.Decode(b); err == nil {
		t.Fatalf("nil constructor should fail")
	}
}

func TestLimit(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxEncode: 4, MaxDecode: 3}
	if _, err := c.Encode("12345"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("encode limit: %v", err)
	}
	if _, err := c.Decode([]byte("1234")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("decode limit: %v", err)
	}
	if v, err := c.Decode([]byte("ok")); err != nil || v != "ok" {
		t.Fatalf("small payload rejected: %q %v", v, err)
	}

	off := Limit[[]byte]{Inner: Bytes{}}
	if _, err := off.Decode(make([]byte, 1<<16)); err != nil {
		t.Fatalf("zero limit should disable: %v", err)
	}
}
