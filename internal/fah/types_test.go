package fah

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/danmuck/fahctl/internal/protocol/pyon"
	"github.com/danmuck/fahctl/internal/testutil/testlog"
	"pgregory.net/rapid"
)

func TestParseDuration(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		in      string
		want    time.Duration
		known   bool
		wantErr bool
	}{
		{in: "12 secs", want: 12 * time.Second, known: true},
		{in: "0.00 secs", want: 0, known: true},
		{in: "3.50 mins", want: 210 * time.Second, known: true},
		{in: "1 days 02 hours", want: 26 * time.Hour, known: true},
		{in: " 4 hours 01 mins\n", want: 4*time.Hour + time.Minute, known: true},
		{in: "1.5 days", want: 36 * time.Hour, known: true},
		{in: "unknowntime", want: 0, known: false},
		{in: "", wantErr: true},
		{in: "12", wantErr: true},
		{in: "12 fortnights", wantErr: true},
		{in: "x secs", wantErr: true},
		{in: "-1 secs", wantErr: true},
	}

	for i, tt := range tests {
		got, err := ParseDuration(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidDuration) {
				t.Fatalf("case %d: expected ErrInvalidDuration, got %v", i, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("case %d: unexpected error: %v", i, err)
		}
		if got.Duration != tt.want || got.Known != tt.known {
			t.Fatalf("case %d: got=%v/%v want=%v/%v", i, got.Duration, got.Known, tt.want, tt.known)
		}
	}
}

func TestDurationJSON(t *testing.T) {
	testlog.Start(t)
	var v struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
		C Duration `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": "2 mins", "b": 90, "c": "unknowntime"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A.Duration != 2*time.Minute || v.B.Duration != 90*time.Second || v.C.Known {
		t.Fatalf("unexpected durations: %+v", v)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"a":120,"b":90,"c":null}` {
		t.Fatalf("unexpected json: %s", out)
	}
	if v.C.String() != "unknowntime" || v.A.String() != "2m0s" {
		t.Fatalf("unexpected strings: %s %s", v.A, v.C)
	}
	if err := json.Unmarshal([]byte(`{"a": "soon"}`), &v); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestDurationNoneIsUnknown(t *testing.T) {
	testlog.Start(t)
	var units []SlotQueueInfo
	body := []byte("PyON 1 units\n[{\"id\": \"01\", \"eta\": None, \"tpf\": \"2 mins\", \"timeremaining\": None}]\n---")
	if err := pyon.Decode(body, &units); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("unexpected units: %+v", units)
	}
	u := units[0]
	if u.ETA.Known || u.TimeRemaining.Known || u.ETA.Duration != 0 {
		t.Fatalf("None durations should be unknown: %+v", u)
	}
	if !u.TPF.Known || u.TPF.Duration != 2*time.Minute {
		t.Fatalf("unexpected tpf: %+v", u.TPF)
	}
}

func TestDurationWholeUnits(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		days := rapid.IntRange(0, 30).Draw(rt, "days")
		hours := rapid.IntRange(0, 23).Draw(rt, "hours")
		mins := rapid.IntRange(0, 59).Draw(rt, "mins")
		in := ""
		for _, part := range []struct {
			n    int
			unit string
		}{{days, "days"}, {hours, "hours"}, {mins, "mins"}} {
			if in != "" {
				in += " "
			}
			in += fmt.Sprintf("%02d %s", part.n, part.unit)
		}
		got, err := ParseDuration(in)
		if err != nil {
			rt.Fatalf("parse %q: %v", in, err)
		}
		want := time.Duration(days)*24*time.Hour + time.Duration(hours)*time.Hour + time.Duration(mins)*time.Minute
		if got.Duration != want {
			rt.Fatalf("%q: got=%v want=%v", in, got.Duration, want)
		}
	})
}

func TestStringBool(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{in: `"true"`, want: true},
		{in: `"false"`, want: false},
		{in: `true`, want: true},
		{in: `false`, want: false},
		{in: `""`, want: false},
		{in: `null`, want: false},
		{in: `"yes"`, wantErr: true},
		{in: `1`, wantErr: true},
	}
	for i, tt := range tests {
		var b StringBool
		err := json.Unmarshal([]byte(tt.in), &b)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidStringBool) {
				t.Fatalf("case %d: expected ErrInvalidStringBool, got %v", i, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("case %d: unexpected error: %v", i, err)
		}
		if bool(b) != tt.want {
			t.Fatalf("case %d: got=%v want=%v", i, b, tt.want)
		}
	}

	out, err := json.Marshal(StringBool(true))
	if err != nil || string(out) != "true" {
		t.Fatalf("marshal: %s %v", out, err)
	}
}
