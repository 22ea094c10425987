package playlist

import (
	"errors"
	"testing"
)

func TestParseTxtSeparators(t *testing.T) {
	doc := `
CCTV1,http://a.example/x.m3u8
湖南卫视|rtsp://b.example/hn
Sports;http://c.example/sports.ts
# comment,http://ignored.example/x
no separator line
Bad,not-a-url
,http://missing-name.example/x
`
	recs, err := Parse([]byte(doc), DialectTxt)
	if err != nil {
		t.Fatal(err)
	}
	want := []Record{
		{"CCTV1", "http://a.example/x.m3u8"},
		{"湖南卫视", "rtsp://b.example/hn"},
		{"Sports", "http://c.example/sports.ts"},
	}
	if len(recs) != len(want) {
		t.Fatalf("got %d records, want %d: %+v", len(recs), len(want), recs)
	}
	for i, w := range want {
		if recs[i] != w {
			t.Errorf("record %d = %+v, want %+v", i, recs[i], w)
		}
	}
}

func TestParseTxtCommaBeforePipe(t *testing.T) {
	// Comma strategy is tried first; a line whose comma split fails falls
	// through to the pipe strategy.
	recs, err := Parse([]byte("A,B|http://x.example/s\n"), DialectTxt)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Channel != "A,B" || recs[0].URL != "http://x.example/s" {
		t.Fatalf("got %+v", recs)
	}
}

func TestParseM3U(t *testing.T) {
	doc := `#EXTM3U
#EXTINF:-1 tvg-id="cctv1" tvg-name="CCTV1" group-title="央视",CCTV-1 综合
http://a.example/cctv1.m3u8
#EXTINF:-1,CCTV2
http://b.example/cctv2.m3u8
#EXT-X-SOMETHING
http://orphan.example/no-extinf.m3u8
#EXTINF:-1,NoURLAfter
#EXTINF:-1,湖南卫视
rtmp://c.example/live/hntv
`
	recs, err := Parse([]byte(doc), DialectAuto)
	if err != nil {
		t.Fatal(err)
	}
	want := []Record{
		{"CCTV1", "http://a.example/cctv1.m3u8"},
		{"CCTV2", "http://b.example/cctv2.m3u8"},
		{"湖南卫视", "rtmp://c.example/live/hntv"},
	}
	if len(recs) != len(want) {
		t.Fatalf("got %d records, want %d: %+v", len(recs), len(want), recs)
	}
	for i, w := range want {
		if recs[i] != w {
			t.Errorf("record %d = %+v, want %+v", i, recs[i], w)
		}
	}
}

func TestParseM3UPendingCleared(t *testing.T) {
	// Two URL lines after one #EXTINF: only the first pairs.
	doc := "#EXTM3U\n#EXTINF:-1,CCTV1\nhttp://a.example/1.m3u8\nhttp://a.example/2.m3u8\n"
	recs, err := Parse([]byte(doc), DialectM3U)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1 (metadata line must precede each URL)", len(recs))
	}
}

func TestParseAutoDetect(t *testing.T) {
	m3u := "#EXTM3U\n#EXTINF:-1,A\nhttp://x.example/a\n"
	recs, err := Parse([]byte(m3u), DialectAuto)
	if err != nil || len(recs) != 1 {
		t.Fatalf("m3u auto-detect failed: %v %+v", err, recs)
	}
	txt := "A,http://x.example/a\n"
	recs, err = Parse([]byte(txt), DialectAuto)
	if err != nil || len(recs) != 1 {
		t.Fatalf("txt auto-detect failed: %v %+v", err, recs)
	}
}

func TestParseMalformedLineTolerance(t *testing.T) {
	doc := "CCTV1,http://a.example/x.m3u8\ngarbage line without comma or url\n"
	recs, err := Parse([]byte(doc), DialectAuto)
	if err != nil {
		t.Fatalf("malformed line must not raise: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want exactly 1", len(recs))
	}
}

func TestParseBinaryInput(t *testing.T) {
	_, err := Parse([]byte{0x00, 0x01, 0xff, 0xfe}, DialectAuto)
	if !errors.Is(err, ErrBinaryInput) {
		t.Fatalf("err = %v, want ErrBinaryInput", err)
	}
}
