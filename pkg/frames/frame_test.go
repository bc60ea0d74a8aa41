package frames

import "testing"

func TestMetaIsCopied(t *testing.T) {
	meta := map[string]string{MetaAuthor: "DataU"}
	f := NewTextFrame("s1", 1, "hi", meta)
	meta[MetaAuthor] = "changed"
	got := f.Meta()
	if got[MetaAuthor] != "DataU" || got[MetaStreamID] != "s1" {
		t.Fatalf("unexpected meta %v", got)
	}
	got[MetaAuthor] = "mutated"
	if f.Meta()[MetaAuthor] != "DataU" {
		t.Fatalf("meta leaked through accessor")
	}
	if StreamID(f) != "s1" {
		t.Fatalf("expected stream id s1")
	}
	if StreamID(nil) != "" {
		t.Fatalf("expected empty stream id for nil")
	}
}

func TestPooledAudioFrameRelease(t *testing.T) {
	f := NewAudioFrameFromPool("s1", 1, []byte("abc"), 44100, 1, nil)
	if string(f.Data()) != "abc" {
		t.Fatalf("unexpected data %q", f.Data())
	}
	if !ReleaseAudioFrame(f) {
		t.Fatalf("expected pooled frame to be released")
	}
	plain := NewAudioFrame("s1", 2, []byte("x"), 44100, 1, nil)
	if ReleaseAudioFrame(plain) {
		t.Fatalf("non-pooled frame must not be released")
	}
}

func TestPTSGenMonotonicPerStream(t *testing.T) {
	g := NewPTSGen()
	a1 := g.Next("a")
	a2 := g.Next("a")
	b1 := g.Next("b")
	if a2 <= a1 {
		t.Fatalf("expected increasing pts, got %d then %d", a1, a2)
	}
	if b1 != a1 {
		t.Fatalf("streams should be independent")
	}
}
