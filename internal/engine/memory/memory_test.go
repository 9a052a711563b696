package memory

import (
	"context"
	"errors"
	"testing"

	"lsbridge/internal/engine"
	"lsbridge/internal/protocol"
)

func rng(sl, sc, el, ec int) *protocol.Range {
	return &protocol.Range{
		Start: protocol.Position{Line: sl, Character: sc},
		End:   protocol.Position{Line: el, Character: ec},
	}
}

func TestApplyChangesIncremental(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		changes []protocol.TextDocumentContentChangeEvent
		want    string
	}{
		{"insert", "let x = 1\n", []protocol.TextDocumentContentChangeEvent{{Range: rng(0, 4, 0, 4), Text: "y"}}, "let yx = 1\n"},
		{"replace across lines", "a\nbb\nccc", []protocol.TextDocumentContentChangeEvent{{Range: rng(0, 1, 2, 1), Text: "-"}}, "a-cc"},
		{"full", "old", []protocol.TextDocumentContentChangeEvent{{Text: "new"}}, "new"},
		{"sequence", "ab", []protocol.TextDocumentContentChangeEvent{{Range: rng(0, 2, 0, 2), Text: "c"}, {Range: rng(0, 0, 0, 1), Text: ""}}, "bc"},
		{"past end clamps", "ab\n", []protocol.TextDocumentContentChangeEvent{{Range: rng(5, 0, 9, 0), Text: "z"}}, "ab\nz"},
		{"reversed range", "abc", []protocol.TextDocumentContentChangeEvent{{Range: rng(0, 2, 0, 1), Text: "X"}}, "abXc"},
	}
	for _, tc := range cases {
		if got := applyChanges(tc.text, tc.changes); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestOffsetForPositionUTF16(t *testing.T) {
	text := "é😀x\nnext"
	cases := []struct {
		pos  protocol.Position
		want int
	}{
		{protocol.Position{Line: 0, Character: 0}, 0},
		{protocol.Position{Line: 0, Character: 1}, 2},
		// the emoji is a surrogate pair; splitting it stops before the rune
		{protocol.Position{Line: 0, Character: 2}, 2},
		{protocol.Position{Line: 0, Character: 3}, 6},
		{protocol.Position{Line: 0, Character: 4}, 7},
		{protocol.Position{Line: 0, Character: 99}, 7},
		{protocol.Position{Line: 1, Character: 2}, 10},
		{protocol.Position{Line: -1, Character: 0}, 0},
	}
	for _, tc := range cases {
		if got := offsetForPosition(text, tc.pos); got != tc.want {
			t.Fatalf("offsetForPosition(%+v) = %d, want %d", tc.pos, got, tc.want)
		}
	}
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	e := New()
	const addr = "file:///w/a.toy"
	if err := e.Open(ctx, addr, "toy", 1, "let x"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := e.Change(ctx, addr, 2, []protocol.TextDocumentContentChangeEvent{{Range: rng(0, 4, 0, 5), Text: "y"}}); err != nil {
		t.Fatalf("Change: %v", err)
	}
	text, version, ok := e.Text(addr)
	if !ok || text != "let y" || version != 2 {
		t.Fatalf("Text = %q, %d, %v", text, version, ok)
	}
	if err := e.Change(ctx, addr, 1, nil); !errors.Is(err, engine.ErrStaleVersion) {
		t.Fatalf("expected ErrStaleVersion, got %v", err)
	}
	if err := e.Save(ctx, addr); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := e.Close(ctx, addr); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, _, ok := e.Text(addr); ok {
		t.Fatal("expected closed document to be gone")
	}
	if err := e.Change(ctx, addr, 3, nil); !errors.Is(err, engine.ErrUnknownDocument) {
		t.Fatalf("expected ErrUnknownDocument, got %v", err)
	}
	if err := e.Save(ctx, addr); !errors.Is(err, engine.ErrUnknownDocument) {
		t.Fatalf("expected ErrUnknownDocument on save, got %v", err)
	}
}

func TestSnapshotIsStable(t *testing.T) {
	ctx := context.Background()
	e := New()
	_ = e.Open(ctx, "file:///b", "toy", 1, "b")
	_ = e.Open(ctx, "file:///a", "toy", 1, "one")
	err := e.WithAnalysis(ctx, func(ctx context.Context, snap engine.Snapshot) error {
		if err := e.Change(ctx, "file:///a", 2, []protocol.TextDocumentContentChangeEvent{{Text: "two"}}); err != nil {
			return err
		}
		if text, _, _ := snap.Text("file:///a"); text != "one" {
			t.Fatalf("snapshot saw a later edit: %q", text)
		}
		docs := snap.Documents()
		if len(docs) != 2 || docs[0] != "file:///a" {
			t.Fatalf("Documents = %v", docs)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithAnalysis: %v", err)
	}
	if text, _, _ := e.Text("file:///a"); text != "two" {
		t.Fatalf("engine text = %q", text)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	called := false
	err = e.WithAnalysis(cancelled, func(context.Context, engine.Snapshot) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected cancelled analysis to be refused, err=%v called=%v", err, called)
	}
}

func TestWorkspaceFolders(t *testing.T) {
	ctx := context.Background()
	e := New()
	a := engine.Folder{Address: "file:///w/a", Name: "a"}
	b := engine.Folder{Address: "file:///w/b", Name: "b"}
	_ = e.AddFolders(ctx, []engine.Folder{a, b, a})
	if got := e.Folders(); len(got) != 2 {
		t.Fatalf("expected 2 folders, got %v", got)
	}
	_ = e.RemoveFolders(ctx, []engine.Folder{a})
	got := e.Folders()
	if len(got) != 1 || got[0] != b {
		t.Fatalf("expected only b, got %v", got)
	}
}
