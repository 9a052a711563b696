package lsp

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestJSONRPCFramingMultipleMessages(t *testing.T) {
	var buf bytes.Buffer
	msg1 := []byte(`{"jsonrpc":"2.0","method":"one"}`)
	msg2 := []byte(`{"jsonrpc":"2.0","method":"two"}`)

	if err := writeMessage(&buf, msg1); err != nil {
		t.Fatalf("write message 1: %v", err)
	}
	if err := writeMessage(&buf, msg2); err != nil {
		t.Fatalf("write message 2: %v", err)
	}

	reader := bufio.NewReader(bytes.NewReader(buf.Bytes()))
	got1, err := readMessage(reader)
	if err != nil {
		t.Fatalf("read message 1: %v", err)
	}
	got2, err := readMessage(reader)
	if err != nil {
		t.Fatalf("read message 2: %v", err)
	}

	if string(got1) != string(msg1) {
		t.Fatalf("unexpected message 1: %s", string(got1))
	}
	if string(got2) != string(msg2) {
		t.Fatalf("unexpected message 2: %s", string(got2))
	}
	if _, err := readMessage(reader); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after the last message, got %v", err)
	}
}

func TestJSONRPCHeaders(t *testing.T) {
	in := "content-length: 2\r\nContent-Type: application/vscode-jsonrpc; charset=utf-8\r\n\r\n{}"
	got, err := readMessage(bufio.NewReader(strings.NewReader(in)))
	if err != nil || string(got) != "{}" {
		t.Fatalf("readMessage = %q, %v", got, err)
	}

	bad := map[string]string{
		"missing length": "Content-Type: x\r\n\r\n{}",
		"bad length":     "Content-Length: two\r\n\r\n{}",
		"negative":       "Content-Length: -1\r\n\r\n{}",
		"short body":     "Content-Length: 10\r\n\r\n{}",
		"cut header":     "Content-Length: 2",
	}
	for name, in := range bad {
		if _, err := readMessage(bufio.NewReader(strings.NewReader(in))); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
}
