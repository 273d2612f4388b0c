package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/matheus3301/wgram/internal/api"
	"github.com/matheus3301/wgram/internal/auth"
	"github.com/matheus3301/wgram/internal/feed"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestEmitField(t *testing.T) {
	list := &api.ChatList{Chats: []api.Chat{
		{Chat: feed.Chat{ID: 1, Title: "Ana"}},
		{Chat: feed.Chat{ID: 2, Title: "Bruno"}},
	}}
	tests := []struct {
		field string
		want  string
	}{
		{"chats.#", "2"},
		{"chats.1.title", "Bruno"},
		{"chats.#.id", "[1,2]"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		o := output{field: tt.field, w: &buf}
		if err := o.emit(list, nil); err != nil {
			t.Fatalf("emit(%s): %v", tt.field, err)
		}
		if got := strings.TrimSpace(buf.String()); got != tt.want {
			t.Errorf("field %s = %q, want %q", tt.field, got, tt.want)
		}
	}
}

func TestEmitMissingField(t *testing.T) {
	var buf bytes.Buffer
	o := output{field: "nope", w: &buf}
	err := o.emit(&api.Status{Auth: auth.Snapshot{State: auth.Authorized}}, nil)
	if !errors.Is(err, errNoField) {
		t.Errorf("err = %v, want errNoField", err)
	}
}

func TestEmitModes(t *testing.T) {
	st := &api.Status{Session: "work", Auth: auth.Snapshot{State: auth.Authorized}}

	var buf bytes.Buffer
	o := output{json: true, w: &buf}
	if err := o.emit(st, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"state": "AUTHORIZED"`) {
		t.Errorf("json output = %s", buf.String())
	}

	buf.Reset()
	o = output{w: &buf}
	if err := o.emit(st, func(w io.Writer) { _, _ = io.WriteString(w, "human") }); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "human" {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestDescribe(t *testing.T) {
	if got := describe(status.Error(codes.NotFound, "chat 9 not found")); got != "NotFound: chat 9 not found" {
		t.Errorf("describe() = %q", got)
	}
	if got := describe(errors.New("plain")); got != "plain" {
		t.Errorf("describe() = %q", got)
	}
}
