package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRun_ListAndCheck(t *testing.T) {
	var gotKey, gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		switch r.Method + " " + r.URL.Path {
		case "GET /api/targets":
			_, _ = w.Write([]byte(`[{"id":1,"name":"A","url":"http://a.example","display":"Online","last_checked":"2024-01-02T03:04:05Z"},{"id":2,"name":"B","url":"http://b.example","display":"Error(503)"}]`))
		case "POST /api/checks":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"check already in progress"}`))
		case "POST /api/targets":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"target":{"id":3,"url":"http://c.example"}}`))
		case "DELETE /api/targets/3":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := &client{base: ts.URL, key: "adm", http: ts.Client()}

	var out bytes.Buffer
	if err := c.run(&out, []string{"list"}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotKey != "adm" {
		t.Fatalf("api key not sent")
	}
	if !strings.Contains(out.String(), "Error(503)") || !strings.Contains(out.String(), "LAST CHECKED") {
		t.Fatalf("unexpected table:\n%s", out.String())
	}

	err := c.run(&out, []string{"check"})
	if err == nil || !strings.Contains(err.Error(), "already in progress") {
		t.Fatalf("want conflict error, got %v", err)
	}

	out.Reset()
	if err := c.run(&out, []string{"add", "C", "c.example"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(gotBody, `"url":"c.example"`) || !strings.Contains(out.String(), "added 3") {
		t.Fatalf("add: body=%s out=%s", gotBody, out.String())
	}

	if err := c.run(&out, []string{"remove", "3"}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := c.run(&out, []string{"remove", "x"}); err == nil {
		t.Fatalf("want error for bad id")
	}
	if err := c.run(&out, []string{"bogus"}); err == nil {
		t.Fatalf("want error for unknown command")
	}
}
