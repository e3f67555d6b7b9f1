package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Write([]byte(`{"status":"UP"}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("down"))
	}))
	defer srv.Close()

	status, body, err := NewHttp(srv.URL+"/health", nil).GetRaw()
	if err != nil {
		t.Fatalf("GetRaw 失败: %v", err)
	}
	if status != 200 || string(body) != `{"status":"UP"}` {
		t.Errorf("响应错误: %d %s", status, body)
	}

	// 非 200 不视为错误，由调用方判断状态码
	status, body, err = NewHttp(srv.URL+"/other", nil).GetRaw()
	if err != nil {
		t.Fatalf("GetRaw 失败: %v", err)
	}
	if status != 503 || string(body) != "down" {
		t.Errorf("响应错误: %d %s", status, body)
	}
}

func TestHttpGetBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("zip-bytes"))
	}))
	defer srv.Close()

	data, err := HttpGetBytes(srv.URL)
	if err != nil {
		t.Fatalf("HttpGetBytes 失败: %v", err)
	}
	if string(data) != "zip-bytes" {
		t.Errorf("内容错误: %s", data)
	}

	srv.Close()
	if _, err := HttpGetBytes(srv.URL); err == nil {
		t.Error("连接失败应返回错误")
	}
}
