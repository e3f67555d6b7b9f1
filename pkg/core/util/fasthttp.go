package util

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
)

type Header struct {
	Key   string
	Value string
}

type Http struct {
	Url      string
	Query    interface{}
	Headers  []Header
	Response *fasthttp.Response
}

func NewHttp(url string, query interface{}, headers ...Header) *Http {
	return &Http{
		Url:     url,
		Query:   query,
		Headers: headers,
	}
}

func (h *Http) buildQuery() error {
	if h.Query == nil {
		return nil
	}

	queryString := ""
	switch q := h.Query.(type) {
	case string:
		queryString = q
	case map[string]string:
		for key, value := range q {
			if queryString != "" {
				queryString += "&"
			}
			queryString += key + "=" + url.QueryEscape(value)
		}
	default:
		// 如果是其他类型，尝试JSON序列化
		jsonBytes, err := json.Marshal(h.Query)
		if err != nil {
			return fmt.Errorf("failed to marshal query: %v", err)
		}
		var queryMap map[string]interface{}
		if err := json.Unmarshal(jsonBytes, &queryMap); err != nil {
			return fmt.Errorf("failed to unmarshal query: %v", err)
		}
		for key, value := range queryMap {
			if queryString != "" {
				queryString += "&"
			}
			queryString += key + "=" + url.QueryEscape(fmt.Sprint(value))
		}
	}

	if queryString != "" {
		if strings.Contains(h.Url, "?") {
			h.Url += "&" + queryString
		} else {
			h.Url += "?" + queryString
		}
	}

	return nil
}

func (h *Http) Get() error {
	request := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(request)
	response := fasthttp.AcquireResponse()

	request.Header.SetMethod("GET")

	if err := h.buildQuery(); err != nil {
		fasthttp.ReleaseResponse(response)
		return err
	}

	request.SetRequestURI(h.Url)

	for _, header := range h.Headers {
		request.Header.Set(header.Key, header.Value)
	}

	if err := fasthttp.Do(request, response); err != nil {
		fasthttp.ReleaseResponse(response)
		return err
	}

	if response.StatusCode() != 200 {
		fasthttp.ReleaseResponse(response)
		return fmt.Errorf("GET request failed, status code: %d", response.StatusCode())
	}

	h.Response = response
	return nil
}

// GetRaw 发起 GET 请求并返回状态码与响应体，非 200 不视为错误
// 供健康检查等需要自行判断状态码的调用方使用
func (h *Http) GetRaw() (int, []byte, error) {
	request := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(request)
	response := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(response)

	request.Header.SetMethod("GET")
	request.SetRequestURI(h.Url)

	for _, header := range h.Headers {
		request.Header.Set(header.Key, header.Value)
	}

	if err := fasthttp.Do(request, response); err != nil {
		return 0, nil, err
	}

	body := make([]byte, len(response.Body()))
	copy(body, response.Body())

	return response.StatusCode(), body, nil
}

func (h *Http) Body() ([]byte, error) {
	body := h.Response.Body()
	if len(body) == 0 {
		h.Close()
		return nil, errors.New("response body is empty")
	}
	result := make([]byte, len(body))
	copy(result, body)
	h.Close()
	return result, nil
}

func (h *Http) Close() {
	fasthttp.ReleaseResponse(h.Response)
}

// HttpGetBytes 下载原始内容（如脚手架工程压缩包）
func HttpGetBytes(uri string, headers ...Header) ([]byte, error) {
	h := NewHttp(uri, nil, headers...)
	err := h.Get()
	if err != nil {
		return nil, err
	}
	return h.Body()
}
