// SPDX-License-Identifier: MIT
package httpconfig

import (
	"bytes"
	"fmt"
	"strconv"
)

// Method is the recognized request method.
type Method int

const (
	Unsupported Method = iota
	Get
	Put
)

func (m Method) String() string {
	switch m {
	case Get:
		return "GET"
	case Put:
		return "PUT"
	default:
		return "unsupported"
	}
}

// Request is one parsed request. Body holds whatever followed the header
// terminator in the first message, usually nothing. ContentLength is -1 when
// the header is absent or malformed.
type Request struct {
	Method        Method
	Path          string
	Body          []byte
	ContentLength int
}

var headerEnd = []byte("\r\n\r\n")

// ParseRequest extracts the method, target and body from a raw request.
// Content-Length is the only header interpreted.
func ParseRequest(raw []byte) Request {
	req := Request{ContentLength: -1}

	head := raw
	if i := bytes.Index(raw, headerEnd); i >= 0 {
		head = raw[:i]
		req.Body = raw[i+len(headerEnd):]
	}
	line, headers := head, []byte(nil)
	if i := bytes.IndexAny(head, "\r\n"); i >= 0 {
		line, headers = head[:i], head[i:]
	}
	req.ContentLength = contentLength(headers)

	fields := bytes.Fields(line)
	if len(fields) == 0 {
		return req
	}
	switch string(fields[0]) {
	case "GET":
		req.Method = Get
	case "PUT":
		req.Method = Put
	}
	if len(fields) > 1 {
		req.Path = string(fields[1])
	}
	return req
}

var contentLengthHeader = []byte("Content-Length")

func contentLength(headers []byte) int {
	for _, h := range bytes.Split(headers, []byte("\n")) {
		name, value, ok := bytes.Cut(h, []byte(":"))
		if !ok || !bytes.EqualFold(bytes.TrimSpace(name), contentLengthHeader) {
			continue
		}
		n, err := strconv.Atoi(string(bytes.TrimSpace(value)))
		if err != nil || n < 0 {
			return -1
		}
		return n
	}
	return -1
}

// Response statuses and their fixed extra headers and bodies.
const (
	statusOK             = "200 OK"
	statusNotFound       = "404 Not Found"
	statusNotImplemented = "501 Not Implemented"

	headerConnectionClosed = "\r\nConnection: Closed"
	headerHTML             = "\r\nContent-Type: text/html"

	bodyNotFound       = "<h1>404 Not Found</h1>"
	bodyNotImplemented = "<h1>501 Not Implemented</h1>"
)

// responseTemplate is the single header grammar used by every response.
const responseTemplate = "HTTP/1.0 %s\r\nContent-Length: %d%s\r\n\r\n%s"

// FormatResponse renders a response from a status, extra header text (each
// header preceded by CRLF) and a body.
func FormatResponse(status, extraHeaders, body string) []byte {
	return fmt.Appendf(nil, responseTemplate, status, len(body), extraHeaders, body)
}
