package platform

import (
	"fmt"
	"log"
)

/* BinaryMessenger is the transport the UI engine embedding provides.
 * Send with a nil reply callback is fire-and-forget. */
type BinaryMessenger interface {
	Send(channel string, message []byte, reply func([]byte))
	SetMessageHandler(channel string, handler func(message []byte, reply func([]byte)))
}

type MethodCall struct {
	Method    string
	Arguments any
}

/* Argument accessors for the map-shaped payloads used on the wire.
 * Missing or mistyped fields read as zero values; the RPC layer
 * validates ids before use. */

func (c MethodCall) argMap() map[string]any {
	m, _ := c.Arguments.(map[string]any)
	return m
}

func (c MethodCall) Int64(key string) int64 {
	switch v := c.argMap()[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	}
	return 0
}

func (c MethodCall) Float64(key string) float64 {
	switch v := c.argMap()[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	}
	return 0
}

func (c MethodCall) Bool(key string) bool {
	v, _ := c.argMap()[key].(bool)
	return v
}

func (c MethodCall) String(key string) string {
	v, _ := c.argMap()[key].(string)
	return v
}

// MethodResult receives the outcome of one inbound method call.
type MethodResult interface {
	Success(result any)
	Error(code, message string, details any)
	NotImplemented()
}

// Error is a structured failure crossing the channel.
type Error struct {
	Code    string
	Message string
	Details any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

/* MethodChannel is a named bidirectional method pipe over a
 * BinaryMessenger using the standard method codec. */
type MethodChannel struct {
	messenger BinaryMessenger
	name      string
}

func NewMethodChannel(m BinaryMessenger, name string) *MethodChannel {
	return &MethodChannel{messenger: m, name: name}
}

/* InvokeMethod fires a notification at the UI engine. Encoding errors
 * indicate a programming error in the payload and are logged, not
 * returned: callers treat the channel as fire-and-forget. */
func (ch *MethodChannel) InvokeMethod(method string, arguments any) {
	msg, err := EncodeMethodCall(MethodCall{Method: method, Arguments: arguments})
	if err != nil {
		log.Printf("channel %s: encode %s: %v", ch.name, method, err)
		return
	}
	ch.messenger.Send(ch.name, msg, nil)
}

/* SetMethodCallHandler decodes inbound calls and routes replies back
 * through the messenger. */
func (ch *MethodChannel) SetMethodCallHandler(handler func(call MethodCall, result MethodResult)) {
	if handler == nil {
		ch.messenger.SetMessageHandler(ch.name, nil)
		return
	}
	ch.messenger.SetMessageHandler(ch.name, func(message []byte, reply func([]byte)) {
		call, err := DecodeMethodCall(message)
		if err != nil {
			log.Printf("channel %s: decode: %v", ch.name, err)
			if reply != nil {
				reply(nil)
			}
			return
		}
		handler(call, &replyResult{reply: reply})
	})
}

type replyResult struct {
	reply func([]byte)
	done  bool
}

func (r *replyResult) respond(buf []byte, err error) {
	if r.done {
		panic("method result used twice")
	}
	r.done = true
	if r.reply == nil {
		return
	}
	if err != nil {
		log.Printf("method result encode: %v", err)
		r.reply(nil)
		return
	}
	r.reply(buf)
}

func (r *replyResult) Success(result any) {
	buf, err := EncodeSuccessEnvelope(result)
	r.respond(buf, err)
}

func (r *replyResult) Error(code, message string, details any) {
	buf, err := EncodeErrorEnvelope(code, message, details)
	r.respond(buf, err)
}

func (r *replyResult) NotImplemented() {
	r.respond(nil, nil)
}
