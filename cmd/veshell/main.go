package main

import (
	"flag"
	"log"

	"github.com/roscale/veshell"
	"github.com/roscale/veshell/platform"
	"github.com/roscale/veshell/render"
)

/* Headless entry point: serves the wayland protocols with the CPU
 * renderer and logs the UI-engine channel traffic instead of driving a
 * real engine. Useful for protocol debugging; the production embedding
 * links the core against the actual engine and GLES importer. */

func main() {
	socket := flag.String("socket", "", "wayland socket name (empty picks wayland-N)")
	flag.Parse()

	loop := veshell.NewLoop()

	cfg := veshell.DefaultConfig()
	cfg.SocketName = *socket

	server, err := veshell.NewServer(loop, &logEngine{}, render.Headless{}, cfg)
	if err != nil {
		log.Fatalln(err)
	}

	server.Serve()
	loop.Run()
}

/* logEngine stands in for the UI engine. Every notification is
 * printed; key events are never consumed, so they forward to clients. */
type logEngine struct {
	handlers map[string]func(message []byte, reply func([]byte))
}

func (e *logEngine) Messenger() platform.BinaryMessenger { return e }

func (e *logEngine) Send(channel string, message []byte, reply func([]byte)) {
	call, err := platform.DecodeMethodCall(message)
	if err != nil {
		log.Printf("[%s] undecodable message: %v", channel, err)
		return
	}
	log.Printf("[%s] %s %v", channel, call.Method, call.Arguments)
}

func (e *logEngine) SetMessageHandler(channel string, handler func(message []byte, reply func([]byte))) {
	if e.handlers == nil {
		e.handlers = make(map[string]func(message []byte, reply func([]byte)))
	}
	e.handlers[channel] = handler
}

func (e *logEngine) RegisterExternalTexture(textureID int64) error {
	log.Printf("register external texture %d", textureID)
	return nil
}

func (e *logEngine) MarkTextureFrameAvailable(textureID int64) error {
	return nil
}

func (e *logEngine) SendKeyEvent(ev veshell.KeyEvent, reply chan<- veshell.HandledKeyEvent) {
	reply <- veshell.HandledKeyEvent{Event: ev, Handled: false}
}

func (e *logEngine) TextInput() veshell.TextInput { return nil }

func (e *logEngine) SetEnvironmentVariable(name string, value *string) {
	if value == nil {
		log.Printf("unset %s", name)
		return
	}
	log.Printf("set %s=%s", name, *value)
}
