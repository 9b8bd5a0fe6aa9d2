package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Transport speaks JSON-RPC 2.0 over stdio pipes using the LSP base
// protocol framing (Content-Length headers).
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	log    *zap.Logger

	mu       sync.Mutex
	nextID   atomic.Int64
	pending  map[int64]chan *response
	handlers map[string]NotificationHandler

	closed atomic.Bool
	done   chan struct{}
}

// NotificationHandler receives a server-initiated notification.
type NotificationHandler func(method string, params json.RawMessage)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type incoming struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// NewTransport creates a transport reading from r and writing to w.
func NewTransport(r io.Reader, w io.Writer, log *zap.Logger) *Transport {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{
		reader:   bufio.NewReaderSize(r, 64*1024),
		writer:   w,
		log:      log,
		pending:  make(map[int64]chan *response),
		handlers: make(map[string]NotificationHandler),
		done:     make(chan struct{}),
	}
}

// Start launches the read loop.
func (t *Transport) Start(ctx context.Context) {
	go t.readLoop(ctx)
}

// Close stops the transport. Pending calls fail with ErrShutdown.
func (t *Transport) Close() {
	if t.closed.Swap(true) {
		return
	}
	close(t.done)

	t.mu.Lock()
	t.pending = make(map[int64]chan *response)
	t.mu.Unlock()
}

// IsClosed reports whether Close was called.
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

// Call sends a request and waits for its response, decoding the result
// into result when non-nil.
func (t *Transport) Call(ctx context.Context, method string, params, result any) error {
	if t.closed.Load() {
		return ErrShutdown
	}

	id := t.nextID.Add(1)
	ch := make(chan *response, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if err := t.send(&request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrShutdown
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	}
}

// Notify sends a notification; no response is expected.
func (t *Transport) Notify(method string, params any) error {
	if t.closed.Load() {
		return ErrShutdown
	}
	return t.send(&request{JSONRPC: "2.0", Method: method, Params: params})
}

// OnNotification registers the handler for a notification method.
// Register before Start to avoid missing early notifications.
func (t *Transport) OnNotification(method string, handler NotificationHandler) {
	t.mu.Lock()
	t.handlers[method] = handler
	t.mu.Unlock()
}

func (t *Transport) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintf(t.writer, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

func (t *Transport) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
		}

		msg, err := t.readMessage()
		if err != nil {
			if t.closed.Load() || err == io.EOF || err == io.ErrClosedPipe {
				return
			}
			t.log.Debug("transport read error", zap.Error(err))
			continue
		}
		t.dispatch(msg)
	}
}

func (t *Transport) readMessage() (json.RawMessage, error) {
	contentLength := 0
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(strings.ToLower(line), "content-length:"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("bad Content-Length %q", v)
			}
			contentLength = n
		}
		// Content-Type and other headers are ignored.
	}

	if contentLength <= 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// methodNotFound is the JSON-RPC error code for an unhandled method.
const methodNotFound = -32601

func (t *Transport) dispatch(data json.RawMessage) {
	var msg incoming
	if err := json.Unmarshal(data, &msg); err != nil {
		t.log.Debug("undecodable message from server", zap.Error(err))
		return
	}

	switch {
	case msg.ID != nil && msg.Method != "":
		// A server-initiated request. None are supported; answer it so
		// the server is not left waiting on the id.
		t.rejectRequest(*msg.ID, msg.Method)
	case msg.ID != nil && (msg.Result != nil || msg.Error != nil):
		t.handleResponse(&response{ID: *msg.ID, Result: msg.Result, Error: msg.Error})
	case msg.Method != "":
		t.handleNotification(msg.Method, msg.Params)
	}
}

func (t *Transport) rejectRequest(id int64, method string) {
	if t.closed.Load() {
		return
	}
	t.log.Debug("rejecting unsupported server request", zap.String("method", method))
	err := t.send(&response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: methodNotFound, Message: "method not found: " + method},
	})
	if err != nil {
		t.log.Debug("rejecting server request failed", zap.Error(err))
	}
}

func (t *Transport) handleResponse(resp *response) {
	if t.closed.Load() {
		return
	}

	t.mu.Lock()
	ch, ok := t.pending[resp.ID]
	if ok {
		delete(t.pending, resp.ID)
	}
	t.mu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

func (t *Transport) handleNotification(method string, params json.RawMessage) {
	t.mu.Lock()
	handler, ok := t.handlers[method]
	t.mu.Unlock()

	if ok && handler != nil {
		// Off the read loop so a slow handler cannot stall the wire.
		go handler(method, params)
	}
}
