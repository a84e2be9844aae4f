package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
)

const pageWriteWait = 10 * time.Second

// PageConn is a page's websocket to the host. It registers the page as a tab,
// streams store changes and receives reload requests.
type PageConn struct {
	conn    *websocket.Conn
	tab     domain.Tab
	reloads chan struct{}
	done    chan struct{}

	writeMu sync.Mutex

	mu      sync.Mutex
	subs    map[chan domain.StorageChange]struct{}
	closing bool
	closed  bool
	err     error
}

// OpenPage connects a page for pageURL and waits for the host to assign its tab.
func (c *Client) OpenPage(ctx context.Context, pageURL string) (*PageConn, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws/page?url=" + url.QueryEscape(pageURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrHostNotRunning, err)
	}

	var hello domain.PageMessage
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read page handshake: %w", err)
	}
	if hello.Type != domain.PageMessageHello || hello.Tab == nil {
		conn.Close()
		return nil, fmt.Errorf("unexpected page handshake %q", hello.Type)
	}

	p := &PageConn{
		conn:    conn,
		tab:     *hello.Tab,
		reloads: make(chan struct{}, 1),
		done:    make(chan struct{}),
		subs:    make(map[chan domain.StorageChange]struct{}),
	}
	go p.readLoop()
	return p, nil
}

// Tab returns the tab the host assigned to this page.
func (p *PageConn) Tab() domain.Tab {
	return p.tab
}

// Reloads receives a signal whenever the host asks the page to reload.
// It is closed when the connection ends.
func (p *PageConn) Reloads() <-chan struct{} {
	return p.reloads
}

// Done is closed when the connection ends.
func (p *PageConn) Done() <-chan struct{} {
	return p.done
}

// Err returns why the connection ended, nil while it is open or after Close.
func (p *PageConn) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Subscribe streams store changes until ctx is done or the connection ends.
func (p *PageConn) Subscribe(ctx context.Context) (<-chan domain.StorageChange, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("page connection closed")
	}

	ch := make(chan domain.StorageChange, 64)
	p.subs[ch] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-p.done:
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subs[ch]; ok {
			delete(p.subs, ch)
			close(ch)
		}
	}()
	return ch, nil
}

// Activate makes this page the host's active tab.
func (p *PageConn) Activate() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(pageWriteWait))
	return p.conn.WriteJSON(domain.PageMessage{Type: domain.PageMessageActivate})
}

// Close disconnects the page; the host closes its tab.
func (p *PageConn) Close() error {
	p.mu.Lock()
	p.closing = true
	p.mu.Unlock()

	p.writeMu.Lock()
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(pageWriteWait))
	p.writeMu.Unlock()
	err := p.conn.Close()
	<-p.done
	return err
}

func (p *PageConn) readLoop() {
	var readErr error
	defer func() {
		p.mu.Lock()
		p.closed = true
		if !p.closing && !websocket.IsCloseError(readErr, websocket.CloseNormalClosure) {
			p.err = readErr
		}
		for ch := range p.subs {
			delete(p.subs, ch)
			close(ch)
		}
		p.mu.Unlock()
		close(p.reloads)
		close(p.done)
	}()

	for {
		var msg domain.PageMessage
		if readErr = p.conn.ReadJSON(&msg); readErr != nil {
			return
		}

		switch msg.Type {
		case domain.PageMessageStorageChanged:
			if msg.Change != nil {
				p.broadcast(*msg.Change)
			}
		case domain.PageMessageReload:
			select {
			case p.reloads <- struct{}{}:
			default:
			}
		}
	}
}

// broadcast delivers a change to every subscriber. A subscriber whose buffer
// is full misses the change; observers re-read the store on the next one.
func (p *PageConn) broadcast(change domain.StorageChange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

// Ensure PageConn implements domain.ChangeFeed.
var _ domain.ChangeFeed = (*PageConn)(nil)
