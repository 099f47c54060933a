// Package main provides a CLI that follows a mediation session live and
// posts messages to it.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const partyHeader = "X-Party-ID"

// PushEvent mirrors the events the server pushes to session subscribers.
type PushEvent struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Ts        int64           `json:"ts"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Client watches one session and talks to the public API.
type Client struct {
	conn      *websocket.Conn
	api       *resty.Client
	sessionID string
	partyID   string
	done      chan struct{}
}

// NewClient connects to the session websocket.
func NewClient(baseURL, sessionID, partyID string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse address: %w", err)
	}
	ws := *u
	switch u.Scheme {
	case "https":
		ws.Scheme = "wss"
	default:
		ws.Scheme = "ws"
	}
	ws.Path = strings.TrimRight(u.Path, "/") + "/v1/sessions/" + url.PathEscape(sessionID) + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(ws.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		api: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(15*time.Second).
			SetHeader(partyHeader, partyID),
		sessionID: sessionID,
		partyID:   partyID,
		done:      make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// PostMessage appends a text message as the configured party.
func (c *Client) PostMessage(content string) error {
	resp, err := c.api.R().
		SetBody(map[string]string{"content": content}).
		Post("/v1/sessions/" + url.PathEscape(c.sessionID) + "/messages")
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("post message: %s: %s", resp.Status(), resp.String())
	}
	return nil
}

// Mediator asks the AI mediator for a contribution.
func (c *Client) Mediator(action string) error {
	resp, err := c.api.R().
		SetBody(map[string]string{"action": action}).
		Post("/v1/sessions/" + url.PathEscape(c.sessionID) + "/mediator")
	if err != nil {
		return fmt.Errorf("mediator: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mediator: %s: %s", resp.Status(), resp.String())
	}
	return nil
}

// ReadEvents prints pushed events until the connection closes.
func (c *Client) ReadEvents() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Error().Err(err).Msg("read error")
				}
				return
			}

			var ev PushEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Warn().Err(err).Msg("unmarshal error")
				continue
			}
			printEvent(ev)
		}
	}
}

func printEvent(ev PushEvent) {
	ts := time.UnixMilli(ev.Ts).Format(time.Kitchen)
	switch ev.Type {
	case "message_created":
		var msg struct {
			SenderRole string `json:"sender_role"`
			Content    string `json:"content"`
		}
		if err := json.Unmarshal(ev.Data, &msg); err == nil {
			fmt.Printf("\n[%s] %s: %s\n", ts, msg.SenderRole, msg.Content)
			return
		}
	case "session_updated":
		var sess struct {
			Status      string `json:"status"`
			PartyAEdits int    `json:"party_a_edits"`
			PartyBEdits int    `json:"party_b_edits"`
			Paid        bool   `json:"payment_confirmed"`
		}
		if err := json.Unmarshal(ev.Data, &sess); err == nil {
			fmt.Printf("\n[%s] session %s (edits %d/%d, paid=%t)\n", ts, sess.Status, sess.PartyAEdits, sess.PartyBEdits, sess.Paid)
			return
		}
	}
	fmt.Printf("\n[%s] %s %s\n", ts, ev.Type, string(ev.Data))
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Mediator API address")
	sessionID := flag.String("session", "", "Session ID to watch")
	partyID := flag.String("party", "", "Party ID used when posting messages")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	if *sessionID == "" {
		log.Fatal().Msg("-session is required")
	}

	fmt.Printf("Watching session %s on %s...\n", *sessionID, *addr)

	client, err := NewClient(*addr, *sessionID, *partyID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer client.Close()

	fmt.Println("Type a message and press Enter to send.")
	fmt.Println("Commands: /summary /suggest /progress /quit")

	go client.ReadEvents()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			var err error
			switch input {
			case "/quit":
				fmt.Println("Bye!")
				return
			case "/summary":
				err = client.Mediator("summary")
			case "/suggest":
				err = client.Mediator("settlement_suggestion")
			case "/progress":
				err = client.Mediator("progress_analysis")
			default:
				if *partyID == "" {
					log.Warn().Msg("-party is required to post messages")
					continue
				}
				err = client.PostMessage(input)
			}
			if err != nil {
				log.Error().Err(err).Msg("request failed")
			}
		}
	}
}
