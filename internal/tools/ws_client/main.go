package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

// message mirrors the stream envelope sent by the web server.
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type decodeEvent struct {
	Result struct {
		ID       string `json:"id"`
		Channel  string `json:"channel"`
		Scheme   string `json:"scheme"`
		OK       bool   `json:"ok"`
		Data     string `json:"data"`
		FACCH    bool   `json:"facch"`
		InBandID int    `json:"in_band_id"`
		Stats    struct {
			NErrors    int `json:"n_errors"`
			NBitsTotal int `json:"n_bits_total"`
		} `json:"stats"`
		BER   float64 `json:"ber"`
		Error string  `json:"error"`
	} `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "http service address (host:port)")
	channel := flag.String("channel", "", "only show decodes of this channel")
	failures := flag.Bool("failures", false, "only show failed decodes")
	raw := flag.Bool("raw", false, "print the raw JSON messages")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close() }()

	// Handle interrupt to exit cleanly
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				log.Printf("read error: %v", err)
				return
			}
			if *raw {
				log.Printf("recv: %s", data)
				continue
			}
			if line, ok := format(data, *channel, *failures); ok {
				fmt.Println(line)
			}
		}
	}()

	select {
	case <-sig:
		log.Println("interrupt received, closing websocket")
	case <-done:
		return
	}
	_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	// give the close a moment
	time.Sleep(500 * time.Millisecond)
}

// format renders one stream message, reporting false when it is filtered
// out.
func format(data []byte, channel string, failuresOnly bool) (string, bool) {
	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Sprintf("undecodable message: %s", data), true
	}

	switch m.Type {
	case "stats":
		return fmt.Sprintf("stats %s", m.Data), channel == "" && !failuresOnly
	case "decode":
		var ev decodeEvent
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			return fmt.Sprintf("bad decode event: %v", err), true
		}
		r := ev.Result
		if channel != "" && r.Channel != channel {
			return "", false
		}
		if failuresOnly && r.OK {
			return "", false
		}
		status := "ok"
		if !r.OK {
			status = "FAIL " + r.Error
		}
		extra := ""
		if r.FACCH {
			extra += " facch"
		}
		if r.InBandID >= 0 {
			extra += fmt.Sprintf(" id=%d", r.InBandID)
		}
		return fmt.Sprintf("%s %-6s %-8s ber=%.4f (%d/%d)%s data=%s %s",
			ev.Timestamp.Format("15:04:05.000"), r.Channel, r.Scheme, r.BER,
			r.Stats.NErrors, r.Stats.NBitsTotal, extra, r.Data, status), true
	}
	return fmt.Sprintf("%s %s", m.Type, m.Data), channel == ""
}
