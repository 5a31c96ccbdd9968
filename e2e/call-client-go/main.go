// Command call-client-go drives a scripted two-peer call through a running
// relay: create a room, join it by passkey, negotiate a real WebRTC session
// over the signaling channel, then prove the peers are directly connected by
// echoing a payload across a data channel.
//
// Usage:
//
//	RELAY_WS_URL=ws://127.0.0.1:8080/ws go run ./e2e/call-client-go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

const overallTimeout = 30 * time.Second

type envelope struct {
	Kind     string          `json:"type"`
	RoomName string          `json:"roomName,omitempty"`
	Passkey  string          `json:"passkey,omitempty"`
	RoomID   string          `json:"roomId,omitempty"`
	To       string          `json:"to,omitempty"`
	From     string          `json:"from,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	Room     json.RawMessage `json:"room,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type roomInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Passkey string `json:"passkey"`
}

// peer couples one signaling connection with one PeerConnection.
type peer struct {
	name string
	ws   *websocket.Conn
	pc   *webrtc.PeerConnection
	id   string

	inbox chan envelope

	// Candidates relayed before the remote description is applied.
	pending []webrtc.ICECandidateInit
}

func dialPeer(name, wsURL string) (*peer, error) {
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	p := &peer{name: name, ws: ws, pc: pc, inbox: make(chan envelope, 64)}
	go p.readPump()

	greeting, err := p.await("connection-established")
	if err != nil {
		return nil, err
	}
	p.id = greeting.ClientID
	fmt.Printf("[%s] connected as %s\n", name, p.id)
	return p, nil
}

func (p *peer) readPump() {
	defer close(p.inbox)
	for {
		_, data, err := p.ws.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		p.inbox <- env
	}
}

// await skips pushes until one of the wanted kind arrives. Relayed candidates
// seen along the way are stashed so flushCandidates can apply them once the
// remote description is in place.
func (p *peer) await(kind string) (envelope, error) {
	deadline := time.After(overallTimeout)
	for {
		select {
		case env, ok := <-p.inbox:
			if !ok {
				return envelope{}, fmt.Errorf("[%s] signaling channel closed waiting for %s", p.name, kind)
			}
			if env.Kind == "candidate" && kind != "candidate" {
				var init webrtc.ICECandidateInit
				if err := json.Unmarshal(env.Payload, &init); err == nil {
					p.pending = append(p.pending, init)
				}
				continue
			}
			if env.Kind == kind {
				return env, nil
			}
		case <-deadline:
			return envelope{}, fmt.Errorf("[%s] timed out waiting for %s", p.name, kind)
		}
	}
}

func (p *peer) flushCandidates() {
	for _, init := range p.pending {
		_ = p.pc.AddICECandidate(init)
	}
	p.pending = nil
}

func (p *peer) send(env envelope) error {
	return p.ws.WriteJSON(env)
}

// forwardCandidates relays locally gathered ICE candidates to the remote peer
// through the signaling channel.
func (p *peer) forwardCandidates(to string) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		payload, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		_ = p.send(envelope{Kind: "candidate", To: to, Payload: payload})
	})
}

func (p *peer) applyCandidate(env envelope) {
	if env.Kind != "candidate" {
		return
	}
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(env.Payload, &init); err == nil {
		_ = p.pc.AddICECandidate(init)
	}
}

func (p *peer) close() {
	_ = p.pc.Close()
	_ = p.ws.Close()
}

func main() {
	wsURL := os.Getenv("RELAY_WS_URL")
	if wsURL == "" {
		wsURL = "ws://127.0.0.1:8080/ws"
	}

	if err := run(wsURL); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("PASS")
}

func run(wsURL string) error {
	host, err := dialPeer("host", wsURL)
	if err != nil {
		return err
	}
	defer host.close()
	guest, err := dialPeer("guest", wsURL)
	if err != nil {
		return err
	}
	defer guest.close()

	// Host creates the room; guest joins with the relayed passkey.
	if err := host.send(envelope{Kind: "create-room", RoomName: "e2e-call"}); err != nil {
		return err
	}
	created, err := host.await("room-created")
	if err != nil {
		return err
	}
	var room roomInfo
	if err := json.Unmarshal(created.Room, &room); err != nil {
		return fmt.Errorf("decode room-created: %w", err)
	}
	fmt.Printf("[host] room %q created, passkey %s\n", room.Name, room.Passkey)

	if err := guest.send(envelope{Kind: "join-room", Passkey: room.Passkey}); err != nil {
		return err
	}
	if _, err := guest.await("room-joined"); err != nil {
		return err
	}
	if _, err := host.await("participant-joined"); err != nil {
		return err
	}

	// Negotiate a data channel through the relay.
	echoed := make(chan string, 1)
	dc, err := host.pc.CreateDataChannel("e2e", nil)
	if err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}
	dc.OnOpen(func() {
		_ = dc.SendText("ping over the relay-negotiated channel")
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		echoed <- string(msg.Data)
	})
	guest.pc.OnDataChannel(func(ch *webrtc.DataChannel) {
		ch.OnMessage(func(msg webrtc.DataChannelMessage) {
			_ = ch.SendText(string(msg.Data))
		})
	})

	host.forwardCandidates(guest.id)
	guest.forwardCandidates(host.id)

	offer, err := host.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := host.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local offer: %w", err)
	}
	offerPayload, err := json.Marshal(host.pc.LocalDescription())
	if err != nil {
		return err
	}
	if err := host.send(envelope{Kind: "offer", To: guest.id, Payload: offerPayload}); err != nil {
		return err
	}

	relayedOffer, err := guest.await("offer")
	if err != nil {
		return err
	}
	var remoteOffer webrtc.SessionDescription
	if err := json.Unmarshal(relayedOffer.Payload, &remoteOffer); err != nil {
		return fmt.Errorf("decode relayed offer: %w", err)
	}
	if err := guest.pc.SetRemoteDescription(remoteOffer); err != nil {
		return fmt.Errorf("set remote offer: %w", err)
	}
	guest.flushCandidates()

	answer, err := guest.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := guest.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local answer: %w", err)
	}
	answerPayload, err := json.Marshal(guest.pc.LocalDescription())
	if err != nil {
		return err
	}
	if err := guest.send(envelope{Kind: "answer", To: host.id, Payload: answerPayload}); err != nil {
		return err
	}

	relayedAnswer, err := host.await("answer")
	if err != nil {
		return err
	}
	var remoteAnswer webrtc.SessionDescription
	if err := json.Unmarshal(relayedAnswer.Payload, &remoteAnswer); err != nil {
		return fmt.Errorf("decode relayed answer: %w", err)
	}
	if err := host.pc.SetRemoteDescription(remoteAnswer); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	host.flushCandidates()

	// Keep draining relayed candidates while the data channel comes up.
	deadline := time.After(overallTimeout)
waitEcho:
	for {
		select {
		case msg := <-echoed:
			fmt.Printf("[host] data channel echo: %q\n", msg)
			break waitEcho
		case env, ok := <-host.inbox:
			if !ok {
				return fmt.Errorf("[host] signaling channel closed during negotiation")
			}
			host.applyCandidate(env)
		case env, ok := <-guest.inbox:
			if !ok {
				return fmt.Errorf("[guest] signaling channel closed during negotiation")
			}
			guest.applyCandidate(env)
		case <-deadline:
			return fmt.Errorf("timed out waiting for data channel echo")
		}
	}

	// Tear down politely so the room is destroyed server-side.
	if err := guest.send(envelope{Kind: "leave-room", RoomID: room.ID}); err != nil {
		return err
	}
	if _, err := guest.await("room-left"); err != nil {
		return err
	}
	if _, err := host.await("participant-left"); err != nil {
		return err
	}
	return nil
}
