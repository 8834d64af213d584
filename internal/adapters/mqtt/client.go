// Package mqtt is the lu CLI's connection to the player nodes: it sends
// commands and reads their retained presence and state.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/mikey-austin/loop_utopia/internal/adapters/tlsconfig"
	"github.com/mikey-austin/loop_utopia/pkg/lu"
)

// presenceSettle is how long ListPresence collects retained presence.
const presenceSettle = 250 * time.Millisecond

// ErrNoState reports a player whose retained state is missing or cleared.
var ErrNoState = errors.New("player has no retained state")

// Options configures the MQTT client.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	TLS       tlsconfig.Files
	TopicBase string
	Timeout   time.Duration
}

// Client implements the core Broker port over paho.
type Client struct {
	conn       paho.Client
	topicBase  string
	replyTopic string
	timeout    time.Duration
	replies    *pending
}

// NewClient connects and subscribes to the client's reply topic.
func NewClient(opts Options) (*Client, error) {
	if opts.TopicBase == "" {
		opts.TopicBase = lu.BaseTopic
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	tlsConfig, err := tlsconfig.Client(opts.TLS)
	if err != nil {
		return nil, err
	}

	c := &Client{
		topicBase:  opts.TopicBase,
		replyTopic: lu.TopicReply(opts.TopicBase, opts.ClientID),
		timeout:    opts.Timeout,
		replies:    newPending(),
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetConnectTimeout(opts.Timeout).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(conn paho.Client) {
			// resubscribe after a reconnect; the first connect is checked below
			conn.Subscribe(c.replyTopic, 1, c.onReply)
		})
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username).SetPassword(opts.Password)
	}
	if tlsConfig != nil {
		clientOpts.SetTLSConfig(tlsConfig)
	}

	c.conn = paho.NewClient(clientOpts)
	if err := wait(c.conn.Connect()); err != nil {
		return nil, fmt.Errorf("connect %s: %w", opts.BrokerURL, err)
	}
	if err := wait(c.conn.Subscribe(c.replyTopic, 1, c.onReply)); err != nil {
		c.conn.Disconnect(0)
		return nil, fmt.Errorf("subscribe replies: %w", err)
	}
	return c, nil
}

func wait(token paho.Token) error {
	token.Wait()
	return token.Error()
}

// ReplyTopic is the topic nodes answer this client on.
func (c *Client) ReplyTopic() string {
	return c.replyTopic
}

// Close disconnects from the broker.
func (c *Client) Close() {
	c.conn.Disconnect(100)
}

// PublishCommand sends cmd to a player and waits for the reply with the same
// id. Without a reply within the client timeout the error wraps
// context.DeadlineExceeded.
func (c *Client) PublishCommand(ctx context.Context, nodeID string, cmd lu.CommandEnvelope) (lu.ReplyEnvelope, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return lu.ReplyEnvelope{}, fmt.Errorf("marshal command: %w", err)
	}
	replyCh, done := c.replies.add(cmd.ID)
	defer done()

	if err := wait(c.conn.Publish(lu.TopicCommands(c.topicBase, nodeID), 1, false, payload)); err != nil {
		return lu.ReplyEnvelope{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return lu.ReplyEnvelope{}, fmt.Errorf("%s %s: %w", nodeID, cmd.Type, ctx.Err())
	}
}

func (c *Client) onReply(_ paho.Client, msg paho.Message) {
	c.replies.resolve(msg.Payload())
}

// ListPresence collects the retained presence of every node, sorted by id.
// Nodes whose presence was cleared by their last will are left out.
func (c *Client) ListPresence(ctx context.Context) ([]lu.Presence, error) {
	set := newPresenceSet()
	topic := lu.TopicPresence(c.topicBase, "+")
	handler := func(_ paho.Client, msg paho.Message) {
		set.observe(msg.Topic(), msg.Payload())
	}
	if err := wait(c.conn.Subscribe(topic, 1, handler)); err != nil {
		return nil, err
	}
	defer c.conn.Unsubscribe(topic)

	timer := time.NewTimer(presenceSettle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return set.list(), nil
}

// GetPlayerState reads the retained state of one player.
func (c *Client) GetPlayerState(ctx context.Context, nodeID string) (lu.PlayerState, error) {
	found := make(chan lu.PlayerState, 1)
	cleared := make(chan struct{}, 1)
	topic := lu.TopicState(c.topicBase, nodeID)
	handler := func(_ paho.Client, msg paho.Message) {
		if len(msg.Payload()) == 0 {
			signal(cleared)
			return
		}
		var state lu.PlayerState
		if err := json.Unmarshal(msg.Payload(), &state); err != nil {
			signal(cleared)
			return
		}
		offerLatest(found, state)
	}
	if err := wait(c.conn.Subscribe(topic, 1, handler)); err != nil {
		return lu.PlayerState{}, err
	}
	defer c.conn.Unsubscribe(topic)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	select {
	case state := <-found:
		return state, nil
	case <-cleared:
		return lu.PlayerState{}, ErrNoState
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return lu.PlayerState{}, ErrNoState
		}
		return lu.PlayerState{}, ctx.Err()
	}
}

// WatchPlayer follows a player's state and events until ctx is done. State
// is coalesced so a slow reader always sees the newest state; events are
// dropped when the reader falls behind.
func (c *Client) WatchPlayer(ctx context.Context, nodeID string) (<-chan lu.PlayerState, <-chan lu.Event, <-chan error) {
	states := make(chan lu.PlayerState, 1)
	events := make(chan lu.Event, 16)
	errs := make(chan error, 1)

	stateTopic := lu.TopicState(c.topicBase, nodeID)
	eventTopic := lu.TopicEvents(c.topicBase, nodeID)
	filters := map[string]byte{stateTopic: 1, eventTopic: 1}
	handler := func(_ paho.Client, msg paho.Message) {
		switch msg.Topic() {
		case stateTopic:
			var state lu.PlayerState
			if json.Unmarshal(msg.Payload(), &state) == nil {
				offerLatest(states, state)
			}
		case eventTopic:
			var evt lu.Event
			if json.Unmarshal(msg.Payload(), &evt) == nil {
				select {
				case events <- evt:
				default:
				}
			}
		}
	}

	closeAll := func() {
		close(states)
		close(events)
		close(errs)
	}
	if err := wait(c.conn.SubscribeMultiple(filters, handler)); err != nil {
		errs <- err
		closeAll()
		return states, events, errs
	}
	go func() {
		<-ctx.Done()
		wait(c.conn.Unsubscribe(stateTopic, eventTopic))
		closeAll()
	}()
	return states, events, errs
}

// offerLatest delivers v without blocking, replacing a value nobody has
// read yet.
func offerLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// pending correlates replies with the commands waiting for them.
type pending struct {
	mu      sync.Mutex
	waiters map[string]chan lu.ReplyEnvelope
}

func newPending() *pending {
	return &pending{waiters: map[string]chan lu.ReplyEnvelope{}}
}

func (p *pending) add(id string) (<-chan lu.ReplyEnvelope, func()) {
	ch := make(chan lu.ReplyEnvelope, 1)
	p.mu.Lock()
	p.waiters[id] = ch
	p.mu.Unlock()
	return ch, func() {
		p.mu.Lock()
		delete(p.waiters, id)
		p.mu.Unlock()
	}
}

// resolve hands a reply payload to its waiter. It reports false for
// undecodable payloads and replies nobody is waiting for.
func (p *pending) resolve(payload []byte) bool {
	var reply lu.ReplyEnvelope
	if err := json.Unmarshal(payload, &reply); err != nil || reply.ID == "" {
		return false
	}
	p.mu.Lock()
	ch, ok := p.waiters[reply.ID]
	delete(p.waiters, reply.ID)
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- reply
	return true
}

// presenceSet tracks retained presence by node id. An empty payload is a
// cleared retained message and removes the node.
type presenceSet struct {
	mu    sync.Mutex
	nodes map[string]lu.Presence
}

func newPresenceSet() *presenceSet {
	return &presenceSet{nodes: map[string]lu.Presence{}}
}

func (s *presenceSet) observe(topic string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(payload) == 0 {
		if id := presenceNode(topic); id != "" {
			delete(s.nodes, id)
		}
		return
	}
	var presence lu.Presence
	if err := json.Unmarshal(payload, &presence); err != nil || presence.NodeID == "" {
		return
	}
	s.nodes[presence.NodeID] = presence
}

func (s *presenceSet) list() []lu.Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]lu.Presence, 0, len(s.nodes))
	for _, p := range s.nodes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// presenceNode extracts the node id from <base>/node/<id>/presence.
func presenceNode(topic string) string {
	rest, ok := strings.CutSuffix(topic, "/presence")
	if !ok {
		return ""
	}
	i := strings.LastIndex(rest, "/node/")
	if i < 0 {
		return ""
	}
	return rest[i+len("/node/"):]
}
