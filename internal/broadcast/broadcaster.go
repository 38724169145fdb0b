package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/adapter/metrics"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/platform/correlation"
)

const (
	lookupTimeout  = 2 * time.Second
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
	commandBuffer  = 256
)

// ErrTooManyChannels is returned by Register when the user already holds the
// maximum number of live channels.
var ErrTooManyChannels = errors.New("too many open channels for user")

// ErrStopped is returned by Register after Stop.
var ErrStopped = errors.New("broadcaster stopped")

type vdiSource interface {
	ListVDIs() []domain.VDI
	GetVDI(vdiID string) (domain.VDI, error)
}

type userLookup interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type registerCmd struct {
	baseBroadcasterCmd
	userID       int64
	channel      Channel
	errorChannel chan error
}

type unregisterCmd struct {
	baseBroadcasterCmd
	userID  int64
	channel Channel
}

type broadcastSnapshotCmd struct {
	baseBroadcasterCmd
	correlationID string
}

type notifyHolderCmd struct {
	baseBroadcasterCmd
	request       domain.VDIRequest
	correlationID string
}

type statsCmd struct {
	baseBroadcasterCmd
	replyChannel chan Stats
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Stats is a point-in-time view of the subscriber registry.
type Stats struct {
	Users    int `json:"users"`
	Channels int `json:"channels"`
}

// Broadcaster keeps the set of live channels per user and pushes pool
// snapshots to everyone and request alerts to the current holder.
// All state is owned by the run goroutine.
type Broadcaster struct {
	cmdCh              chan broadcasterCmd
	done               chan struct{}
	clock              clockwork.Clock
	vdis               vdiSource
	users              userLookup
	metrics            *metrics.FanoutMetrics
	subscribers        map[int64]map[Channel]struct{}
	usernames          map[int64]string
	maxChannelsPerUser int
	stopTimeout        time.Duration
}

func NewBroadcaster(vdis vdiSource, users userLookup, m *metrics.FanoutMetrics, clock clockwork.Clock, maxChannelsPerUser int) *Broadcaster {
	b := &Broadcaster{
		cmdCh:              make(chan broadcasterCmd, commandBuffer),
		done:               make(chan struct{}),
		clock:              clock,
		vdis:               vdis,
		users:              users,
		metrics:            m,
		subscribers:        make(map[int64]map[Channel]struct{}),
		usernames:          make(map[int64]string),
		maxChannelsPerUser: maxChannelsPerUser,
		stopTimeout:        stopTimeout,
	}
	go b.run()
	return b
}

// send enqueues cmd unless the actor has already exited.
func (b *Broadcaster) send(cmd broadcasterCmd) bool {
	select {
	case <-b.done:
		return false
	default:
	}

	select {
	case b.cmdCh <- cmd:
		return true
	case <-b.done:
		return false
	}
}

// Register adds ch to userID's channels and sends it the current snapshot.
// It fails with ErrTooManyChannels when the per-user limit is reached; the
// caller keeps ownership of ch in that case.
func (b *Broadcaster) Register(userID int64, ch Channel) error {
	errCh := make(chan error, 1)
	if !b.send(registerCmd{userID: userID, channel: ch, errorChannel: errCh}) {
		return ErrStopped
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-b.done:
		return ErrStopped
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister drops ch. Unknown channels are ignored.
func (b *Broadcaster) Unregister(userID int64, ch Channel) {
	b.send(unregisterCmd{userID: userID, channel: ch})
}

// BroadcastSnapshot queues a full pool snapshot for every registered channel.
// The snapshot is read when the command is processed, so a burst of calls
// always ends with the latest state.
func (b *Broadcaster) BroadcastSnapshot(ctx context.Context) {
	id, _ := correlation.ID(ctx)
	b.send(broadcastSnapshotCmd{correlationID: id})
}

// NotifyHolder queues an alert about req for the current holder of its VDI.
// The alert carries req's own ID. Nothing is sent when the VDI is free.
func (b *Broadcaster) NotifyHolder(ctx context.Context, req domain.VDIRequest) {
	id, _ := correlation.ID(ctx)
	b.send(notifyHolderCmd{request: req, correlationID: id})
}

// Stats returns the registry size, or the zero value if the actor is gone.
func (b *Broadcaster) Stats() Stats {
	replyCh := make(chan Stats, 1)
	if !b.send(statsCmd{replyChannel: replyCh}) {
		return Stats{}
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case s := <-replyCh:
		return s
	case <-b.done:
		return Stats{}
	case <-timer.Chan():
		slog.Warn("Stats timed out", "timeout", commandTimeout)
		return Stats{}
	}
}

// Stop closes every channel and waits for the actor to exit.
func (b *Broadcaster) Stop() {
	if !b.send(stopCmd{}) {
		return
	}

	timeout := b.clock.NewTimer(b.stopTimeout)
	defer timeout.Stop()

	select {
	case <-b.done:
		slog.Info("Broadcaster stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Broadcaster stop timeout exceeded", "timeout", b.stopTimeout)
	}
}

func (b *Broadcaster) run() {
	defer close(b.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r)
			b.closeAll(websocket.CloseInternalServerErr, "broadcaster failure")
		}
	}()

	for cmd := range b.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			b.handleRegister(c)
		case unregisterCmd:
			b.handleUnregister(c)
		case broadcastSnapshotCmd:
			b.handleBroadcastSnapshot(c)
		case notifyHolderCmd:
			b.handleNotifyHolder(c)
		case statsCmd:
			c.replyChannel <- b.stats()
		case stopCmd:
			b.closeAll(websocket.CloseNormalClosure, "server shutting down")
			return
		default:
			slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	channels, exists := b.subscribers[c.userID]
	if exists && len(channels) >= b.maxChannelsPerUser {
		slog.Warn("Rejecting channel: per-user limit reached", "user_id", c.userID, "max_channels", b.maxChannelsPerUser)
		b.metrics.DeliveryFailures.WithLabelValues(metrics.FailureLimit).Inc()
		c.errorChannel <- ErrTooManyChannels
		return
	}
	if !exists {
		channels = make(map[Channel]struct{})
		b.subscribers[c.userID] = channels
	}
	channels[c.channel] = struct{}{}
	b.updateGauges()

	slog.Debug("Channel registered", "user_id", c.userID, "user_channels", len(channels))
	c.errorChannel <- nil

	msg, err := b.snapshot("")
	if err != nil {
		slog.Error("Failed to build initial snapshot", "user_id", c.userID, "error", err)
		return
	}
	b.deliver(c.userID, c.channel, msg)
}

func (b *Broadcaster) handleUnregister(c unregisterCmd) {
	if b.remove(c.userID, c.channel) {
		slog.Debug("Channel unregistered", "user_id", c.userID)
	}
}

func (b *Broadcaster) handleBroadcastSnapshot(c broadcastSnapshotCmd) {
	if len(b.subscribers) == 0 {
		return
	}

	msg, err := b.snapshot(c.correlationID)
	if err != nil {
		slog.Error("Failed to build snapshot", "correlation_id", c.correlationID, "error", err)
		return
	}

	for userID, channels := range b.subscribers {
		for ch := range channels {
			b.deliver(userID, ch, msg)
		}
	}
}

func (b *Broadcaster) handleNotifyHolder(c notifyHolderCmd) {
	req := c.request
	vdi, err := b.vdis.GetVDI(req.VDIID)
	if err != nil {
		slog.Warn("Request alert for unknown VDI", "vdi_id", req.VDIID, "correlation_id", c.correlationID)
		return
	}
	if vdi.AssignedUserID == nil {
		return
	}
	holderID := *vdi.AssignedUserID

	channels := b.subscribers[holderID]
	if len(channels) == 0 {
		slog.Debug("Holder has no live channels", "vdi_id", req.VDIID, "holder_id", holderID)
		return
	}

	username, ok := b.username(req.RequestedByUserID)
	if !ok {
		return
	}
	alert := domain.VDIRequestAlert{
		RequestingUser: domain.UserRef{ID: req.RequestedByUserID, Username: username},
		VDIID:          req.VDIID,
		RequestID:      req.ID,
	}

	data, err := Encode(alert)
	if err != nil {
		b.metrics.DeliveryFailures.WithLabelValues(metrics.FailureEncode).Inc()
		slog.Error("Failed to encode request alert", "vdi_id", req.VDIID, "request_id", req.ID, "error", err)
		return
	}

	msg := encoded{kind: alert.Type(), data: data}
	for ch := range channels {
		b.deliver(holderID, ch, msg)
	}
}

type encoded struct {
	kind domain.MessageType
	data []byte
}

// snapshot reads the pool and joins holder usernames.
func (b *Broadcaster) snapshot(correlationID string) (encoded, error) {
	vdis := b.vdis.ListVDIs()
	usernames := make(map[int64]string)
	for _, id := range domain.HolderIDs(vdis) {
		if name, ok := b.username(id); ok {
			usernames[id] = name
		}
	}

	update := domain.VDIUpdate{VDIs: domain.ViewsOf(vdis, usernames)}
	data, err := Encode(update)
	if err != nil {
		b.metrics.DeliveryFailures.WithLabelValues(metrics.FailureEncode).Inc()
		return encoded{}, err
	}
	return encoded{kind: update.Type(), data: data}, nil
}

// username resolves and caches a username. Users never change once created.
func (b *Broadcaster) username(userID int64) (string, bool) {
	if name, ok := b.usernames[userID]; ok {
		return name, true
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	user, err := b.users.GetUser(ctx, userID)
	if err != nil {
		slog.Warn("Username lookup failed", "user_id", userID, "error", err)
		return "", false
	}
	b.usernames[userID] = user.Username
	return user.Username, true
}

func (b *Broadcaster) deliver(userID int64, ch Channel, msg encoded) {
	if !ch.IsOpen() {
		b.metrics.DeliveryFailures.WithLabelValues(metrics.FailureClosed).Inc()
		b.remove(userID, ch)
		return
	}

	if !ch.Send(msg.data) {
		slog.Warn("Disconnecting slow channel", "user_id", userID, "message_type", msg.kind)
		b.metrics.DeliveryFailures.WithLabelValues(metrics.FailureBufferFull).Inc()
		b.remove(userID, ch)
		go ch.Close(websocket.CloseTryAgainLater, "send buffer full")
		return
	}

	b.metrics.MessagesDelivered.WithLabelValues(string(msg.kind)).Inc()
}

func (b *Broadcaster) remove(userID int64, ch Channel) bool {
	channels, ok := b.subscribers[userID]
	if !ok {
		return false
	}
	if _, ok := channels[ch]; !ok {
		return false
	}

	delete(channels, ch)
	if len(channels) == 0 {
		delete(b.subscribers, userID)
	}
	b.updateGauges()
	return true
}

func (b *Broadcaster) closeAll(code int, reason string) {
	for userID, channels := range b.subscribers {
		for ch := range channels {
			ch.Close(code, reason)
		}
		delete(b.subscribers, userID)
	}
	b.updateGauges()
}

func (b *Broadcaster) stats() Stats {
	s := Stats{Users: len(b.subscribers)}
	for _, channels := range b.subscribers {
		s.Channels += len(channels)
	}
	return s
}

func (b *Broadcaster) updateGauges() {
	s := b.stats()
	b.metrics.Subscribers.Set(float64(s.Users))
	b.metrics.ConnectedChannels.Set(float64(s.Channels))
}
