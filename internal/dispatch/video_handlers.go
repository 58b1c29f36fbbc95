package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/parlorhq/parlor/internal/domain"
	"github.com/parlorhq/parlor/internal/metrics"
	"github.com/parlorhq/parlor/internal/room"
	"github.com/parlorhq/parlor/internal/websocket"
)

// endedHold is how long the ended debounce stays claimed. Several clients
// fire "ended" within a few hundred milliseconds of each other; one queue
// advancement per completion is the contract.
const endedHold = 2000 * time.Millisecond

func (d *Dispatcher) handleVideoLoad(c *websocket.Client, r *room.Room, msg *websocket.Message) {
	var req videoLoadRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.SendError("invalid payload")
		return
	}

	videoID, videoType, err := domain.ClassifyVideoURL(req.URL)
	if err != nil {
		c.SendError(err.Error())
		return
	}

	now := d.clock.Now()
	r.Video.Load(videoID, req.URL, videoType, now)
	r.VideoTitle = placeholderTitle(videoID, req.URL)

	p, _ := r.Participant(c.ID())
	name := "someone"
	if p != nil {
		name = p.Name
	}
	system := domain.NewSystemMessage(name+" loaded "+r.VideoTitle, now)
	r.AppendChat(system)

	d.hub.BroadcastToRoom(r.Code, websocket.EventVideoLoad, r.Video.Snapshot(now))
	d.hub.BroadcastToRoom(r.Code, websocket.EventChatMessage, system)

	if videoType == domain.VideoTypeYouTube {
		go d.resolveVideoTitle(r, videoID)
	}
}

func (d *Dispatcher) handleVideoPlay(r *room.Room) {
	now := d.clock.Now()
	if !r.Video.Play(now) {
		// Echo from a client mirroring the shared state; applying it would
		// re-anchor and roll everyone back.
		return
	}
	d.hub.BroadcastToRoom(r.Code, websocket.EventVideoStateUpdate, r.Video.Snapshot(now))
}

func (d *Dispatcher) handleVideoPause(r *room.Room, msg *websocket.Message) {
	var req positionRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return
	}
	now := d.clock.Now()
	if !r.Video.Pause(req.CurrentTime, now) {
		return
	}
	d.hub.BroadcastToRoom(r.Code, websocket.EventVideoStateUpdate, r.Video.Snapshot(now))
}

func (d *Dispatcher) handleVideoSeek(r *room.Room, msg *websocket.Message) {
	var req positionRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return
	}
	now := d.clock.Now()
	r.Video.Seek(req.CurrentTime, now)
	d.hub.BroadcastToRoom(r.Code, websocket.EventVideoStateUpdate, r.Video.Snapshot(now))
}

func (d *Dispatcher) handleVideoRate(c *websocket.Client, r *room.Room, msg *websocket.Message) {
	var req rateRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.SendError("invalid payload")
		return
	}
	now := d.clock.Now()
	if err := r.Video.SetRate(req.Rate, now); err != nil {
		c.SendError(err.Error())
		return
	}
	d.hub.BroadcastToRoom(r.Code, websocket.EventVideoStateUpdate, r.Video.Snapshot(now))
}

// handleVideoEnded advances to the next queued video. The debounce absorbs
// the duplicate ended events every client fires at end-of-video.
func (d *Dispatcher) handleVideoEnded(r *room.Room) {
	if r.QueueLen() == 0 {
		return
	}
	if !r.TryBeginEnded() {
		return
	}

	head, ok := r.PopQueue()
	if !ok {
		r.FinishEnded()
		return
	}

	d.loadQueueItem(r, head)

	time.AfterFunc(endedHold, func() {
		r.Lock()
		r.FinishEnded()
		r.Unlock()
	})
}

// loadQueueItem makes a queue item the current video and emits the load and
// queue broadcasts. Runs under the room lock.
func (d *Dispatcher) loadQueueItem(r *room.Room, item domain.QueueItem) {
	videoID, videoType, err := domain.ClassifyVideoURL(item.VideoURL)
	if err != nil {
		// The URL was validated on enqueue; treat a failure here as a skip.
		d.logger.Warn("queued URL no longer classifiable", "room", r.Code, "url", item.VideoURL)
		return
	}

	now := d.clock.Now()
	r.Video.Load(videoID, item.VideoURL, videoType, now)
	r.VideoTitle = item.Title

	system := domain.NewSystemMessage("now playing "+item.Title, now)
	r.AppendChat(system)

	d.hub.BroadcastToRoom(r.Code, websocket.EventVideoLoad, r.Video.Snapshot(now))
	d.hub.BroadcastToRoom(r.Code, websocket.EventQueueUpdate, queueUpdateEvent{Queue: r.QueueItems()})
	d.hub.BroadcastToRoom(r.Code, websocket.EventChatMessage, system)
}

// resolveVideoTitle fills in the lobby title for the current video. Lobby
// only; no broadcast.
func (d *Dispatcher) resolveVideoTitle(r *room.Room, videoID string) {
	if d.titles == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	title, err := d.titles.Title(ctx, videoID)
	if err != nil {
		metrics.TitleLookupFailures.Inc()
		return
	}

	r.Lock()
	defer r.Unlock()
	if r.Closed() || r.Video.VideoID != videoID {
		return
	}
	r.VideoTitle = title
}

func placeholderTitle(videoID, rawURL string) string {
	if videoID != "" {
		return videoID
	}
	return rawURL
}
