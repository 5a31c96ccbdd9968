package relaycore

// Publisher pushes the global rooms-list snapshot to every connection after
// a membership change.
type Publisher struct {
	directory *Directory
	engine    *Engine
}

func NewPublisher(directory *Directory, engine *Engine) *Publisher {
	return &Publisher{directory: directory, engine: engine}
}

// PublishRoomList recomputes the room summaries and broadcasts them.
func (p *Publisher) PublishRoomList() {
	p.engine.Broadcast(RoomsList{
		Kind:  KindRoomsList,
		Rooms: p.directory.Summaries(),
	})
}
