package store

import (
	"fmt"

	"github.com/beka-birhanu/mazesync/game/maze"
	"github.com/beka-birhanu/mazesync/service/i"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// playerRecord is the stored form of a player position. x is the column and
// y is the row.
type playerRecord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func encodePosition(pos maze.Position) ([]byte, error) {
	return json.Marshal(playerRecord{X: pos.Col, Y: pos.Row})
}

func decodePosition(data []byte) (maze.Position, error) {
	var rec playerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return maze.Position{}, err
	}
	return maze.Position{Row: rec.Y, Col: rec.X}, nil
}

// eventRecord is the wire form of a StoreEvent on the pub/sub channel.
type eventRecord struct {
	Kind     i.StoreEventKind `json:"kind"`
	Seed     string           `json:"seed,omitempty"`
	PlayerID string           `json:"playerId,omitempty"`
	X        int              `json:"x"`
	Y        int              `json:"y"`
}

func encodeEvent(ev i.StoreEvent) ([]byte, error) {
	rec := eventRecord{
		Kind: ev.Kind,
		Seed: string(ev.Seed),
		X:    ev.Position.Col,
		Y:    ev.Position.Row,
	}
	if ev.PlayerID != uuid.Nil {
		rec.PlayerID = ev.PlayerID.String()
	}
	return json.Marshal(rec)
}

func decodeEvent(data []byte) (i.StoreEvent, error) {
	var rec eventRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return i.StoreEvent{}, err
	}

	ev := i.StoreEvent{
		Kind:     rec.Kind,
		Seed:     maze.Seed(rec.Seed),
		Position: maze.Position{Row: rec.Y, Col: rec.X},
	}
	switch rec.Kind {
	case i.SeedChanged:
	case i.PlayerChanged, i.PlayerRemoved:
		id, err := uuid.Parse(rec.PlayerID)
		if err != nil {
			return i.StoreEvent{}, fmt.Errorf("%w: player id %q", ErrMalformedEvent, rec.PlayerID)
		}
		ev.PlayerID = id
	default:
		return i.StoreEvent{}, fmt.Errorf("%w: kind %q", ErrMalformedEvent, rec.Kind)
	}
	return ev, nil
}
